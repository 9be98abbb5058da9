package main

import (
	"github.com/andersonmia/nbr/app"
)

// @title           NBR Banking Ledger API
// @version         1.0
// @description     Banking ledger service: deposits, withdrawals and transfers with an append-only transaction ledger.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
