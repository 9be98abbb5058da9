package router

import (
	"net/http"

	"github.com/andersonmia/nbr/handler"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(userHandler *handler.UserHandler, accountHandler *handler.AccountHandler, transactionHandler *handler.TransactionHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("POST /register", handler.ErrorHandlingMiddleware(userHandler.Register))
	mux.Handle("POST /login", handler.ErrorHandlingMiddleware(userHandler.Login))

	mux.Handle("POST /api/accounts", handler.AuthMiddleware(handler.ErrorHandlingMiddleware(accountHandler.CreateAccount)))
	mux.Handle("GET /api/accounts", handler.AuthMiddleware(handler.ErrorHandlingMiddleware(accountHandler.ListAccounts)))
	mux.Handle("GET /api/accounts/{accountId}/balance", handler.AuthMiddleware(handler.ErrorHandlingMiddleware(transactionHandler.GetBalance)))
	mux.Handle("GET /api/accounts/{accountId}/transactions", handler.AuthMiddleware(handler.ErrorHandlingMiddleware(transactionHandler.ListTransactionsForAccount)))
	mux.Handle("POST /api/accounts/{accountId}/deposits", handler.AuthMiddleware(handler.ErrorHandlingMiddleware(transactionHandler.CreateDeposit)))
	mux.Handle("POST /api/accounts/{accountId}/withdrawals", handler.AuthMiddleware(handler.ErrorHandlingMiddleware(transactionHandler.CreateWithdrawal)))
	mux.Handle("POST /api/transfers", handler.AuthMiddleware(handler.ErrorHandlingMiddleware(transactionHandler.CreateTransfer)))

	mux.Handle("GET /api/admin/accounts", handler.AuthMiddleware(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(accountHandler.ListAllAccounts))))
	mux.Handle("PUT /api/admin/users/{userId}/role", handler.AuthMiddleware(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(userHandler.UpdateUserRole))))

	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	return mux
}
