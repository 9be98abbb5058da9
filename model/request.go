package model

import "github.com/shopspring/decimal"

// RegisterRequest defines the payload for creating a new user.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest defines the payload for user authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateUserRoleRequest defines the payload for updating a user's role.
type UpdateUserRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=admin user"`
}

// CreateAccountRequest defines the payload for opening a new account.
type CreateAccountRequest struct {
	Currency string `json:"currency" validate:"required,oneof=RWF USD EUR"`
}

// AmountRequest carries the amount for a deposit or a withdrawal. The
// positive-amount rule is enforced again inside the ledger core; the tag
// only rejects obviously malformed requests early.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// TransferRequest defines the payload for a transfer between two accounts.
type TransferRequest struct {
	FromAccountID int             `json:"from_account_id" validate:"required"`
	ToAccountID   int             `json:"to_account_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
}
