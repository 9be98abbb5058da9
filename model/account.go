package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID            int             `json:"id"`
	UserID        int             `json:"user_id"`
	AccountNumber int64           `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
