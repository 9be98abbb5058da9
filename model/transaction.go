package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind enumerates the operations recorded in the ledger.
type TransactionKind string

const (
	KindDeposit  TransactionKind = "DEPOSIT"
	KindWithdraw TransactionKind = "WITHDRAW"
	KindTransfer TransactionKind = "TRANSFER"
)

// Transaction is one immutable ledger entry. Rows are only ever inserted,
// never updated or deleted. A transfer produces two rows (the debit leg on
// the sender's account and the credit leg on the receiver's) that share the
// same TransferRef and CreatedAt.
type Transaction struct {
	ID                    int             `json:"id"`
	AccountID             int             `json:"account_id"`
	Kind                  TransactionKind `json:"kind"`
	Amount                decimal.Decimal `json:"amount"`
	CounterpartyAccountID *int            `json:"counterparty_account_id,omitempty"`
	TransferRef           *string         `json:"transfer_ref,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}
