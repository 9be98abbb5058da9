package service

import (
	"errors"

	"github.com/andersonmia/nbr/model"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("transaction amount must be greater than zero")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountNotFound     = errors.New("account not found")
	ErrSenderNotFound      = errors.New("sender account not found")
	ErrReceiverNotFound    = errors.New("receiver account not found")
	ErrSameAccountTransfer = errors.New("cannot transfer money to the same account")
	ErrPermissionDenied    = errors.New("you can only operate on your own account")
	ErrStorageConflict     = errors.New("storage conflict, the operation may be retried")
	ErrInvalidKind         = errors.New("invalid transaction kind")
)

// NextBalance computes the balance that results from applying one operation.
// It is a pure function: the callers own locking and persistence. Transfer
// legs go through it twice, as a WITHDRAW on the sender and a DEPOSIT on the
// receiver.
func NextBalance(current decimal.Decimal, kind model.TransactionKind, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}

	switch kind {
	case model.KindDeposit:
		return current.Add(amount), nil
	case model.KindWithdraw:
		if current.LessThan(amount) {
			return decimal.Zero, ErrInsufficientFunds
		}
		return current.Sub(amount), nil
	default:
		return decimal.Zero, ErrInvalidKind
	}
}
