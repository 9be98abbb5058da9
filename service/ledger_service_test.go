package service

import (
	"context"
	"errors"
	"testing"

	"github.com/andersonmia/nbr/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// decEq matches a decimal argument by value rather than representation.
func decEq(expected string) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(dec(expected)) })
}

type ledgerFixture struct {
	dbMock      sqlmock.Sqlmock
	accountRepo *MockAccountRepository
	txnRepo     *MockTransactionRepository
	auditRepo   *recordingAuditRepo
	sink        *recordingSink
	messageRepo *recordingMessageRepo
	svc         *LedgerService
	closeDB     func()
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)

	f := &ledgerFixture{
		dbMock:      dbMock,
		accountRepo: new(MockAccountRepository),
		txnRepo:     new(MockTransactionRepository),
		auditRepo:   &recordingAuditRepo{},
		sink:        &recordingSink{},
		messageRepo: &recordingMessageRepo{},
		closeDB:     func() { db.Close() },
	}

	audit := NewAuditTrail(f.auditRepo)
	notifier := NewNotifier(f.sink, f.messageRepo, &stubUserRepo{})
	f.svc = NewLedgerService(db, f.accountRepo, f.txnRepo, audit, notifier, nil)
	return f
}

func (f *ledgerFixture) lastAuditAction() string {
	if len(f.auditRepo.entries) == 0 {
		return ""
	}
	return f.auditRepo.entries[len(f.auditRepo.entries)-1].Action
}

func TestLedgerService_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 1, UserID: 1, AccountNumber: 1000000001, Balance: dec("100"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(account, nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 1, decEq("70")).Return(nil).Once()
		f.txnRepo.On("AppendTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).
			Run(func(args mock.Arguments) {
				tr := args.Get(1).(*model.Transaction)
				assert.Equal(t, model.KindWithdraw, tr.Kind)
				assert.True(t, tr.Amount.Equal(dec("30")))
				assert.False(t, tr.CreatedAt.IsZero())
			}).Return(nil).Once()
		f.dbMock.ExpectCommit()

		transaction, err := f.svc.Withdraw(ctx, 1, 1, dec("30"))

		assert.NoError(t, err)
		assert.NotNil(t, transaction)
		assert.Equal(t, "WITHDRAW", f.lastAuditAction())
		assert.Len(t, f.sink.sent, 1)
		assert.Contains(t, f.sink.sent[0], "withdrawal of 30.00")
		assert.Contains(t, f.sink.sent[0], "new balance is 70.00")
		f.accountRepo.AssertExpectations(t)
		f.txnRepo.AssertExpectations(t)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("insufficient funds leaves state untouched", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 1, UserID: 1, AccountNumber: 1000000001, Balance: dec("50"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(account, nil).Once()
		f.dbMock.ExpectRollback()

		_, err := f.svc.Withdraw(ctx, 1, 1, dec("80"))

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		f.accountRepo.AssertNotCalled(t, "UpdateAccountBalance", mock.Anything, mock.Anything, mock.Anything)
		f.txnRepo.AssertNotCalled(t, "AppendTransaction", mock.Anything, mock.Anything)
		assert.Equal(t, "WITHDRAW_FAILED", f.lastAuditAction())
		assert.Empty(t, f.sink.sent)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("invalid amount rejected before any unit of work", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		_, err := f.svc.Withdraw(ctx, 1, 1, dec("0"))

		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Equal(t, "WITHDRAW_FAILED", f.lastAuditAction())
		// No Begin was expected, so an opened transaction would fail here.
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("account not found", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 99).Return(nil, sqlErrNoRows()).Once()
		f.dbMock.ExpectRollback()

		_, err := f.svc.Withdraw(ctx, 1, 99, dec("10"))

		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.Equal(t, "WITHDRAW_FAILED", f.lastAuditAction())
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("permission denied for foreign account", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 1, UserID: 2, Balance: dec("100"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(account, nil).Once()
		f.dbMock.ExpectRollback()

		_, err := f.svc.Withdraw(ctx, 1, 1, dec("10"))

		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})
}

func TestLedgerService_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 3, UserID: 1, AccountNumber: 1000000003, Balance: dec("10.50"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 3).Return(account, nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 3, decEq("110.50")).Return(nil).Once()
		f.txnRepo.On("AppendTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		f.dbMock.ExpectCommit()

		transaction, err := f.svc.Deposit(ctx, 1, 3, dec("100"))

		assert.NoError(t, err)
		assert.Equal(t, model.KindDeposit, transaction.Kind)
		assert.Equal(t, "DEPOSIT", f.lastAuditAction())
		assert.Len(t, f.messageRepo.messages, 1)
		f.accountRepo.AssertExpectations(t)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("notification failure does not fail the deposit", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()
		f.sink.failErr = errors.New("smtp outage")

		account := &model.Account{ID: 3, UserID: 1, Balance: dec("0"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 3).Return(account, nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 3, decEq("25")).Return(nil).Once()
		f.txnRepo.On("AppendTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		f.dbMock.ExpectCommit()

		_, err := f.svc.Deposit(ctx, 1, 3, dec("25"))

		assert.NoError(t, err)
		assert.Equal(t, "DEPOSIT", f.lastAuditAction())
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("audit sink failure does not fail the deposit", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()
		f.auditRepo.failErr = errors.New("audit store down")

		account := &model.Account{ID: 3, UserID: 1, Balance: dec("0"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 3).Return(account, nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 3, decEq("25")).Return(nil).Once()
		f.txnRepo.On("AppendTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		f.dbMock.ExpectCommit()

		_, err := f.svc.Deposit(ctx, 1, 3, dec("25"))

		assert.NoError(t, err)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("commit error is surfaced", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 3, UserID: 1, Balance: dec("0"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 3).Return(account, nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 3, decEq("25")).Return(nil).Once()
		f.txnRepo.On("AppendTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		f.dbMock.ExpectCommit().WillReturnError(errors.New("commit failed"))

		_, err := f.svc.Deposit(ctx, 1, 3, dec("25"))

		assert.Error(t, err)
		assert.Empty(t, f.sink.sent)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("serialization failure maps to storage conflict", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 3, UserID: 1, Balance: dec("0"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 3).Return(account, nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 3, decEq("25")).Return(nil).Once()
		f.txnRepo.On("AppendTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil).Once()
		f.dbMock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

		_, err := f.svc.Deposit(ctx, 1, 3, dec("25"))

		assert.ErrorIs(t, err, ErrStorageConflict)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})
}

func TestLedgerService_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("success records both legs with shared ref and timestamp", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		sender := &model.Account{ID: 1, UserID: 1, AccountNumber: 1000000001, Balance: dec("100"), Currency: "RWF"}
		receiver := &model.Account{ID: 2, UserID: 2, AccountNumber: 1000000002, Balance: dec("10"), Currency: "RWF"}

		var legs []*model.Transaction

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(sender, nil).Once()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(receiver, nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 1, decEq("60")).Return(nil).Once()
		f.accountRepo.On("UpdateAccountBalance", mock.Anything, 2, decEq("50")).Return(nil).Once()
		f.txnRepo.On("AppendTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).
			Run(func(args mock.Arguments) {
				legs = append(legs, args.Get(1).(*model.Transaction))
			}).Return(nil).Twice()
		f.dbMock.ExpectCommit()

		req := model.TransferRequest{FromAccountID: 1, ToAccountID: 2, Amount: dec("40")}
		transaction, err := f.svc.Transfer(ctx, 1, req)

		assert.NoError(t, err)
		assert.Len(t, legs, 2)
		debit, credit := legs[0], legs[1]
		assert.Equal(t, 1, debit.AccountID)
		assert.Equal(t, 2, credit.AccountID)
		assert.Equal(t, 2, *debit.CounterpartyAccountID)
		assert.Equal(t, 1, *credit.CounterpartyAccountID)
		assert.Equal(t, *debit.TransferRef, *credit.TransferRef)
		assert.True(t, debit.CreatedAt.Equal(credit.CreatedAt))
		assert.Equal(t, debit, transaction)
		assert.Equal(t, "TRANSFER", f.lastAuditAction())
		assert.Len(t, f.sink.sent, 2)
		f.accountRepo.AssertExpectations(t)
		f.txnRepo.AssertExpectations(t)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("same account rejected before any lock", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		req := model.TransferRequest{FromAccountID: 5, ToAccountID: 5, Amount: dec("10")}
		_, err := f.svc.Transfer(ctx, 1, req)

		assert.ErrorIs(t, err, ErrSameAccountTransfer)
		f.accountRepo.AssertNotCalled(t, "GetAccountForUpdate", mock.Anything, mock.Anything)
		assert.Equal(t, "TRANSFER_FAILED", f.lastAuditAction())
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("locks are always acquired in ascending account order", func(t *testing.T) {
		highToLow := model.TransferRequest{FromAccountID: 7, ToAccountID: 3, Amount: dec("10")}
		lowToHigh := model.TransferRequest{FromAccountID: 3, ToAccountID: 7, Amount: dec("10")}

		for name, req := range map[string]model.TransferRequest{"high to low": highToLow, "low to high": lowToHigh} {
			t.Run(name, func(t *testing.T) {
				f := newLedgerFixture(t)
				defer f.closeDB()

				three := &model.Account{ID: 3, UserID: 1, Balance: dec("100"), Currency: "RWF"}
				seven := &model.Account{ID: 7, UserID: 1, Balance: dec("100"), Currency: "RWF"}

				var lockOrder []int
				record := func(args mock.Arguments) { lockOrder = append(lockOrder, args.Int(1)) }

				f.dbMock.ExpectBegin()
				f.accountRepo.On("GetAccountForUpdate", mock.Anything, 3).Run(record).Return(three, nil).Once()
				f.accountRepo.On("GetAccountForUpdate", mock.Anything, 7).Run(record).Return(seven, nil).Once()
				f.accountRepo.On("UpdateAccountBalance", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()
				f.txnRepo.On("AppendTransaction", mock.Anything, mock.Anything).Return(nil).Twice()
				f.dbMock.ExpectCommit()

				_, err := f.svc.Transfer(ctx, 1, req)

				assert.NoError(t, err)
				assert.Equal(t, []int{3, 7}, lockOrder)
				assert.NoError(t, f.dbMock.ExpectationsWereMet())
			})
		}
	})

	t.Run("insufficient funds aborts before any write", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		sender := &model.Account{ID: 1, UserID: 1, Balance: dec("5"), Currency: "RWF"}
		receiver := &model.Account{ID: 2, UserID: 2, Balance: dec("10"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(sender, nil).Once()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(receiver, nil).Once()
		f.dbMock.ExpectRollback()

		req := model.TransferRequest{FromAccountID: 1, ToAccountID: 2, Amount: dec("40")}
		_, err := f.svc.Transfer(ctx, 1, req)

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		f.accountRepo.AssertNotCalled(t, "UpdateAccountBalance", mock.Anything, mock.Anything, mock.Anything)
		f.txnRepo.AssertNotCalled(t, "AppendTransaction", mock.Anything, mock.Anything)
		assert.Empty(t, f.sink.sent)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("sender not found", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(nil, sqlErrNoRows()).Once()
		f.dbMock.ExpectRollback()

		req := model.TransferRequest{FromAccountID: 1, ToAccountID: 2, Amount: dec("40")}
		_, err := f.svc.Transfer(ctx, 1, req)

		assert.ErrorIs(t, err, ErrSenderNotFound)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("receiver not found", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		sender := &model.Account{ID: 1, UserID: 1, Balance: dec("100"), Currency: "RWF"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(sender, nil).Once()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(nil, sqlErrNoRows()).Once()
		f.dbMock.ExpectRollback()

		req := model.TransferRequest{FromAccountID: 1, ToAccountID: 2, Amount: dec("40")}
		_, err := f.svc.Transfer(ctx, 1, req)

		assert.ErrorIs(t, err, ErrReceiverNotFound)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})

	t.Run("currency mismatch", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		sender := &model.Account{ID: 1, UserID: 1, Balance: dec("100"), Currency: "RWF"}
		receiver := &model.Account{ID: 2, UserID: 2, Balance: dec("10"), Currency: "USD"}

		f.dbMock.ExpectBegin()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 1).Return(sender, nil).Once()
		f.accountRepo.On("GetAccountForUpdate", mock.Anything, 2).Return(receiver, nil).Once()
		f.dbMock.ExpectRollback()

		req := model.TransferRequest{FromAccountID: 1, ToAccountID: 2, Amount: dec("40")}
		_, err := f.svc.Transfer(ctx, 1, req)

		assert.ErrorIs(t, err, ErrCurrencyMismatch)
		assert.NoError(t, f.dbMock.ExpectationsWereMet())
	})
}

func TestLedgerService_GetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 1, UserID: 1, Balance: dec("70"), Currency: "RWF"}
		f.accountRepo.On("GetAccountByID", 1).Return(account, nil).Once()

		balance, err := f.svc.GetBalance(ctx, 1, 1)

		assert.NoError(t, err)
		assert.True(t, balance.Equal(dec("70")))
	})

	t.Run("not found", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		f.accountRepo.On("GetAccountByID", 9).Return(nil, sqlErrNoRows()).Once()

		_, err := f.svc.GetBalance(ctx, 1, 9)

		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("foreign account denied", func(t *testing.T) {
		f := newLedgerFixture(t)
		defer f.closeDB()

		account := &model.Account{ID: 1, UserID: 2, Balance: dec("70"), Currency: "RWF"}
		f.accountRepo.On("GetAccountByID", 1).Return(account, nil).Once()

		_, err := f.svc.GetBalance(ctx, 1, 1)

		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}
