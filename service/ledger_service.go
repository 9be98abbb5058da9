package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andersonmia/nbr/logger"
	"github.com/andersonmia/nbr/model"
	"github.com/andersonmia/nbr/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrCurrencyMismatch = errors.New("currency mismatch between accounts")

// LedgerService executes account operations as atomic units of work. Each
// operation locks the involved account rows (FOR UPDATE), applies the
// balance mutation, appends the immutable transaction record and commits,
// all in one SQL transaction. Auditing and notifications happen strictly
// after the unit of work is decided, never inside it.
type LedgerService struct {
	db              *sql.DB
	accountRepo     repository.IAccountRepository
	transactionRepo repository.ITransactionRepository
	audit           *AuditTrail
	notifier        *Notifier
	redisClient     *redis.Client
}

func NewLedgerService(db *sql.DB, accountRepo repository.IAccountRepository, transactionRepo repository.ITransactionRepository,
	audit *AuditTrail, notifier *Notifier, redisClient *redis.Client) *LedgerService {
	return &LedgerService{
		db:              db,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		audit:           audit,
		notifier:        notifier,
		redisClient:     redisClient,
	}
}

// Deposit credits amount to the given account.
func (s *LedgerService) Deposit(ctx context.Context, userID, accountID int, amount decimal.Decimal) (*model.Transaction, error) {
	return s.process(ctx, userID, accountID, model.KindDeposit, amount)
}

// Withdraw debits amount from the given account.
func (s *LedgerService) Withdraw(ctx context.Context, userID, accountID int, amount decimal.Decimal) (*model.Transaction, error) {
	return s.process(ctx, userID, accountID, model.KindWithdraw, amount)
}

// process runs one single-account operation end to end.
func (s *LedgerService) process(ctx context.Context, userID, accountID int, kind model.TransactionKind, amount decimal.Decimal) (*model.Transaction, error) {
	action := string(kind)
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": accountID,
		"kind":       kind,
		"amount":     amount.String(),
		"user_id":    userID,
	})
	log.Info("Starting transaction processing")

	if amount.LessThanOrEqual(decimal.Zero) {
		s.audit.Record(action+"_FAILED", fmt.Sprintf("Transaction amount must be greater than zero for account ID: %d", accountID))
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", classifyStorageError(err))
	}
	defer tx.Rollback()

	account, err := s.accountRepo.GetAccountForUpdate(tx, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			s.audit.Record(action+"_FAILED", fmt.Sprintf("Account not found with ID: %d", accountID))
			return nil, ErrAccountNotFound
		}
		return nil, classifyStorageError(err)
	}

	if account.UserID != userID {
		s.audit.Record(action+"_FAILED", fmt.Sprintf("Permission denied on account ID: %d for user ID: %d", accountID, userID))
		return nil, ErrPermissionDenied
	}

	newBalance, err := NextBalance(account.Balance, kind, amount)
	if err != nil {
		s.audit.Record(action+"_FAILED", fmt.Sprintf("%s for account ID: %d", err.Error(), accountID))
		return nil, err
	}

	if err := s.accountRepo.UpdateAccountBalance(tx, account.ID, newBalance); err != nil {
		return nil, fmt.Errorf("could not update balance: %w", classifyStorageError(err))
	}

	transaction := &model.Transaction{
		AccountID: account.ID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.transactionRepo.AppendTransaction(tx, transaction); err != nil {
		return nil, fmt.Errorf("could not create transaction record: %w", classifyStorageError(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", classifyStorageError(err))
	}

	// Committed. Everything below is best-effort and must not fail the
	// operation or touch the released locks.
	s.invalidateAccountCache(ctx, account.UserID)
	s.notifier.NotifyTransaction(account.UserID, account.AccountNumber, kind, amount, newBalance, transaction.CreatedAt)
	s.audit.Record(action, fmt.Sprintf("Created transaction with ID: %d for account ID: %d", transaction.ID, account.ID))

	log.Info("Transaction completed successfully")
	return transaction, nil
}

// Transfer moves amount between two accounts as one atomic unit of work.
// Both rows are locked in ascending account-ID order regardless of which is
// the sender, so two opposing transfers on the same pair cannot deadlock.
func (s *LedgerService) Transfer(ctx context.Context, userID int, req model.TransferRequest) (*model.Transaction, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"from_account_id": req.FromAccountID,
		"to_account_id":   req.ToAccountID,
		"amount":          req.Amount.String(),
		"user_id":         userID,
	})
	log.Info("Starting money transfer process")

	if req.FromAccountID == req.ToAccountID {
		s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("Cannot transfer money to the same account, account ID: %d", req.FromAccountID))
		return nil, ErrSameAccountTransfer
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("Transfer amount must be greater than zero from account ID: %d", req.FromAccountID))
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", classifyStorageError(err))
	}
	defer tx.Rollback()

	firstID, secondID := req.FromAccountID, req.ToAccountID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := s.accountRepo.GetAccountForUpdate(tx, firstID)
	if err != nil {
		return nil, s.transferLookupError(err, firstID, req.FromAccountID)
	}
	second, err := s.accountRepo.GetAccountForUpdate(tx, secondID)
	if err != nil {
		return nil, s.transferLookupError(err, secondID, req.FromAccountID)
	}

	sender, receiver := first, second
	if sender.ID != req.FromAccountID {
		sender, receiver = second, first
	}

	if sender.UserID != userID {
		s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("Permission denied on account ID: %d for user ID: %d", sender.ID, userID))
		return nil, ErrPermissionDenied
	}
	if sender.Currency != receiver.Currency {
		s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("Currency mismatch between accounts %d and %d", sender.ID, receiver.ID))
		return nil, ErrCurrencyMismatch
	}

	senderBalance, err := NextBalance(sender.Balance, model.KindWithdraw, req.Amount)
	if err != nil {
		s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("%s for account ID: %d", err.Error(), sender.ID))
		return nil, err
	}
	receiverBalance, err := NextBalance(receiver.Balance, model.KindDeposit, req.Amount)
	if err != nil {
		s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("%s for account ID: %d", err.Error(), receiver.ID))
		return nil, err
	}

	if err := s.accountRepo.UpdateAccountBalance(tx, sender.ID, senderBalance); err != nil {
		return nil, fmt.Errorf("could not update sender balance: %w", classifyStorageError(err))
	}
	if err := s.accountRepo.UpdateAccountBalance(tx, receiver.ID, receiverBalance); err != nil {
		return nil, fmt.Errorf("could not update receiver balance: %w", classifyStorageError(err))
	}

	// Both legs share one timestamp and one reference so the pair is
	// reconstructible from either side.
	transferRef := uuid.NewString()
	committedAt := time.Now().UTC()

	debitLeg := &model.Transaction{
		AccountID:             sender.ID,
		Kind:                  model.KindTransfer,
		Amount:                req.Amount,
		CounterpartyAccountID: &receiver.ID,
		TransferRef:           &transferRef,
		CreatedAt:             committedAt,
	}
	creditLeg := &model.Transaction{
		AccountID:             receiver.ID,
		Kind:                  model.KindTransfer,
		Amount:                req.Amount,
		CounterpartyAccountID: &sender.ID,
		TransferRef:           &transferRef,
		CreatedAt:             committedAt,
	}

	if err := s.transactionRepo.AppendTransaction(tx, debitLeg); err != nil {
		return nil, fmt.Errorf("could not create debit leg record: %w", classifyStorageError(err))
	}
	if err := s.transactionRepo.AppendTransaction(tx, creditLeg); err != nil {
		return nil, fmt.Errorf("could not create credit leg record: %w", classifyStorageError(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", classifyStorageError(err))
	}

	s.invalidateAccountCache(ctx, sender.UserID)
	s.invalidateAccountCache(ctx, receiver.UserID)

	// Independent best-effort notifications; one failing does not stop the
	// other.
	s.notifier.NotifyTransferSent(sender.UserID, receiver.AccountNumber, req.Amount, senderBalance, committedAt)
	s.notifier.NotifyTransferReceived(receiver.UserID, sender.AccountNumber, req.Amount, receiverBalance, committedAt)

	s.audit.Record("TRANSFER", fmt.Sprintf("Transfer transaction created with ID: %d from account ID: %d to account ID: %d",
		debitLeg.ID, sender.ID, receiver.ID))

	log.Info("Transfer completed successfully")
	return debitLeg, nil
}

// GetBalance reads the current balance of an account owned by the caller.
func (s *LedgerService) GetBalance(ctx context.Context, userID, accountID int) (decimal.Decimal, error) {
	account, err := s.accountRepo.GetAccountByID(accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			s.audit.Record("GET_BALANCE_FAILED", fmt.Sprintf("Account not found with ID: %d", accountID))
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, classifyStorageError(err)
	}

	if account.UserID != userID {
		s.audit.Record("GET_BALANCE_FAILED", fmt.Sprintf("Permission denied on account ID: %d for user ID: %d", accountID, userID))
		return decimal.Zero, ErrPermissionDenied
	}

	s.audit.Record("GET_BALANCE", fmt.Sprintf("Fetched balance for account ID: %d", accountID))
	return account.Balance, nil
}

// ListTransactions retrieves the ledger history for an account owned by the
// caller.
func (s *LedgerService) ListTransactions(ctx context.Context, userID, accountID int) ([]*model.Transaction, error) {
	account, err := s.accountRepo.GetAccountByID(accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, classifyStorageError(err)
	}

	if account.UserID != userID {
		logger.Log.WithFields(logrus.Fields{
			"requesting_user_id": userID,
			"target_account_id":  accountID,
		}).Warn("Permission denied for accessing account's transaction history")
		return nil, ErrPermissionDenied
	}

	return s.transactionRepo.GetTransactionsByAccountID(accountID)
}

func (s *LedgerService) transferLookupError(err error, lookedUpID, senderID int) error {
	if err == sql.ErrNoRows {
		if lookedUpID == senderID {
			s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("Sender account not found with ID: %d", lookedUpID))
			return ErrSenderNotFound
		}
		s.audit.Record("TRANSFER_FAILED", fmt.Sprintf("Receiver account not found with ID: %d", lookedUpID))
		return ErrReceiverNotFound
	}
	return classifyStorageError(err)
}

func (s *LedgerService) invalidateAccountCache(ctx context.Context, userID int) {
	if s.redisClient == nil {
		return
	}
	cacheKey := fmt.Sprintf("accounts:%d", userID)
	if err := s.redisClient.Del(ctx, cacheKey).Err(); err != nil {
		logger.Log.WithError(err).WithField("cache_key", cacheKey).Warn("Failed to invalidate account cache")
	}
}

// classifyStorageError maps retryable Postgres failures (serialization
// aborts, deadlocks, lock timeouts) to ErrStorageConflict. No partial state
// was written in those cases, so the caller may safely retry.
func classifyStorageError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "40" || pqErr.Code == "55P03" {
			return ErrStorageConflict
		}
	}
	return err
}
