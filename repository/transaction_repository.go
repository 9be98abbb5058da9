package repository

import (
	"database/sql"

	"github.com/andersonmia/nbr/logger"
	"github.com/andersonmia/nbr/model"

	"github.com/sirupsen/logrus"
)

// ITransactionRepository defines the contract for the append-only ledger of
// transaction records.
type ITransactionRepository interface {
	AppendTransaction(tx *sql.Tx, transaction *model.Transaction) error
	GetTransactionsByAccountID(accountID int) ([]*model.Transaction, error)
}

type TransactionRepository struct {
	DB *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{DB: db}
}

// AppendTransaction inserts one ledger record inside the caller's unit of
// work. CreatedAt is supplied by the caller so that the two legs of a
// transfer carry an identical timestamp.
func (r *TransactionRepository) AppendTransaction(tx *sql.Tx, transaction *model.Transaction) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id": transaction.AccountID,
		"kind":       transaction.Kind,
		"amount":     transaction.Amount.String(),
	})
	log.Info("Executing query to append a transaction record")

	query := `INSERT INTO transactions (account_id, kind, amount, counterparty_account_id, transfer_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := tx.QueryRow(query, transaction.AccountID, transaction.Kind, transaction.Amount,
		transaction.CounterpartyAccountID, transaction.TransferRef, transaction.CreatedAt).
		Scan(&transaction.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute append transaction query")
		return err
	}
	return nil
}

// GetTransactionsByAccountID retrieves the ledger history of one account,
// newest first.
func (r *TransactionRepository) GetTransactionsByAccountID(accountID int) ([]*model.Transaction, error) {
	log := logger.Log.WithField("account_id", accountID)
	log.Info("Executing query to get transactions by account ID")

	query := `
		SELECT id, account_id, kind, amount, counterparty_account_id, transfer_ref, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.DB.Query(query, accountID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for transactions by account ID")
		return nil, err
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Amount, &t.CounterpartyAccountID, &t.TransferRef, &t.CreatedAt); err != nil {
			log.WithError(err).Error("Failed to scan transaction row")
			return nil, err
		}
		transactions = append(transactions, &t)
	}

	return transactions, rows.Err()
}
