package repository

import (
	"database/sql"

	"github.com/andersonmia/nbr/logger"
	"github.com/andersonmia/nbr/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// IAccountRepository defines the contract for account database operations.
// The *sql.Tx variants participate in the caller's unit of work; everything
// else runs on the root connection pool.
type IAccountRepository interface {
	CreateAccount(account *model.Account) error
	GetAccountByID(accountID int) (*model.Account, error)
	GetAccountsByUserID(userID int) ([]*model.Account, error)
	GetAllAccounts() ([]*model.Account, error)
	GetLastAccountNumber() (int64, error)
	GetAccountForUpdate(tx *sql.Tx, accountID int) (*model.Account, error)
	UpdateAccountBalance(tx *sql.Tx, accountID int, newBalance decimal.Decimal) error
}

type AccountRepository struct {
	DB *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

// CreateAccount adds a new account to the database. Balance starts at the
// schema default of zero.
func (r *AccountRepository) CreateAccount(account *model.Account) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":        account.UserID,
		"account_number": account.AccountNumber,
		"currency":       account.Currency,
	})
	log.Info("Executing query to create a new account")

	query := `INSERT INTO accounts (user_id, account_number, currency) VALUES ($1, $2, $3) RETURNING id, balance, created_at, updated_at`
	err := r.DB.QueryRow(query, account.UserID, account.AccountNumber, account.Currency).
		Scan(&account.ID, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create account query")
		return err
	}
	return nil
}

// GetAccountByID retrieves a single account without locking it.
func (r *AccountRepository) GetAccountByID(accountID int) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT id, user_id, account_number, balance, currency, created_at, updated_at FROM accounts WHERE id = $1`
	err := r.DB.QueryRow(query, accountID).
		Scan(&account.ID, &account.UserID, &account.AccountNumber, &account.Balance, &account.Currency, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Log.WithError(err).WithField("account_id", accountID).Error("Failed to execute get account query")
		}
		return nil, err
	}
	return account, nil
}

// GetAccountsByUserID retrieves all accounts for a specific user.
func (r *AccountRepository) GetAccountsByUserID(userID int) ([]*model.Account, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to get accounts by user ID")

	query := `SELECT id, user_id, account_number, balance, currency, created_at, updated_at FROM accounts WHERE user_id = $1`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for accounts by user ID")
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// GetAllAccounts retrieves all accounts from the database. For admin use only.
func (r *AccountRepository) GetAllAccounts() ([]*model.Account, error) {
	logger.Log.Info("Executing query to get all accounts")

	query := `SELECT id, user_id, account_number, balance, currency, created_at, updated_at FROM accounts`
	rows, err := r.DB.Query(query)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute query for all accounts")
		return nil, err
	}
	defer rows.Close()

	return scanAccounts(rows)
}

func scanAccounts(rows *sql.Rows) ([]*model.Account, error) {
	var accounts []*model.Account
	for rows.Next() {
		var acc model.Account
		if err := rows.Scan(&acc.ID, &acc.UserID, &acc.AccountNumber, &acc.Balance, &acc.Currency, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			logger.Log.WithError(err).Error("Failed to scan account row")
			return nil, err
		}
		accounts = append(accounts, &acc)
	}
	return accounts, rows.Err()
}

// GetLastAccountNumber returns the highest account number issued so far.
func (r *AccountRepository) GetLastAccountNumber() (int64, error) {
	var lastNumber int64
	query := `SELECT COALESCE(MAX(account_number), 1000000000) FROM accounts`
	if err := r.DB.QueryRow(query).Scan(&lastNumber); err != nil {
		logger.Log.WithError(err).Error("Failed to execute get last account number query")
		return 0, err
	}
	return lastNumber, nil
}

// GetAccountForUpdate loads an account under a row lock. The lock is held
// until the surrounding transaction commits or rolls back, which serializes
// concurrent balance mutations on the same account.
func (r *AccountRepository) GetAccountForUpdate(tx *sql.Tx, accountID int) (*model.Account, error) {
	log := logger.Log.WithField("account_id", accountID)
	log.Info("Executing query to get account for update")

	account := &model.Account{}
	query := `SELECT id, user_id, account_number, balance, currency FROM accounts WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(query, accountID).
		Scan(&account.ID, &account.UserID, &account.AccountNumber, &account.Balance, &account.Currency)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Account not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get account for update query")
		}
		return nil, err
	}
	return account, nil
}

// UpdateAccountBalance writes the new balance inside the caller's unit of work.
func (r *AccountRepository) UpdateAccountBalance(tx *sql.Tx, accountID int, newBalance decimal.Decimal) error {
	log := logger.Log.WithFields(logrus.Fields{
		"account_id":  accountID,
		"new_balance": newBalance.String(),
	})
	log.Info("Executing query to update account balance")

	query := `UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`
	_, err := tx.Exec(query, newBalance, accountID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update account balance query")
		return err
	}
	return nil
}
