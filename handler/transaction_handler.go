package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/andersonmia/nbr/common"
	"github.com/andersonmia/nbr/model"
	"github.com/andersonmia/nbr/service"

	"github.com/shopspring/decimal"
)

// TransactionHandler holds dependencies for ledger-related handlers.
type TransactionHandler struct {
	service *service.LedgerService
}

func NewTransactionHandler(s *service.LedgerService) *TransactionHandler {
	return &TransactionHandler{service: s}
}

// CreateDeposit godoc
// @Summary      Deposit into an account
// @Description  Credits the given amount to an account owned by the authenticated user.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        accountId path int true "The ID of the account"
// @Param        deposit body model.AmountRequest true "Deposit amount"
// @Success      201  {object}  model.Transaction
// @Failure      400  {object}  common.AppError "Invalid amount"
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Failure      403  {object}  common.AppError "User does not own the account"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      409  {object}  common.AppError "Storage conflict, retry the request"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Router       /api/accounts/{accountId}/deposits [post]
func (h *TransactionHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) *common.AppError {
	return h.processAmountRequest(w, r, h.service.Deposit)
}

// CreateWithdrawal godoc
// @Summary      Withdraw from an account
// @Description  Debits the given amount from an account owned by the authenticated user.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        accountId path int true "The ID of the account"
// @Param        withdrawal body model.AmountRequest true "Withdrawal amount"
// @Success      201  {object}  model.Transaction
// @Failure      400  {object}  common.AppError "Invalid amount or insufficient funds"
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Failure      403  {object}  common.AppError "User does not own the account"
// @Failure      404  {object}  common.AppError "Account not found"
// @Failure      409  {object}  common.AppError "Storage conflict, retry the request"
// @Failure      500  {object}  common.AppError "Internal server error"
// @Router       /api/accounts/{accountId}/withdrawals [post]
func (h *TransactionHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) *common.AppError {
	return h.processAmountRequest(w, r, h.service.Withdraw)
}

func (h *TransactionHandler) processAmountRequest(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID, accountID int, amount decimal.Decimal) (*model.Transaction, error)) *common.AppError {

	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	accountID, err := strconv.Atoi(r.PathValue("accountId"))
	if err != nil {
		return common.NewAppError(http.StatusBadRequest, "Invalid account ID in URL path", err)
	}

	var req model.AmountRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	transaction, err := op(r.Context(), userID, accountID, req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(transaction)
	return nil
}

// CreateTransfer godoc
// @Summary      Transfer money between accounts
// @Description  Moves a specified amount from one account to another. The user must own the source account.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        transfer body model.TransferRequest true "Details of the financial transfer"
// @Success      201  {object}  model.Transaction "The debit leg of the committed transfer"
// @Failure      400  {object}  common.AppError "Bad Request (e.g., insufficient funds, currency mismatch, invalid amount)"
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      403  {object}  common.AppError "Forbidden: User does not own the source account"
// @Failure      404  {object}  common.AppError "Sender or receiver account not found"
// @Failure      409  {object}  common.AppError "Storage conflict, retry the request"
// @Failure      500  {object}  common.AppError "Internal server error while processing transfer"
// @Router       /api/transfers [post]
func (h *TransactionHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.TransferRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	transaction, err := h.service.Transfer(r.Context(), userID, req)
	if err != nil {
		return mapLedgerError(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(transaction)
	return nil
}

// GetBalance godoc
// @Summary      Read an account balance
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        accountId path int true "The ID of the account"
// @Success      200  {object}  map[string]string "balance"
// @Failure      401  {object}  common.AppError "Unauthorized"
// @Failure      403  {object}  common.AppError "User does not own the account"
// @Failure      404  {object}  common.AppError "Account not found"
// @Router       /api/accounts/{accountId}/balance [get]
func (h *TransactionHandler) GetBalance(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	accountID, err := strconv.Atoi(r.PathValue("accountId"))
	if err != nil {
		return common.NewAppError(http.StatusBadRequest, "Invalid account ID in URL path", err)
	}

	balance, err := h.service.GetBalance(r.Context(), userID, accountID)
	if err != nil {
		return mapLedgerError(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"balance": balance.String()})
	return nil
}

// ListTransactionsForAccount godoc
// @Summary      List account transaction history
// @Description  Retrieves the transaction history for a specific account owned by the authenticated user.
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        accountId path int true "The ID of the account to retrieve transactions for"
// @Success      200  {array}   model.Transaction "A list of transactions for the account"
// @Failure      400  {object}  common.AppError "Invalid account ID in URL path"
// @Failure      401  {object}  common.AppError "Unauthorized: Invalid or missing token"
// @Failure      403  {object}  common.AppError "Forbidden: User does not own the specified account"
// @Failure      404  {object}  common.AppError "Account with the specified ID not found"
// @Failure      500  {object}  common.AppError "Internal server error while retrieving transactions"
// @Router       /api/accounts/{accountId}/transactions [get]
func (h *TransactionHandler) ListTransactionsForAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	accountID, err := strconv.Atoi(r.PathValue("accountId"))
	if err != nil {
		return common.NewAppError(http.StatusBadRequest, "Invalid account ID in URL path", err)
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, accountID)
	if err != nil {
		return mapLedgerError(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(transactions)
	return nil
}

// mapLedgerError maps the ledger error taxonomy onto HTTP status codes.
// This mapping lives entirely outside the core: the service layer only ever
// returns typed errors.
func mapLedgerError(err error) *common.AppError {
	switch {
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrSenderNotFound), errors.Is(err, service.ErrReceiverNotFound):
		return common.NewAppError(http.StatusNotFound, err.Error(), err)
	case errors.Is(err, service.ErrPermissionDenied):
		return common.NewAppError(http.StatusForbidden, err.Error(), err)
	case errors.Is(err, service.ErrInsufficientFunds), errors.Is(err, service.ErrCurrencyMismatch),
		errors.Is(err, service.ErrSameAccountTransfer), errors.Is(err, service.ErrInvalidAmount):
		return common.NewAppError(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, service.ErrStorageConflict):
		return common.NewAppError(http.StatusConflict, "The operation could not acquire the account, please retry", err)
	default:
		return common.NewAppError(http.StatusInternalServerError, "Could not process operation", err)
	}
}
