package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andersonmia/nbr/model"
	"github.com/andersonmia/nbr/repository"

	"github.com/redis/go-redis/v9"
)

// AccountService handles account lifecycle and listing. Listings use a
// cache-aside strategy; the ledger service invalidates the same keys after
// every committed balance mutation.
type AccountService struct {
	repo        repository.IAccountRepository
	redisClient *redis.Client
}

func NewAccountService(repo repository.IAccountRepository, redisClient *redis.Client) *AccountService {
	return &AccountService{
		repo:        repo,
		redisClient: redisClient,
	}
}

// CreateNewAccount opens a new account with the next sequential account
// number and a zero balance, then invalidates the user's account cache.
func (s *AccountService) CreateNewAccount(userID int, currency string) (*model.Account, error) {
	lastAccountNumber, err := s.repo.GetLastAccountNumber()
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		UserID:        userID,
		AccountNumber: lastAccountNumber + 1,
		Currency:      currency,
	}

	if err := s.repo.CreateAccount(account); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("accounts:%d", userID)
	s.redisClient.Del(context.Background(), cacheKey)

	return account, nil
}

// ListAccountsForUser lists accounts for a specific user, utilizing a
// cache-aside strategy.
func (s *AccountService) ListAccountsForUser(userID int) ([]*model.Account, error) {
	cacheKey := fmt.Sprintf("accounts:%d", userID)
	ctx := context.Background()

	cachedAccounts, err := s.redisClient.Get(ctx, cacheKey).Result()
	if err == nil {
		var accounts []*model.Account
		if err := json.Unmarshal([]byte(cachedAccounts), &accounts); err == nil {
			return accounts, nil
		}
	}

	accounts, err := s.repo.GetAccountsByUserID(userID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(accounts)
	if err == nil {
		s.redisClient.Set(ctx, cacheKey, data, 10*time.Minute)
	}

	return accounts, nil
}

// GetAllAccounts retrieves all accounts. Caching is not applied here as
// admin data may need to be fresh.
func (s *AccountService) GetAllAccounts() ([]*model.Account, error) {
	return s.repo.GetAllAccounts()
}
