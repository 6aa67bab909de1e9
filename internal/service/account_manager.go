package service

import (
	"sync"

	"github.com/forecastdao/tiergate/internal/config"
	"github.com/forecastdao/tiergate/internal/model"
	"golang.org/x/time/rate"
)

// AccountManager holds the configured API accounts and their HTTP limiters.
type AccountManager struct {
	mu             sync.RWMutex
	accounts       map[string]*model.Account // Key: gateway ApiKey
	limiters       map[string]*rate.Limiter  // Key: AccountID
	defaultAccount *model.Account
}

func NewAccountManager(cfg *config.Config) *AccountManager {
	am := &AccountManager{
		accounts: make(map[string]*model.Account),
		limiters: make(map[string]*rate.Limiter),
	}

	if len(cfg.Accounts) > 0 {
		for _, ac := range cfg.Accounts {
			account := &model.Account{
				ID:     ac.ID,
				Name:   ac.Name,
				ApiKey: ac.APIKey,
				Rate: model.RateLimitConfig{
					QPS:   ac.QPS,
					Burst: ac.Burst,
				},
			}
			am.RegisterAccount(account)
		}
		return am
	}

	// Single-account mode for local development: one default identity.
	if cfg.Auth.APIKey != "" || !cfg.Auth.RequireAPIKey {
		defaultAccount := &model.Account{
			ID:     "default-account",
			Name:   "Default User",
			ApiKey: cfg.Auth.APIKey,
			Rate: model.RateLimitConfig{
				QPS:   10,
				Burst: 20,
			},
		}
		if defaultAccount.ApiKey == "" {
			defaultAccount.ApiKey = "sk-default-12345"
		}
		am.RegisterAccount(defaultAccount)
		am.defaultAccount = defaultAccount
	}

	return am
}

func (am *AccountManager) RegisterAccount(a *model.Account) {
	am.mu.Lock()
	defer am.mu.Unlock()
	if a == nil {
		return
	}
	am.accounts[a.ApiKey] = a

	// QPS 0 means unthrottled rather than blocked.
	limit := rate.Limit(a.Rate.QPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := a.Rate.Burst
	if burst == 0 {
		burst = 1
	}
	am.limiters[a.ID] = rate.NewLimiter(limit, burst)
}

func (am *AccountManager) RemoveAccountByID(id string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	for key, account := range am.accounts {
		if account != nil && account.ID == id {
			delete(am.accounts, key)
			delete(am.limiters, account.ID)
		}
	}
}

func (am *AccountManager) GetAccountByID(id string) (*model.Account, bool) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	for _, account := range am.accounts {
		if account != nil && account.ID == id {
			return account, true
		}
	}
	return nil, false
}

func (am *AccountManager) GetAccountByApiKey(apiKey string) (*model.Account, bool) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	a, ok := am.accounts[apiKey]
	return a, ok
}

func (am *AccountManager) ListAccounts() []*model.Account {
	am.mu.RLock()
	defer am.mu.RUnlock()
	results := make([]*model.Account, 0, len(am.accounts))
	seen := make(map[string]struct{})
	for _, account := range am.accounts {
		if account == nil {
			continue
		}
		if _, ok := seen[account.ID]; ok {
			continue
		}
		seen[account.ID] = struct{}{}
		results = append(results, account)
	}
	return results
}

func (am *AccountManager) DefaultAccount() *model.Account {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.defaultAccount
}

func (am *AccountManager) GetLimiterForAccount(accountID string) *rate.Limiter {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.limiters[accountID]
}
