package vault

import (
	"context"
	"sync"

	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/pkg/clock"
	"github.com/forecastdao/tiergate/internal/pkg/logger"
	"github.com/forecastdao/tiergate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// NativeAsset is the sentinel asset identifier for the chain-native token.
const NativeAsset = "native"

// Limit is the per-asset withdrawal policy. TransactionLimit zero means no
// per-transaction cap; RateLimitPeriod and PeriodLimit are both zero
// (disabled) or both nonzero.
type Limit struct {
	TransactionLimit decimal.Decimal `json:"transaction_limit"`
	RateLimitPeriod  int64           `json:"rate_limit_period"`
	PeriodLimit      decimal.Decimal `json:"period_limit"`
	PeriodSpent      decimal.Decimal `json:"period_spent"`
	PeriodStart      int64           `json:"period_start"`
}

// Transferer performs the external funds movement once the ledger has fully
// committed. The vault never interleaves external calls with its own state
// mutation.
type Transferer interface {
	Transfer(ctx context.Context, asset, recipient string, amount decimal.Decimal) error
}

// Store persists vault state after each committed mutation.
type Store interface {
	SaveAsset(ctx context.Context, asset string, balance decimal.Decimal, limit Limit) error
	SavePaused(ctx context.Context, paused bool) error
}

// Vault is the rate-limited treasury ledger. All operations are atomic:
// every precondition is checked before any state moves, and a rejected call
// leaves the ledger untouched apart from lazy rate-window rolls.
type Vault struct {
	mu       sync.Mutex
	owner    string
	guardian string
	spenders map[string]bool
	balances map[string]decimal.Decimal
	limits   map[string]*Limit
	paused   bool
	clk      clock.Clock
	transfer Transferer
	store    Store
}

func New(owner, guardian string, clk clock.Clock, transfer Transferer, store Store) *Vault {
	return &Vault{
		owner:    owner,
		guardian: guardian,
		spenders: make(map[string]bool),
		balances: make(map[string]decimal.Decimal),
		limits:   make(map[string]*Limit),
		clk:      clk,
		transfer: transfer,
		store:    store,
	}
}

// RestoreAsset loads persisted balance and limits at startup.
func (v *Vault) RestoreAsset(asset string, balance decimal.Decimal, limit Limit) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[asset] = balance
	l := limit
	v.limits[asset] = &l
}

// RestorePaused loads the persisted pause flag at startup.
func (v *Vault) RestorePaused(paused bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = paused
}

// Deposit credits the asset balance. Deposits are never blocked, including
// while the vault is paused.
func (v *Vault) Deposit(ctx context.Context, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.NewInvalidRequest("deposit amount must be positive")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	balance := v.balances[asset].Add(amount)
	v.balances[asset] = balance
	v.persistAsset(ctx, asset)

	metrics.Deposits.WithLabelValues(asset).Inc()
	return balance, nil
}

// Withdraw debits the asset balance for an authorized spender. Check order
// is fixed: pause, authorization, request shape, balance, transaction
// limit, then period limit — a request violating both caps reports the
// transaction-limit error.
func (v *Vault) Withdraw(ctx context.Context, caller, asset, recipient string, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		metrics.Withdrawals.WithLabelValues("paused").Inc()
		return apperrors.New(apperrors.ErrVaultPaused, "vault is paused", nil)
	}
	if caller != v.owner && !v.spenders[caller] {
		metrics.Withdrawals.WithLabelValues("unauthorized").Inc()
		return apperrors.Newf(apperrors.ErrUnauthorized, "%s is not an authorized spender", caller)
	}
	if !amount.IsPositive() {
		return apperrors.NewInvalidRequest("withdrawal amount must be positive")
	}
	if recipient == "" {
		return apperrors.NewInvalidRequest("withdrawal recipient is required")
	}

	balance := v.balances[asset]
	if amount.GreaterThan(balance) {
		metrics.Withdrawals.WithLabelValues("insufficient_balance").Inc()
		return apperrors.Newf(apperrors.ErrInsufficientBalance,
			"balance %s below requested %s", balance, amount)
	}

	limit := v.limitLocked(asset)
	if !limit.TransactionLimit.IsZero() && amount.GreaterThan(limit.TransactionLimit) {
		metrics.Withdrawals.WithLabelValues("transaction_limit").Inc()
		return apperrors.Newf(apperrors.ErrExceedsTransactionLimit,
			"amount %s exceeds per-transaction limit %s", amount, limit.TransactionLimit)
	}
	if limit.RateLimitPeriod != 0 {
		v.rollPeriodLocked(limit)
		// Strict: a withdrawal that would push cumulative spend over the
		// cap is rejected in full, never partially filled.
		if limit.PeriodSpent.Add(amount).GreaterThan(limit.PeriodLimit) {
			metrics.Withdrawals.WithLabelValues("period_limit").Inc()
			return apperrors.Newf(apperrors.ErrExceedsPeriodLimit,
				"amount %s would exceed period limit %s (spent %s)",
				amount, limit.PeriodLimit, limit.PeriodSpent)
		}
	}

	// All checks passed: commit state, then invoke the external transfer.
	// The lock is held across the hook so no caller observes the debit
	// before the transfer settles; on hook failure the debit is reverted
	// within the same critical section.
	v.balances[asset] = balance.Sub(amount)
	if limit.RateLimitPeriod != 0 {
		limit.PeriodSpent = limit.PeriodSpent.Add(amount)
	}

	if v.transfer != nil {
		if err := v.transfer.Transfer(ctx, asset, recipient, amount); err != nil {
			v.balances[asset] = balance
			if limit.RateLimitPeriod != 0 {
				limit.PeriodSpent = limit.PeriodSpent.Sub(amount)
			}
			metrics.Withdrawals.WithLabelValues("transfer_failed").Inc()
			return apperrors.New(apperrors.ErrInternal, "external transfer failed", err)
		}
	}

	v.persistAsset(ctx, asset)
	metrics.Withdrawals.WithLabelValues("ok").Inc()
	return nil
}

// SetTransactionLimit configures the per-transaction cap (zero disables).
func (v *Vault) SetTransactionLimit(ctx context.Context, caller, asset string, limit decimal.Decimal) error {
	if limit.IsNegative() {
		return apperrors.NewInvalidRequest("transaction limit cannot be negative")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return apperrors.NewUnauthorized("only the owner can set limits")
	}
	v.limitLocked(asset).TransactionLimit = limit
	v.persistAsset(ctx, asset)
	return nil
}

// SetRateLimit configures the rolling-window cap. Period and limit must
// both be zero (disabled) or both nonzero.
func (v *Vault) SetRateLimit(ctx context.Context, caller, asset string, period int64, limit decimal.Decimal) error {
	if period < 0 || limit.IsNegative() {
		return apperrors.NewInvalidRequest("rate limit parameters cannot be negative")
	}
	if (period == 0) != limit.IsZero() {
		return apperrors.New(apperrors.ErrInvalidConfiguration,
			"rate-limit period and limit must both be zero or both be nonzero", nil)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return apperrors.NewUnauthorized("only the owner can set limits")
	}
	l := v.limitLocked(asset)
	l.RateLimitPeriod = period
	l.PeriodLimit = limit
	l.PeriodSpent = decimal.Zero
	l.PeriodStart = v.clk.Now().Unix()
	v.persistAsset(ctx, asset)
	return nil
}

// Pause freezes withdrawals. The guardian can freeze but not unfreeze; the
// asymmetry is the emergency-brake design.
func (v *Vault) Pause(ctx context.Context, caller string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner && caller != v.guardian {
		return apperrors.NewUnauthorized("only the owner or guardian can pause")
	}
	v.paused = true
	v.persistPaused(ctx)
	return nil
}

func (v *Vault) Unpause(ctx context.Context, caller string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return apperrors.NewUnauthorized("only the owner can unpause")
	}
	v.paused = false
	v.persistPaused(ctx)
	return nil
}

func (v *Vault) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// AuthorizeSpender lets the owner add a spender. The owner is always
// implicitly authorized.
func (v *Vault) AuthorizeSpender(caller, spender string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return apperrors.NewUnauthorized("only the owner can manage spenders")
	}
	if spender == "" {
		return apperrors.NewInvalidRequest("spender id is required")
	}
	v.spenders[spender] = true
	return nil
}

func (v *Vault) RevokeSpender(caller, spender string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return apperrors.NewUnauthorized("only the owner can manage spenders")
	}
	delete(v.spenders, spender)
	return nil
}

func (v *Vault) IsSpender(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return id == v.owner || v.spenders[id]
}

func (v *Vault) Balance(asset string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[asset]
}

// GetRemainingPeriodAllowance returns what can still be withdrawn in the
// current window. limited is false when no rate limit is configured.
func (v *Vault) GetRemainingPeriodAllowance(asset string) (allowance decimal.Decimal, limited bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	limit, ok := v.limits[asset]
	if !ok || limit.RateLimitPeriod == 0 {
		return decimal.Zero, false
	}
	spent := limit.PeriodSpent
	if v.clk.Now().Unix()-limit.PeriodStart >= limit.RateLimitPeriod {
		spent = decimal.Zero
	}
	remaining := limit.PeriodLimit.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining, true
}

// GetLimit returns a copy of the asset limit configuration.
func (v *Vault) GetLimit(asset string) Limit {
	v.mu.Lock()
	defer v.mu.Unlock()
	if l, ok := v.limits[asset]; ok {
		return *l
	}
	return Limit{}
}

func (v *Vault) limitLocked(asset string) *Limit {
	l, ok := v.limits[asset]
	if !ok {
		l = &Limit{}
		v.limits[asset] = l
	}
	return l
}

func (v *Vault) rollPeriodLocked(l *Limit) {
	now := v.clk.Now().Unix()
	if now-l.PeriodStart >= l.RateLimitPeriod {
		l.PeriodSpent = decimal.Zero
		l.PeriodStart = now
	}
}

func (v *Vault) persistAsset(ctx context.Context, asset string) {
	if v.store == nil {
		return
	}
	if err := v.store.SaveAsset(ctx, asset, v.balances[asset], *v.limitLocked(asset)); err != nil {
		logger.LogError(ctx, err, "failed to persist vault asset", "asset", asset)
	}
}

func (v *Vault) persistPaused(ctx context.Context) {
	if v.store == nil {
		return
	}
	if err := v.store.SavePaused(ctx, v.paused); err != nil {
		logger.LogError(ctx, err, "failed to persist vault pause state")
	}
}
