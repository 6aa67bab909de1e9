package ledger

import (
	"context"
	"sync"

	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/pkg/clock"
	"github.com/forecastdao/tiergate/internal/pkg/logger"
	"github.com/forecastdao/tiergate/internal/pkg/metrics"
	"github.com/forecastdao/tiergate/internal/tier"
)

// Window lengths in seconds. Fixed rolling windows, not calendar-aligned:
// the monthly window is exactly 30 days.
const (
	dailyWindow   = 1 * secondsPerDay
	weeklyWindow  = 7 * secondsPerDay
	monthlyWindow = 30 * secondsPerDay
)

// UsageStats holds the per-(account, role) counters. The windowed counters
// self-reset lazily on next access once their window elapses.
// ActiveMarketsCount is a live gauge, not a windowed rate.
type UsageStats struct {
	DailyBetsCount        int64 `json:"daily_bets_count"`
	WeeklyBetsCount       int64 `json:"weekly_bets_count"`
	MonthlyMarketsCreated int64 `json:"monthly_markets_created"`
	DailyWithdrawals      int64 `json:"daily_withdrawals"`
	ActiveMarketsCount    int64 `json:"active_markets_count"`
	LastDailyReset        int64 `json:"last_daily_reset"`
	LastWeeklyReset       int64 `json:"last_weekly_reset"`
	LastMonthlyReset      int64 `json:"last_monthly_reset"`
}

// roll zeroes windowed counters whose window has elapsed and ratchets the
// reset timestamps forward. Called before every check.
func (s *UsageStats) roll(now int64) {
	if now-s.LastDailyReset >= dailyWindow {
		s.DailyBetsCount = 0
		s.DailyWithdrawals = 0
		s.LastDailyReset = now
	}
	if now-s.LastWeeklyReset >= weeklyWindow {
		s.WeeklyBetsCount = 0
		s.LastWeeklyReset = now
	}
	if now-s.LastMonthlyReset >= monthlyWindow {
		s.MonthlyMarketsCreated = 0
		s.LastMonthlyReset = now
	}
}

// UsageStore persists usage counters after each committed debit.
type UsageStore interface {
	SaveUsage(ctx context.Context, key Key, stats UsageStats) error
}

// UsageTracker enforces the per-tier usage quotas. Each successful check is
// a quota debit: two identical calls in the same window consume two units.
// The Can* methods are the non-mutating pre-validation counterparts.
type UsageTracker struct {
	mu      sync.Mutex
	stats   map[Key]*UsageStats
	catalog *tier.Catalog
	members *MembershipLedger
	clk     clock.Clock
	store   UsageStore
}

func NewUsageTracker(catalog *tier.Catalog, members *MembershipLedger, clk clock.Clock, store UsageStore) *UsageTracker {
	return &UsageTracker{
		stats:   make(map[Key]*UsageStats),
		catalog: catalog,
		members: members,
		clk:     clk,
		store:   store,
	}
}

// Restore loads persisted counters at startup.
func (u *UsageTracker) Restore(key Key, stats UsageStats) {
	u.mu.Lock()
	defer u.mu.Unlock()
	s := stats
	u.stats[key] = &s
}

// CheckAndRecordBet rolls the daily and weekly windows, then debits one bet
// from both if neither limit is exhausted. On rejection nothing beyond the
// window roll is mutated.
func (u *UsageTracker) CheckAndRecordBet(ctx context.Context, account, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := Key{Account: account, Role: role}
	s := u.statsLocked(key)
	s.roll(u.clk.Now().Unix())

	limits := u.limits(account, role)
	if s.DailyBetsCount >= limits.DailyBetLimit {
		metrics.LimitRejects.WithLabelValues("daily_bet_limit").Inc()
		return apperrors.Newf(apperrors.ErrLimitReached,
			"daily bet limit reached (%d/%d)", s.DailyBetsCount, limits.DailyBetLimit)
	}
	if s.WeeklyBetsCount >= limits.WeeklyBetLimit {
		metrics.LimitRejects.WithLabelValues("weekly_bet_limit").Inc()
		return apperrors.Newf(apperrors.ErrLimitReached,
			"weekly bet limit reached (%d/%d)", s.WeeklyBetsCount, limits.WeeklyBetLimit)
	}

	s.DailyBetsCount++
	s.WeeklyBetsCount++
	u.persist(ctx, key, s)
	metrics.QuotaDebits.WithLabelValues("bet").Inc()
	return nil
}

// CanPlaceBet answers "would CheckAndRecordBet succeed right now" without
// consuming quota.
func (u *UsageTracker) CanPlaceBet(account, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	view := u.rolledViewLocked(Key{Account: account, Role: role})
	limits := u.limits(account, role)
	if view.DailyBetsCount >= limits.DailyBetLimit {
		return apperrors.NewLimitReached("daily bet limit reached")
	}
	if view.WeeklyBetsCount >= limits.WeeklyBetLimit {
		return apperrors.NewLimitReached("weekly bet limit reached")
	}
	return nil
}

// CheckAndRecordMarketCreation enforces the 30-day creation window and the
// concurrent-markets gauge. Both must pass before either counter moves.
func (u *UsageTracker) CheckAndRecordMarketCreation(ctx context.Context, account, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := Key{Account: account, Role: role}
	s := u.statsLocked(key)
	s.roll(u.clk.Now().Unix())

	limits := u.limits(account, role)
	if s.MonthlyMarketsCreated >= limits.MonthlyMarketCreation {
		metrics.LimitRejects.WithLabelValues("monthly_market_limit").Inc()
		return apperrors.Newf(apperrors.ErrLimitReached,
			"monthly market creation limit reached (%d/%d)", s.MonthlyMarketsCreated, limits.MonthlyMarketCreation)
	}
	if s.ActiveMarketsCount >= limits.MaxConcurrentMarkets {
		metrics.LimitRejects.WithLabelValues("concurrent_markets").Inc()
		return apperrors.Newf(apperrors.ErrLimitReached,
			"concurrent market limit reached (%d/%d)", s.ActiveMarketsCount, limits.MaxConcurrentMarkets)
	}

	s.MonthlyMarketsCreated++
	s.ActiveMarketsCount++
	u.persist(ctx, key, s)
	metrics.QuotaDebits.WithLabelValues("market_creation").Inc()
	return nil
}

func (u *UsageTracker) CanCreateMarket(account, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	view := u.rolledViewLocked(Key{Account: account, Role: role})
	limits := u.limits(account, role)
	if view.MonthlyMarketsCreated >= limits.MonthlyMarketCreation {
		return apperrors.NewLimitReached("monthly market creation limit reached")
	}
	if view.ActiveMarketsCount >= limits.MaxConcurrentMarkets {
		return apperrors.NewLimitReached("concurrent market limit reached")
	}
	return nil
}

// RecordMarketClosure decrements the live market gauge, floored at zero.
// Never fails.
func (u *UsageTracker) RecordMarketClosure(ctx context.Context, account, role string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := Key{Account: account, Role: role}
	s := u.statsLocked(key)
	if s.ActiveMarketsCount > 0 {
		s.ActiveMarketsCount--
	}
	u.persist(ctx, key, s)
}

// CheckAndRecordWithdrawal debits one withdrawal from the daily window.
func (u *UsageTracker) CheckAndRecordWithdrawal(ctx context.Context, account, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := Key{Account: account, Role: role}
	s := u.statsLocked(key)
	s.roll(u.clk.Now().Unix())

	limits := u.limits(account, role)
	if s.DailyWithdrawals >= limits.WithdrawalLimit {
		metrics.LimitRejects.WithLabelValues("withdrawal_limit").Inc()
		return apperrors.Newf(apperrors.ErrLimitReached,
			"daily withdrawal limit reached (%d/%d)", s.DailyWithdrawals, limits.WithdrawalLimit)
	}

	s.DailyWithdrawals++
	u.persist(ctx, key, s)
	metrics.QuotaDebits.WithLabelValues("withdrawal").Inc()
	return nil
}

func (u *UsageTracker) CanWithdraw(account, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	view := u.rolledViewLocked(Key{Account: account, Role: role})
	if view.DailyWithdrawals >= u.limits(account, role).WithdrawalLimit {
		return apperrors.NewLimitReached("daily withdrawal limit reached")
	}
	return nil
}

// Stats returns a rolled snapshot of the counters without consuming quota
// or persisting the roll.
func (u *UsageTracker) Stats(account, role string) UsageStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rolledViewLocked(Key{Account: account, Role: role})
}

func (u *UsageTracker) statsLocked(key Key) *UsageStats {
	s, ok := u.stats[key]
	if !ok {
		s = &UsageStats{}
		u.stats[key] = s
	}
	return s
}

func (u *UsageTracker) rolledViewLocked(key Key) UsageStats {
	view := UsageStats{}
	if s, ok := u.stats[key]; ok {
		view = *s
	}
	view.roll(u.clk.Now().Unix())
	return view
}

// limits resolves the quotas that govern the account right now. A lapsed or
// absent membership falls back to the NONE-tier limits for the role.
func (u *UsageTracker) limits(account, role string) tier.Limits {
	return u.catalog.GetTier(role, u.members.EffectiveTier(account, role)).Limits
}

func (u *UsageTracker) persist(ctx context.Context, key Key, s *UsageStats) {
	if u.store == nil {
		return
	}
	if err := u.store.SaveUsage(ctx, key, *s); err != nil {
		logger.LogError(ctx, err, "failed to persist usage stats",
			"account", key.Account, "role", key.Role)
	}
}
