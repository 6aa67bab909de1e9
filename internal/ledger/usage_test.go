package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/pkg/clock"
	"github.com/forecastdao/tiergate/internal/tier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBronzeTrader(t *testing.T, clk clock.Clock) (*UsageTracker, *MembershipLedger) {
	t.Helper()
	catalog := newTestCatalog()
	members := NewMembershipLedger(catalog, clk, nil)
	_, err := members.Purchase(context.Background(), "alice", "trader", tier.Bronze, 30, decimal.NewFromInt(10))
	require.NoError(t, err)
	return NewUsageTracker(catalog, members, clk, nil), members
}

func TestDailyBetLimitExhaustsAndRolls(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	// Bronze allows 10 bets per day.
	for i := 0; i < 10; i++ {
		require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"), "bet %d", i+1)
	}
	err := usage.CheckAndRecordBet(ctx, "alice", "trader")
	assert.True(t, apperrors.Is(err, apperrors.ErrLimitReached))
	assert.Equal(t, int64(10), usage.Stats("alice", "trader").DailyBetsCount)

	// One full day later the window rolls and quota is available again.
	clk.Advance(24 * time.Hour)
	require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	assert.Equal(t, int64(1), usage.Stats("alice", "trader").DailyBetsCount)
}

func TestWeeklyLimitOutlivesDailyRolls(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	// 10 bets/day for 5 days exhausts the weekly cap of 50.
	for day := 0; day < 5; day++ {
		for i := 0; i < 10; i++ {
			require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
		}
		clk.Advance(24 * time.Hour)
	}

	// Daily window is fresh but the weekly counter still blocks.
	err := usage.CheckAndRecordBet(ctx, "alice", "trader")
	assert.True(t, apperrors.Is(err, apperrors.ErrLimitReached))

	s := usage.Stats("alice", "trader")
	assert.Equal(t, int64(0), s.DailyBetsCount)
	assert.Equal(t, int64(50), s.WeeklyBetsCount)

	clk.Advance(2 * 24 * time.Hour)
	require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
}

func TestCheckAndRecordBetIsNotIdempotent(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	// Two identical calls at the same instant consume two units: the check
	// is a debit, not a query.
	require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	assert.Equal(t, int64(2), usage.Stats("alice", "trader").DailyBetsCount)
}

func TestCanPlaceBetDoesNotConsume(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)

	for i := 0; i < 5; i++ {
		require.NoError(t, usage.CanPlaceBet("alice", "trader"))
	}
	assert.Equal(t, int64(0), usage.Stats("alice", "trader").DailyBetsCount)
}

func TestCounterAfterRolloverIsAtMostOne(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	}

	// Regardless of the pre-rollover value, the counter observed after any
	// check call past the window boundary is at most one.
	clk.Advance(36 * time.Hour)
	_ = usage.CheckAndRecordBet(ctx, "alice", "trader")
	assert.LessOrEqual(t, usage.Stats("alice", "trader").DailyBetsCount, int64(1))
}

func TestRejectedBetDoesNotIncrement(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	}
	before := usage.Stats("alice", "trader")
	for i := 0; i < 3; i++ {
		assert.Error(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	}
	assert.Equal(t, before, usage.Stats("alice", "trader"))
}

func TestUnlimitedTierNeverBlocks(t *testing.T) {
	clk := clock.NewMock(epoch)
	catalog := newTestCatalog()
	members := NewMembershipLedger(catalog, clk, nil)
	_, err := members.Grant(context.Background(), "whale", "trader", tier.Gold, 0)
	require.NoError(t, err)
	usage := NewUsageTracker(catalog, members, clk, nil)

	for i := 0; i < 1000; i++ {
		require.NoError(t, usage.CheckAndRecordBet(context.Background(), "whale", "trader"))
	}
}

func TestLapsedMembershipFallsToNoneLimits(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))

	// Once the membership lapses the NONE tier governs, and NONE is not
	// configured for traders, so every limit reads zero.
	clk.Advance(31 * 24 * time.Hour)
	err := usage.CheckAndRecordBet(ctx, "alice", "trader")
	assert.True(t, apperrors.Is(err, apperrors.ErrLimitReached))
}

func TestMarketCreationLimits(t *testing.T) {
	clk := clock.NewMock(epoch)
	catalog := newTestCatalog()
	members := NewMembershipLedger(catalog, clk, nil)
	_, err := members.Purchase(context.Background(), "carol", "creator", tier.Silver, 60, decimal.NewFromInt(100))
	require.NoError(t, err)
	usage := NewUsageTracker(catalog, members, clk, nil)
	ctx := context.Background()

	// Concurrent cap is 3, monthly cap is 5.
	for i := 0; i < 3; i++ {
		require.NoError(t, usage.CheckAndRecordMarketCreation(ctx, "carol", "creator"))
	}
	err = usage.CheckAndRecordMarketCreation(ctx, "carol", "creator")
	assert.True(t, apperrors.Is(err, apperrors.ErrLimitReached))

	// Closing a market frees a concurrent slot but the monthly counter keeps
	// counting.
	usage.RecordMarketClosure(ctx, "carol", "creator")
	require.NoError(t, usage.CheckAndRecordMarketCreation(ctx, "carol", "creator"))
	assert.Equal(t, int64(4), usage.Stats("carol", "creator").MonthlyMarketsCreated)

	usage.RecordMarketClosure(ctx, "carol", "creator")
	require.NoError(t, usage.CheckAndRecordMarketCreation(ctx, "carol", "creator"))

	// Monthly cap of 5 now binds even with free concurrent slots.
	usage.RecordMarketClosure(ctx, "carol", "creator")
	usage.RecordMarketClosure(ctx, "carol", "creator")
	usage.RecordMarketClosure(ctx, "carol", "creator")
	err = usage.CheckAndRecordMarketCreation(ctx, "carol", "creator")
	assert.True(t, apperrors.Is(err, apperrors.ErrLimitReached))

	// The 30-day window rolls the monthly counter; the gauge is unaffected.
	clk.Advance(30 * 24 * time.Hour)
	require.NoError(t, usage.CheckAndRecordMarketCreation(ctx, "carol", "creator"))
	s := usage.Stats("carol", "creator")
	assert.Equal(t, int64(1), s.MonthlyMarketsCreated)
	assert.Equal(t, int64(1), s.ActiveMarketsCount)
}

func TestMarketClosureFloorsAtZero(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	usage.RecordMarketClosure(ctx, "alice", "trader")
	usage.RecordMarketClosure(ctx, "alice", "trader")
	assert.Equal(t, int64(0), usage.Stats("alice", "trader").ActiveMarketsCount)
}

func TestWithdrawalQuota(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	// Bronze allows 2 withdrawals per day.
	require.NoError(t, usage.CanWithdraw("alice", "trader"))
	require.NoError(t, usage.CheckAndRecordWithdrawal(ctx, "alice", "trader"))
	require.NoError(t, usage.CheckAndRecordWithdrawal(ctx, "alice", "trader"))

	err := usage.CheckAndRecordWithdrawal(ctx, "alice", "trader")
	assert.True(t, apperrors.Is(err, apperrors.ErrLimitReached))
	assert.Error(t, usage.CanWithdraw("alice", "trader"))

	// Withdrawal counters share the daily window with bets.
	clk.Advance(24 * time.Hour)
	require.NoError(t, usage.CheckAndRecordWithdrawal(ctx, "alice", "trader"))
}

func TestStatsViewDoesNotPersistRoll(t *testing.T) {
	clk := clock.NewMock(epoch)
	usage, _ := newBronzeTrader(t, clk)
	ctx := context.Background()

	require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	clk.Advance(25 * time.Hour)

	// Stats reports the rolled view without mutating the stored counters:
	// the next real check performs its own roll.
	assert.Equal(t, int64(0), usage.Stats("alice", "trader").DailyBetsCount)
	require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	assert.Equal(t, int64(1), usage.Stats("alice", "trader").DailyBetsCount)
}

type recordingUsageStore struct {
	saves int
}

func (r *recordingUsageStore) SaveUsage(context.Context, Key, UsageStats) error {
	r.saves++
	return nil
}

func TestUsagePersistsOnlyCommittedDebits(t *testing.T) {
	clk := clock.NewMock(epoch)
	catalog := newTestCatalog()
	members := NewMembershipLedger(catalog, clk, nil)
	_, err := members.Purchase(context.Background(), "alice", "trader", tier.Bronze, 30, decimal.NewFromInt(10))
	require.NoError(t, err)

	store := &recordingUsageStore{}
	usage := NewUsageTracker(catalog, members, clk, store)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	}
	assert.Equal(t, 10, store.saves)

	assert.Error(t, usage.CheckAndRecordBet(ctx, "alice", "trader"))
	assert.Equal(t, 10, store.saves)
}
