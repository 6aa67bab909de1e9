package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/pkg/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFundedVault(t *testing.T) (*Vault, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(epoch)
	v := New("owner", "guardian", clk, nil, nil)
	_, err := v.Deposit(context.Background(), NativeAsset, dec("100"))
	require.NoError(t, err)
	return v, clk
}

func TestDepositAndBalance(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	balance, err := v.Deposit(ctx, NativeAsset, dec("2.5"))
	require.NoError(t, err)
	assert.Equal(t, "102.5", balance.String())
	assert.Equal(t, "102.5", v.Balance(NativeAsset).String())

	_, err = v.Deposit(ctx, NativeAsset, dec("0"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
	_, err = v.Deposit(ctx, NativeAsset, dec("-1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}

func TestWithdrawDebitsBalance(t *testing.T) {
	v, _ := newFundedVault(t)

	require.NoError(t, v.Withdraw(context.Background(), "owner", NativeAsset, "0xabc", dec("40")))
	assert.Equal(t, "60", v.Balance(NativeAsset).String())
}

func TestWithdrawRejectsUnfunded(t *testing.T) {
	v, _ := newFundedVault(t)

	err := v.Withdraw(context.Background(), "owner", NativeAsset, "0xabc", dec("100.01"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientBalance))
	assert.Equal(t, "100", v.Balance(NativeAsset).String())
}

func TestPeriodLimitScenario(t *testing.T) {
	v, clk := newFundedVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetRateLimit(ctx, "owner", NativeAsset, 3600, dec("10")))

	// 4.9 + 5.1 sums exactly to the 10 cap; reaching the cap is allowed,
	// exceeding it is not.
	require.NoError(t, v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("4.9")))
	require.NoError(t, v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("5.1")))

	// Period exhausted: even a dust amount is rejected in full.
	err := v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("0.1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrExceedsPeriodLimit))

	// After the window passes, the full period allowance is back.
	clk.Advance(3601 * time.Second)
	require.NoError(t, v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("10")))
}

func TestPeriodConservation(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetRateLimit(ctx, "owner", NativeAsset, 3600, dec("10")))

	total := decimal.Zero
	amounts := []string{"3", "4", "2.5", "1", "0.5", "0.5"}
	for _, a := range amounts {
		if err := v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec(a)); err == nil {
			total = total.Add(dec(a))
		}
	}
	// No sequence of withdrawals within one un-rolled period exceeds the cap.
	assert.True(t, total.LessThanOrEqual(dec("10")), "spent %s", total)

	remaining, limited := v.GetRemainingPeriodAllowance(NativeAsset)
	assert.True(t, limited)
	assert.Equal(t, dec("10").Sub(total).String(), remaining.String())
}

func TestTransactionLimitCheckedBeforePeriodLimit(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetTransactionLimit(ctx, "owner", NativeAsset, dec("5")))
	require.NoError(t, v.SetRateLimit(ctx, "owner", NativeAsset, 3600, dec("6")))
	require.NoError(t, v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("4")))

	// 7 violates both caps; the transaction-limit error wins.
	err := v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("7"))
	assert.True(t, apperrors.Is(err, apperrors.ErrExceedsTransactionLimit))
}

func TestPauseBlocksWithdrawalsNotDeposits(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	require.NoError(t, v.Pause(ctx, "guardian"))
	assert.True(t, v.Paused())

	err := v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrVaultPaused))

	_, err = v.Deposit(ctx, NativeAsset, dec("5"))
	require.NoError(t, err)
	assert.Equal(t, "105", v.Balance(NativeAsset).String())
}

func TestGuardianCannotUnpause(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	require.NoError(t, v.Pause(ctx, "guardian"))
	err := v.Unpause(ctx, "guardian")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	assert.True(t, v.Paused())

	require.NoError(t, v.Unpause(ctx, "owner"))
	assert.False(t, v.Paused())
	require.NoError(t, v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("1")))
}

func TestPauseRequiresPrivilege(t *testing.T) {
	v, _ := newFundedVault(t)

	err := v.Pause(context.Background(), "mallory")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	assert.False(t, v.Paused())
}

func TestSpenderAuthorization(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	err := v.Withdraw(ctx, "bob", NativeAsset, "0xabc", dec("1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	// Only the owner can grant spend rights.
	err = v.AuthorizeSpender("guardian", "bob")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	require.NoError(t, v.AuthorizeSpender("owner", "bob"))
	assert.True(t, v.IsSpender("bob"))
	require.NoError(t, v.Withdraw(ctx, "bob", NativeAsset, "0xabc", dec("1")))

	require.NoError(t, v.RevokeSpender("owner", "bob"))
	err = v.Withdraw(ctx, "bob", NativeAsset, "0xabc", dec("1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestSetRateLimitRejectsMixedZero(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	err := v.SetRateLimit(ctx, "owner", NativeAsset, 3600, decimal.Zero)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))
	err = v.SetRateLimit(ctx, "owner", NativeAsset, 0, dec("10"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))

	// Both zero disables the rate limit entirely.
	require.NoError(t, v.SetRateLimit(ctx, "owner", NativeAsset, 0, decimal.Zero))
	_, limited := v.GetRemainingPeriodAllowance(NativeAsset)
	assert.False(t, limited)
}

func TestSetRateLimitResetsWindow(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetRateLimit(ctx, "owner", NativeAsset, 3600, dec("10")))
	require.NoError(t, v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("8")))

	// Reconfiguring starts a fresh window with nothing spent.
	require.NoError(t, v.SetRateLimit(ctx, "owner", NativeAsset, 3600, dec("5")))
	remaining, limited := v.GetRemainingPeriodAllowance(NativeAsset)
	assert.True(t, limited)
	assert.Equal(t, "5", remaining.String())
}

func TestLimitSettersRequireOwner(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	err := v.SetTransactionLimit(ctx, "guardian", NativeAsset, dec("5"))
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
	err = v.SetRateLimit(ctx, "guardian", NativeAsset, 3600, dec("10"))
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestAssetsAreIsolated(t *testing.T) {
	v, _ := newFundedVault(t)
	ctx := context.Background()

	_, err := v.Deposit(ctx, "usdc", dec("1000"))
	require.NoError(t, err)
	require.NoError(t, v.SetRateLimit(ctx, "owner", "usdc", 3600, dec("10")))

	// The native asset carries no rate limit and is unaffected.
	require.NoError(t, v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("50")))
	err = v.Withdraw(ctx, "owner", "usdc", "0xabc", dec("11"))
	assert.True(t, apperrors.Is(err, apperrors.ErrExceedsPeriodLimit))
}

type failingTransferer struct{}

func (failingTransferer) Transfer(context.Context, string, string, decimal.Decimal) error {
	return errors.New("rpc timeout")
}

func TestFailedTransferRevertsDebit(t *testing.T) {
	clk := clock.NewMock(epoch)
	v := New("owner", "guardian", clk, failingTransferer{}, nil)
	ctx := context.Background()

	_, err := v.Deposit(ctx, NativeAsset, dec("100"))
	require.NoError(t, err)
	require.NoError(t, v.SetRateLimit(ctx, "owner", NativeAsset, 3600, dec("10")))

	err = v.Withdraw(ctx, "owner", NativeAsset, "0xabc", dec("5"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))

	// Both the balance and the period spend are back where they started.
	assert.Equal(t, "100", v.Balance(NativeAsset).String())
	remaining, _ := v.GetRemainingPeriodAllowance(NativeAsset)
	assert.Equal(t, "10", remaining.String())
}

func TestRestoreRoundTrip(t *testing.T) {
	clk := clock.NewMock(epoch)
	v := New("owner", "guardian", clk, nil, nil)

	v.RestoreAsset(NativeAsset, dec("42"), Limit{
		TransactionLimit: dec("5"),
		RateLimitPeriod:  3600,
		PeriodLimit:      dec("10"),
		PeriodSpent:      dec("7"),
		PeriodStart:      epoch.Unix(),
	})
	v.RestorePaused(true)

	assert.Equal(t, "42", v.Balance(NativeAsset).String())
	assert.True(t, v.Paused())
	remaining, limited := v.GetRemainingPeriodAllowance(NativeAsset)
	assert.True(t, limited)
	assert.Equal(t, "3", remaining.String())
}
