package tier

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is an ordered membership level. Higher numeric value means a higher
// tier; comparisons between tiers use the numeric ordering directly.
type Tier int

const (
	None Tier = iota
	Bronze
	Silver
	Gold
	Platinum
)

// Unlimited is the sentinel for "no limit" on counter quotas. Comparisons
// against it are always false for any real counter; additions involving it
// must saturate instead of overflowing.
const Unlimited int64 = math.MaxInt64

func (t Tier) String() string {
	switch t {
	case None:
		return "NONE"
	case Bronze:
		return "BRONZE"
	case Silver:
		return "SILVER"
	case Gold:
		return "GOLD"
	case Platinum:
		return "PLATINUM"
	default:
		return "UNKNOWN"
	}
}

// Parse maps a tier name (case-insensitive) to its Tier value.
func Parse(s string) (Tier, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return None, true
	case "BRONZE":
		return Bronze, true
	case "SILVER":
		return Silver, true
	case "GOLD":
		return Gold, true
	case "PLATINUM":
		return Platinum, true
	default:
		return None, false
	}
}

// Limits are the per-tier usage quotas and feature flags. Counter limits use
// the Unlimited sentinel rather than a special-cased bypass, so unlimited
// tiers flow through the same check path.
type Limits struct {
	DailyBetLimit         int64           `json:"daily_bet_limit" mapstructure:"daily_bet_limit"`
	WeeklyBetLimit        int64           `json:"weekly_bet_limit" mapstructure:"weekly_bet_limit"`
	MonthlyMarketCreation int64           `json:"monthly_market_creation" mapstructure:"monthly_market_creation"`
	MaxPositionSize       decimal.Decimal `json:"max_position_size" mapstructure:"-"`
	MaxConcurrentMarkets  int64           `json:"max_concurrent_markets" mapstructure:"max_concurrent_markets"`
	WithdrawalLimit       int64           `json:"withdrawal_limit" mapstructure:"withdrawal_limit"`
	CanCreatePrivateMkts  bool            `json:"can_create_private_markets" mapstructure:"can_create_private_markets"`
	CanUseAdvanced        bool            `json:"can_use_advanced_features" mapstructure:"can_use_advanced_features"`
	FeeDiscountBps        int64           `json:"fee_discount_bps" mapstructure:"fee_discount_bps"`
}

// Definition is the catalog entry for a (role, tier) pair.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Limits      Limits          `json:"limits"`
	IsActive    bool            `json:"is_active"`
}
