package model

// PurchaseRequest buys a membership outright, overwriting any prior entry
// for the (account, role) pair. Amounts travel as decimal strings in the
// smallest unit; floats are never accepted for money.
type PurchaseRequest struct {
	Role         string `json:"role" binding:"required"`
	Tier         string `json:"tier" binding:"required"`
	DurationDays int64  `json:"duration_days" binding:"required"`
	Payment      string `json:"payment" binding:"required"`
}

type UpgradeRequest struct {
	Role    string `json:"role" binding:"required"`
	Tier    string `json:"tier" binding:"required"`
	Payment string `json:"payment" binding:"required"`
}

// GrantRequest is the administrative membership path. ExpiresAt 0 grants a
// perpetual membership.
type GrantRequest struct {
	Account   string `json:"account" binding:"required"`
	Role      string `json:"role" binding:"required"`
	Tier      string `json:"tier" binding:"required"`
	ExpiresAt int64  `json:"expires_at"`
}

type MembershipResponse struct {
	Account       string `json:"account"`
	Role          string `json:"role"`
	Tier          string `json:"tier"`
	Active        bool   `json:"active"`
	ExpiresAt     int64  `json:"expires_at"`
	DaysRemaining int64  `json:"days_remaining"`
}

type BetRequest struct {
	Role string `json:"role" binding:"required"`
}

type MarketRequest struct {
	Role string `json:"role" binding:"required"`
}

type DepositRequest struct {
	Asset  string `json:"asset" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type WithdrawRequest struct {
	Asset     string `json:"asset" binding:"required"`
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Role      string `json:"role,omitempty"` // counted against the daily withdrawal quota when set
}

// WithdrawalReceipt is returned on a successful withdrawal.
type WithdrawalReceipt struct {
	ID        string `json:"id"`
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance"`
	CreatedAt int64  `json:"created_at"`
}

// VaultLimitsRequest configures both caps for an asset in one call.
type VaultLimitsRequest struct {
	TransactionLimit string `json:"transaction_limit"`
	RateLimitPeriod  int64  `json:"rate_limit_period"`
	PeriodLimit      string `json:"period_limit"`
}

type AssetStatusResponse struct {
	Asset              string `json:"asset"`
	Balance            string `json:"balance"`
	TransactionLimit   string `json:"transaction_limit"`
	RateLimitPeriod    int64  `json:"rate_limit_period"`
	PeriodLimit        string `json:"period_limit"`
	RemainingAllowance string `json:"remaining_allowance"` // "unlimited" when no rate limit is set
	Paused             bool   `json:"paused"`
}

// TierUpsertRequest is the admin payload for catalog writes. Counter limits
// use -1 for unlimited.
type TierUpsertRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Price       string            `json:"price" binding:"required"`
	Active      bool              `json:"active"`
	Limits      TierLimitsPayload `json:"limits"`
}

type TierLimitsPayload struct {
	DailyBetLimit         int64  `json:"daily_bet_limit"`
	WeeklyBetLimit        int64  `json:"weekly_bet_limit"`
	MonthlyMarketCreation int64  `json:"monthly_market_creation"`
	MaxPositionSize       string `json:"max_position_size"`
	MaxConcurrentMarkets  int64  `json:"max_concurrent_markets"`
	WithdrawalLimit       int64  `json:"withdrawal_limit"`
	CanCreatePrivateMkts  bool   `json:"can_create_private_markets"`
	CanUseAdvanced        bool   `json:"can_use_advanced_features"`
	FeeDiscountBps        int64  `json:"fee_discount_bps"`
}
