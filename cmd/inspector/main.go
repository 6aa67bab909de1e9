package main

import (
	"fmt"
	"log"

	"github.com/forecastdao/tiergate/internal/config"
	"github.com/forecastdao/tiergate/internal/tier"
)

// Prints the effective configuration and the tier matrix it would seed.
// Useful for checking what a deployment will actually enforce before
// starting the server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println("--- Server ---")
	fmt.Printf("Port: %s  ReadOnly: %v\n", cfg.Server.Port, cfg.Server.ReadOnly)
	fmt.Printf("Metrics: enabled=%v path=%s\n", cfg.Metrics.Enabled, cfg.Metrics.Path)

	fmt.Println("\n--- Persistence ---")
	fmt.Printf("Postgres DSN set: %v\n", cfg.Database.DSN != "")
	fmt.Printf("Redis addr: %q (usage prefix %q)\n", cfg.Redis.Addr, cfg.Redis.UsagePrefix)

	fmt.Println("\n--- Treasury ---")
	fmt.Printf("Owner: %s  Guardian: %s\n", cfg.Treasury.Owner, cfg.Treasury.Guardian)
	fmt.Printf("Spenders: %v\n", cfg.Treasury.Spenders)
	for _, a := range cfg.Treasury.Assets {
		fmt.Printf("Asset %s: tx_limit=%s period=%ds period_limit=%s\n",
			a.Asset, orUnlimited(a.TransactionLimit), a.RateLimitPeriod, orUnlimited(a.PeriodLimit))
	}

	fmt.Println("\n--- Tier Matrix ---")
	for _, tc := range cfg.Tiers {
		t, ok := tier.Parse(tc.Tier)
		if !ok {
			fmt.Printf("role=%s tier=%q: UNPARSEABLE, would be skipped\n", tc.Role, tc.Tier)
			continue
		}
		fmt.Printf("role=%s tier=%s price=%s active=%v\n", tc.Role, t, tc.Price, tc.Active)
		fmt.Printf("  bets/day=%s bets/week=%s markets/month=%s concurrent=%s withdrawals/day=%s\n",
			counter(tc.Limits.DailyBetLimit), counter(tc.Limits.WeeklyBetLimit),
			counter(tc.Limits.MonthlyMarketCreation), counter(tc.Limits.MaxConcurrentMarkets),
			counter(tc.Limits.WithdrawalLimit))
	}

	fmt.Printf("\n--- Accounts ---\n")
	for _, ac := range cfg.Accounts {
		fmt.Printf("id=%s name=%s qps=%.1f burst=%d\n", ac.ID, ac.Name, ac.QPS, ac.Burst)
	}
}

func counter(v int64) string {
	if v < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", v)
}

func orUnlimited(s string) string {
	if s == "" || s == "0" {
		return "unlimited"
	}
	return s
}
