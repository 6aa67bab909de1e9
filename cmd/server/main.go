package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forecastdao/tiergate/internal/config"
	"github.com/forecastdao/tiergate/internal/handler"
	"github.com/forecastdao/tiergate/internal/ledger"
	"github.com/forecastdao/tiergate/internal/middleware"
	"github.com/forecastdao/tiergate/internal/pkg/clock"
	"github.com/forecastdao/tiergate/internal/pkg/logger"
	"github.com/forecastdao/tiergate/internal/repository"
	"github.com/forecastdao/tiergate/internal/service"
	"github.com/forecastdao/tiergate/internal/stream"
	"github.com/forecastdao/tiergate/internal/tier"
	"github.com/forecastdao/tiergate/internal/vault"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	clk := clock.System()

	// 2. Initialize Persistence
	// Usage counters (Redis > Memory)
	var usageStore ledger.UsageStore
	var usageRepo *repository.RedisUsageRepo
	var idemStore middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedis(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			usageRepo = repository.NewRedisUsageRepo(redisClient, cfg.Redis.UsagePrefix)
			usageStore = usageRepo
			idemStore = repository.NewRedisIdempotencyStore(redisClient,
				time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if idemStore == nil {
		idemStore = middleware.NewInMemIdempotencyStore()
	}

	// Memberships, vault state, audit trail (Postgres > Memory)
	var membershipRepo *repository.PostgresMembershipRepo
	var vaultRepo *repository.PostgresVaultRepo
	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			membershipRepo = repository.NewPostgresMembershipRepo(db)
			vaultRepo = repository.NewPostgresVaultRepo(db)
			auditRepo = repository.NewPostgresAuditRepo(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, state will be memory-only", "error", err)
		}
	}

	// 3. Initialize Core Ledgers
	catalog := tier.NewCatalog()
	seedCatalog(catalog, cfg)

	var membershipStore ledger.MembershipStore
	if membershipRepo != nil {
		membershipStore = membershipRepo
	}
	members := ledger.NewMembershipLedger(catalog, clk, membershipStore)
	if membershipRepo != nil {
		if entries, err := membershipRepo.LoadAll(context.Background()); err == nil {
			for key, m := range entries {
				members.Restore(key, m)
			}
			logger.Info("Restored memberships", "count", len(entries))
		}
	}

	usage := ledger.NewUsageTracker(catalog, members, clk, usageStore)
	if usageRepo != nil {
		if stats, err := usageRepo.LoadAll(context.Background()); err == nil {
			for key, s := range stats {
				usage.Restore(key, s)
			}
		}
	}

	var vaultStore vault.Store
	if vaultRepo != nil {
		vaultStore = vaultRepo
	}
	treasuryVault := vault.New(cfg.Treasury.Owner, cfg.Treasury.Guardian, clk, &logTransferer{}, vaultStore)
	if vaultRepo != nil {
		restoreVault(treasuryVault, vaultRepo)
	}
	seedVault(treasuryVault, cfg)

	// 4. Initialize Services
	accountManager := service.NewAccountManager(cfg)

	eventHub := stream.NewHub()
	go eventHub.Run()

	auditSvc, err := service.NewAuditService(cfg.Treasury.AuditDir, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	membershipSvc := service.NewMembershipService(catalog, members, usage, eventHub)
	treasurySvc := service.NewTreasuryService(treasuryVault, usage, eventHub, clk)

	// 5. Initialize Handlers
	membershipHandler := handler.NewMembershipHandler(membershipSvc)
	marketHandler := handler.NewMarketHandler(membershipSvc)
	treasuryHandler := handler.NewTreasuryHandler(treasurySvc)
	adminHandler := handler.NewAdminHandler(membershipSvc, treasurySvc, auditSvc, cfg.Treasury.Owner)

	// 6. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))
	r.Use(middleware.AuditMiddleware(auditSvc))

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "tiergate"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg, accountManager))
	v1.Use(middleware.RateLimitMiddleware(accountManager))
	v1.Use(middleware.IdempotencyMiddleware(idemStore))
	{
		v1.POST("/memberships/purchase", membershipHandler.Purchase)
		v1.POST("/memberships/upgrade", membershipHandler.Upgrade)
		v1.GET("/memberships/:role", membershipHandler.Status)
		v1.GET("/usage/:role", membershipHandler.Usage)

		v1.POST("/bets", marketHandler.PlaceBet)
		v1.GET("/bets/allowance", marketHandler.BetAllowance)
		v1.POST("/markets", marketHandler.CreateMarket)
		v1.POST("/markets/close", marketHandler.CloseMarket)

		v1.POST("/treasury/deposits", treasuryHandler.Deposit)
		v1.POST("/treasury/withdrawals", treasuryHandler.Withdraw)
		v1.GET("/treasury/assets/:asset", treasuryHandler.AssetStatus)

		v1.GET("/events", stream.ServeWS(eventHub))
	}

	// Admin Routes
	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.PUT("/tiers/:role/:tier", adminHandler.SetTier)
		admin.GET("/tiers/:role/:tier", adminHandler.GetTier)
		admin.POST("/memberships/grant", adminHandler.Grant)
		admin.PUT("/treasury/limits/:asset", adminHandler.SetVaultLimits)
		admin.POST("/treasury/pause", adminHandler.Pause)
		admin.POST("/treasury/unpause", adminHandler.Unpause)
		admin.PUT("/treasury/spenders/:id", adminHandler.AuthorizeSpender)
		admin.DELETE("/treasury/spenders/:id", adminHandler.RevokeSpender)
		admin.GET("/audit", adminHandler.ListAudit)
	}

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 TierGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eventHub.Stop()
	auditSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// seedCatalog loads the configured tier definitions. The catalog stores
// whatever it is given; tier dominance stays the config author's problem.
func seedCatalog(catalog *tier.Catalog, cfg *config.Config) {
	for _, tc := range cfg.Tiers {
		t, ok := tier.Parse(tc.Tier)
		if !ok {
			logger.Warn("skipping tier config with unknown tier", "tier", tc.Tier, "role", tc.Role)
			continue
		}
		price, err := decimal.NewFromString(tc.Price)
		if err != nil {
			logger.Warn("skipping tier config with bad price", "tier", tc.Tier, "role", tc.Role)
			continue
		}
		maxPosition := decimal.Zero
		if tc.Limits.MaxPositionSize != "" {
			if parsed, err := decimal.NewFromString(tc.Limits.MaxPositionSize); err == nil {
				maxPosition = parsed
			}
		}
		catalog.SetTier(tc.Role, t, tier.Definition{
			Name:        tc.Name,
			Description: tc.Description,
			Price:       price,
			IsActive:    tc.Active,
			Limits: tier.Limits{
				DailyBetLimit:         counterLimit(tc.Limits.DailyBetLimit),
				WeeklyBetLimit:        counterLimit(tc.Limits.WeeklyBetLimit),
				MonthlyMarketCreation: counterLimit(tc.Limits.MonthlyMarketCreation),
				MaxPositionSize:       maxPosition,
				MaxConcurrentMarkets:  counterLimit(tc.Limits.MaxConcurrentMarkets),
				WithdrawalLimit:       counterLimit(tc.Limits.WithdrawalLimit),
				CanCreatePrivateMkts:  tc.Limits.CanCreatePrivateMkts,
				CanUseAdvanced:        tc.Limits.CanUseAdvanced,
				FeeDiscountBps:        tc.Limits.FeeDiscountBps,
			},
		})
	}
	logger.Info("Tier catalog seeded", "roles", len(catalog.Roles()))
}

func counterLimit(v int64) int64 {
	if v < 0 {
		return tier.Unlimited
	}
	return v
}

func restoreVault(v *vault.Vault, repo *repository.PostgresVaultRepo) {
	ctx := context.Background()
	if balances, limits, err := repo.LoadAssets(ctx); err == nil {
		for asset, balance := range balances {
			v.RestoreAsset(asset, balance, limits[asset])
		}
		logger.Info("Restored vault assets", "count", len(balances))
	}
	if paused, err := repo.LoadPaused(ctx); err == nil {
		v.RestorePaused(paused)
	}
}

// seedVault applies configured spenders and asset limits on top of any
// restored state; config wins for limits.
func seedVault(v *vault.Vault, cfg *config.Config) {
	ctx := context.Background()
	owner := cfg.Treasury.Owner
	for _, spender := range cfg.Treasury.Spenders {
		if err := v.AuthorizeSpender(owner, spender); err != nil {
			logger.Warn("failed to authorize configured spender", "spender", spender, "error", err.Error())
		}
	}
	for _, ac := range cfg.Treasury.Assets {
		txLimit := decimal.Zero
		if ac.TransactionLimit != "" {
			if parsed, err := decimal.NewFromString(ac.TransactionLimit); err == nil {
				txLimit = parsed
			}
		}
		periodLimit := decimal.Zero
		if ac.PeriodLimit != "" {
			if parsed, err := decimal.NewFromString(ac.PeriodLimit); err == nil {
				periodLimit = parsed
			}
		}
		if err := v.SetTransactionLimit(ctx, owner, ac.Asset, txLimit); err != nil {
			logger.Warn("failed to set transaction limit", "asset", ac.Asset, "error", err.Error())
		}
		if err := v.SetRateLimit(ctx, owner, ac.Asset, ac.RateLimitPeriod, periodLimit); err != nil {
			logger.Warn("failed to set rate limit", "asset", ac.Asset, "error", err.Error())
		}
	}
}

// logTransferer stands in for the settlement integration: the ledger has
// already committed by the time it runs, so it only records the outbound
// movement.
type logTransferer struct{}

func (logTransferer) Transfer(ctx context.Context, asset, recipient string, amount decimal.Decimal) error {
	logger.Info("outbound transfer", "asset", asset, "recipient", recipient, "amount", amount.String())
	return nil
}
