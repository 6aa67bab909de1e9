package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Log      LogConfig       `mapstructure:"log"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Treasury TreasuryConfig  `mapstructure:"treasury"`
	Tiers    []TierConfig    `mapstructure:"tiers"`
	Accounts []AccountConfig `mapstructure:"accounts"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	UsagePrefix           string `mapstructure:"usage_prefix"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TreasuryConfig struct {
	Owner    string             `mapstructure:"owner"`
	Guardian string             `mapstructure:"guardian"`
	Spenders []string           `mapstructure:"spenders"`
	Assets   []AssetLimitConfig `mapstructure:"assets"`
	AuditDir string             `mapstructure:"audit_dir"`
}

type AssetLimitConfig struct {
	Asset            string `mapstructure:"asset"`
	TransactionLimit string `mapstructure:"transaction_limit"` // decimal string, "" or "0" = unlimited
	RateLimitPeriod  int64  `mapstructure:"rate_limit_period"`  // seconds
	PeriodLimit      string `mapstructure:"period_limit"`
}

// TierConfig seeds one catalog entry at startup. Counter limits use -1 for
// unlimited (mapped to the max-int sentinel internally).
type TierConfig struct {
	Role        string           `mapstructure:"role"`
	Tier        string           `mapstructure:"tier"`
	Name        string           `mapstructure:"name"`
	Description string           `mapstructure:"description"`
	Price       string           `mapstructure:"price"`
	Active      bool             `mapstructure:"active"`
	Limits      TierLimitsConfig `mapstructure:"limits"`
}

type TierLimitsConfig struct {
	DailyBetLimit         int64  `mapstructure:"daily_bet_limit"`
	WeeklyBetLimit        int64  `mapstructure:"weekly_bet_limit"`
	MonthlyMarketCreation int64  `mapstructure:"monthly_market_creation"`
	MaxPositionSize       string `mapstructure:"max_position_size"`
	MaxConcurrentMarkets  int64  `mapstructure:"max_concurrent_markets"`
	WithdrawalLimit       int64  `mapstructure:"withdrawal_limit"`
	CanCreatePrivateMkts  bool   `mapstructure:"can_create_private_markets"`
	CanUseAdvanced        bool   `mapstructure:"can_use_advanced_features"`
	FeeDiscountBps        int64  `mapstructure:"fee_discount_bps"`
}

type AccountConfig struct {
	ID     string  `mapstructure:"id"`
	Name   string  `mapstructure:"name"`
	APIKey string  `mapstructure:"api_key"`
	QPS    float64 `mapstructure:"qps"`
	Burst  int     `mapstructure:"burst"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. TIERGATE_TREASURY_OWNER
	viper.SetEnvPrefix("tiergate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_only", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("redis.usage_prefix", "usage")
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("treasury.owner", "treasury-owner")
	viper.SetDefault("treasury.audit_dir", "./logs")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
