package model

// RateLimitConfig is the HTTP token-bucket policy for an account. This is
// transport-level throttling, independent of the tier usage quotas.
type RateLimitConfig struct {
	QPS   float64 `json:"qps"`
	Burst int     `json:"burst"`
}

// Account represents an API consumer (a trader bot, a market operator).
type Account struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	ApiKey string          `json:"api_key"` // gateway-issued access key
	Rate   RateLimitConfig `json:"rate_limit"`
}
