package model

import (
	"time"
)

// AuditLog is one request-scoped audit record. Treasury and membership
// mutations are the interesting entries; the Context map carries
// operation-specific fields added by handlers.
type AuditLog struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody  string `json:"request_body"` // redacted
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
