package middleware

import (
	"net/http"

	"github.com/forecastdao/tiergate/internal/model"
	"github.com/forecastdao/tiergate/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware applies the per-account HTTP token bucket. Must run
// after AuthMiddleware. This throttles request volume only; tier quota
// enforcement happens in the ledger.
func RateLimitMiddleware(am *service.AccountManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountVal, exists := c.Get(ContextAccountKey)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		account := accountVal.(*model.Account)

		limiter := am.GetLimiterForAccount(account.ID)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
