package middleware

import (
	"net/http"

	"github.com/forecastdao/tiergate/internal/config"
	"github.com/forecastdao/tiergate/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderGatewayKey  = "X-Gateway-Key"
	ContextAccountKey = "account"
)

func AuthMiddleware(cfg *config.Config, am *service.AccountManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			if cfg != nil && !cfg.Auth.RequireAPIKey {
				if account := am.DefaultAccount(); account != nil {
					c.Set(ContextAccountKey, account)
					c.Next()
					return
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		account, ok := am.GetAccountByApiKey(apiKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextAccountKey, account)
		c.Next()
	}
}
