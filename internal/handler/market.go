package handler

import (
	"net/http"

	"github.com/forecastdao/tiergate/internal/middleware"
	"github.com/forecastdao/tiergate/internal/model"
	"github.com/forecastdao/tiergate/internal/service"
	"github.com/gin-gonic/gin"
)

// MarketHandler exposes the quota-debit operations: placing bets, creating
// and closing markets. Each successful POST consumes quota; the allowance
// endpoints are the read-only pre-validation twins.
type MarketHandler struct {
	svc *service.MembershipService
}

func NewMarketHandler(svc *service.MembershipService) *MarketHandler {
	return &MarketHandler{svc: svc}
}

func (h *MarketHandler) PlaceBet(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)

	var req model.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.PlaceBet(c.Request.Context(), account.ID, req.Role); err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded", "usage": h.svc.UsageStats(account.ID, req.Role)})
}

func (h *MarketHandler) BetAllowance(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)
	role := c.Query("role")
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}

	if err := h.svc.BetAllowance(account.ID, role); err != nil {
		c.JSON(http.StatusOK, gin.H{"allowed": false, "reason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true})
}

func (h *MarketHandler) CreateMarket(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)

	var req model.MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.CreateMarket(c.Request.Context(), account.ID, req.Role); err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded", "usage": h.svc.UsageStats(account.ID, req.Role)})
}

func (h *MarketHandler) CloseMarket(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)

	var req model.MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.svc.CloseMarket(c.Request.Context(), account.ID, req.Role)
	c.JSON(http.StatusOK, gin.H{"status": "recorded", "usage": h.svc.UsageStats(account.ID, req.Role)})
}
