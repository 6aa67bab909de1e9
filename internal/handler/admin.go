package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/forecastdao/tiergate/internal/middleware"
	"github.com/forecastdao/tiergate/internal/model"
	"github.com/forecastdao/tiergate/internal/pkg/apperrors"
	"github.com/forecastdao/tiergate/internal/service"
	"github.com/forecastdao/tiergate/internal/tier"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminHandler serves catalog writes, grants and treasury administration.
// Vault operations run as the configured owner unless the request names
// another caller (a guardian pausing, for instance); the vault enforces who
// may actually do what.
type AdminHandler struct {
	membership *service.MembershipService
	treasury   *service.TreasuryService
	audit      *service.AuditService
	owner      string
}

func NewAdminHandler(membership *service.MembershipService, treasury *service.TreasuryService, audit *service.AuditService, owner string) *AdminHandler {
	return &AdminHandler{
		membership: membership,
		treasury:   treasury,
		audit:      audit,
		owner:      owner,
	}
}

func (h *AdminHandler) SetTier(c *gin.Context) {
	role := c.Param("role")
	t, ok := tier.Parse(c.Param("tier"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier"})
		return
	}

	var req model.TierUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a decimal string"})
		return
	}
	maxPosition := decimal.Zero
	if req.Limits.MaxPositionSize != "" {
		maxPosition, err = decimal.NewFromString(req.Limits.MaxPositionSize)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_position_size must be a decimal string"})
			return
		}
	}

	def := tier.Definition{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		IsActive:    req.Active,
		Limits: tier.Limits{
			DailyBetLimit:         counterLimit(req.Limits.DailyBetLimit),
			WeeklyBetLimit:        counterLimit(req.Limits.WeeklyBetLimit),
			MonthlyMarketCreation: counterLimit(req.Limits.MonthlyMarketCreation),
			MaxPositionSize:       maxPosition,
			MaxConcurrentMarkets:  counterLimit(req.Limits.MaxConcurrentMarkets),
			WithdrawalLimit:       counterLimit(req.Limits.WithdrawalLimit),
			CanCreatePrivateMkts:  req.Limits.CanCreatePrivateMkts,
			CanUseAdvanced:        req.Limits.CanUseAdvanced,
			FeeDiscountBps:        req.Limits.FeeDiscountBps,
		},
	}
	h.membership.SetTierDefinition(role, t, def)

	middleware.AddAuditContext(c, "role", role)
	middleware.AddAuditContext(c, "tier", t.String())
	c.JSON(http.StatusOK, def)
}

func (h *AdminHandler) GetTier(c *gin.Context) {
	role := c.Param("role")
	t, ok := tier.Parse(c.Param("tier"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier"})
		return
	}

	def := h.membership.TierDefinition(role, t)
	if !def.IsActive && def.Name == "" {
		c.Error(apperrors.Newf(apperrors.ErrNotFound, "tier %s not configured for role %s", t, role))
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, def)
}

func (h *AdminHandler) Grant(c *gin.Context) {
	var req model.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.membership.Grant(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "account", req.Account)
	middleware.AddAuditContext(c, "tier", resp.Tier)
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) SetVaultLimits(c *gin.Context) {
	asset := c.Param("asset")

	var req model.VaultLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.treasury.SetLimits(c.Request.Context(), h.owner, asset, req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "asset", asset)
	c.JSON(http.StatusOK, resp)
}

type pauseRequest struct {
	Caller string `json:"caller"`
}

func (h *AdminHandler) Pause(c *gin.Context) {
	caller := h.owner
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Caller != "" {
		caller = req.Caller
	}

	if err := h.treasury.Pause(c.Request.Context(), caller); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "caller", caller)
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *AdminHandler) Unpause(c *gin.Context) {
	caller := h.owner
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Caller != "" {
		caller = req.Caller
	}

	if err := h.treasury.Unpause(c.Request.Context(), caller); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "caller", caller)
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (h *AdminHandler) AuthorizeSpender(c *gin.Context) {
	spender := c.Param("id")
	if err := h.treasury.AuthorizeSpender(h.owner, spender); err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	middleware.AddAuditContext(c, "spender", spender)
	c.JSON(http.StatusOK, gin.H{"spender": spender, "authorized": true})
}

func (h *AdminHandler) RevokeSpender(c *gin.Context) {
	spender := c.Param("id")
	if err := h.treasury.RevokeSpender(h.owner, spender); err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	middleware.AddAuditContext(c, "spender", spender)
	c.JSON(http.StatusOK, gin.H{"spender": spender, "authorized": false})
}

// ListAudit returns recent audit entries, optionally filtered by account
// and time range.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	accountID := c.Query("account")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			from = &parsed
		}
	}
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			to = &parsed
		}
	}

	records, err := h.audit.List(c.Request.Context(), accountID, limit, from, to)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// counterLimit maps the -1 config/API convention to the unlimited sentinel.
func counterLimit(v int64) int64 {
	if v < 0 {
		return tier.Unlimited
	}
	return v
}
