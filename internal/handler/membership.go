package handler

import (
	"net/http"

	"github.com/forecastdao/tiergate/internal/middleware"
	"github.com/forecastdao/tiergate/internal/model"
	"github.com/forecastdao/tiergate/internal/service"
	"github.com/gin-gonic/gin"
)

type MembershipHandler struct {
	svc *service.MembershipService
}

func NewMembershipHandler(svc *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

func (h *MembershipHandler) Purchase(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)

	var req model.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Purchase(c.Request.Context(), account.ID, req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "tier", resp.Tier)
	middleware.AddAuditContext(c, "role", resp.Role)
	c.JSON(http.StatusOK, resp)
}

func (h *MembershipHandler) Upgrade(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)

	var req model.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Upgrade(c.Request.Context(), account.ID, req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "tier", resp.Tier)
	c.JSON(http.StatusOK, resp)
}

func (h *MembershipHandler) Status(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)
	role := c.Param("role")
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}

	c.JSON(http.StatusOK, h.svc.Status(account.ID, role))
}

func (h *MembershipHandler) Usage(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)
	role := c.Param("role")
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}

	c.JSON(http.StatusOK, h.svc.UsageStats(account.ID, role))
}
