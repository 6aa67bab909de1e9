package handler

import (
	"net/http"

	"github.com/forecastdao/tiergate/internal/middleware"
	"github.com/forecastdao/tiergate/internal/model"
	"github.com/forecastdao/tiergate/internal/service"
	"github.com/gin-gonic/gin"
)

type TreasuryHandler struct {
	svc *service.TreasuryService
}

func NewTreasuryHandler(svc *service.TreasuryService) *TreasuryHandler {
	return &TreasuryHandler{svc: svc}
}

func (h *TreasuryHandler) Deposit(c *gin.Context) {
	var req model.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Deposit(c.Request.Context(), req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "asset", req.Asset)
	c.JSON(http.StatusOK, resp)
}

func (h *TreasuryHandler) Withdraw(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)

	var req model.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.svc.Withdraw(c.Request.Context(), account.ID, req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	middleware.AddAuditContext(c, "receipt_id", receipt.ID)
	middleware.AddAuditContext(c, "asset", req.Asset)
	c.JSON(http.StatusOK, receipt)
}

func (h *TreasuryHandler) AssetStatus(c *gin.Context) {
	asset := c.Param("asset")
	if asset == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset is required"})
		return
	}
	c.JSON(http.StatusOK, h.svc.AssetStatus(asset))
}
