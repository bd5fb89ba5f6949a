package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/service"
)

// AutoBidHandler serves delegated-bidding endpoints.
type AutoBidHandler struct {
	autoBidSvc *service.AutoBidService
}

// NewAutoBidHandler creates an AutoBidHandler.
func NewAutoBidHandler(autoBidSvc *service.AutoBidService) *AutoBidHandler {
	return &AutoBidHandler{autoBidSvc: autoBidSvc}
}

// Create handles POST /api/autobids.
func (h *AutoBidHandler) Create(c *gin.Context) {
	var req service.CreateAutoBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if !req.MaxAmount.IsPositive() {
		respondError(c, http.StatusBadRequest, "validation", "max_amount must be positive")
		return
	}

	ab, err := h.autoBidSvc.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, ab)
}

// Update handles PATCH /api/autobids/:auctionID.
func (h *AutoBidHandler) Update(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	var body struct {
		MaxAmount decimal.Decimal  `json:"max_amount" binding:"required"`
		Increment *decimal.Decimal `json:"increment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	ab, err := h.autoBidSvc.UpdateCeiling(c.Request.Context(), middleware.GetUserID(c), auctionID, body.MaxAmount, body.Increment)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ab)
}

// Delete handles DELETE /api/autobids/:auctionID.
func (h *AutoBidHandler) Delete(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	if err := h.autoBidSvc.Deactivate(c.Request.Context(), middleware.GetUserID(c), auctionID); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deactivated"})
}

// My handles GET /api/autobids/my.
func (h *AutoBidHandler) My(c *gin.Context) {
	abs, err := h.autoBidSvc.ListByBidder(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, abs)
}
