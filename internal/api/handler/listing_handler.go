package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/service"
)

// ListingHandler serves the fixed-price listing endpoints.
type ListingHandler struct {
	listingSvc *service.ListingService
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(listingSvc *service.ListingService) *ListingHandler {
	return &ListingHandler{listingSvc: listingSvc}
}

// Create handles POST /api/listings.
func (h *ListingHandler) Create(c *gin.Context) {
	var req service.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	listing, err := h.listingSvc.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, listing)
}

// List handles GET /api/listings?page=1&limit=20 — active listings only.
func (h *ListingHandler) List(c *gin.Context) {
	page, limit := pagination(c)

	listings, err := h.listingSvc.ListActive(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, listings, len(listings), page, limit)
}

// GetByID handles GET /api/listings/:id.
func (h *ListingHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid listing id")
		return
	}

	summary, err := h.listingSvc.GetSummary(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// Purchase handles POST /api/listings/:id/purchase.
func (h *ListingHandler) Purchase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid listing id")
		return
	}

	listing, err := h.listingSvc.Purchase(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, listing)
}

// Cancel handles DELETE /api/listings/:id (seller only, while active).
func (h *ListingHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid listing id")
		return
	}

	if err := h.listingSvc.Cancel(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "cancelled"})
}

// MySelling handles GET /api/listings/my/selling.
func (h *ListingHandler) MySelling(c *gin.Context) {
	listings, err := h.listingSvc.ListBySeller(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, listings)
}

// MyPurchases handles GET /api/listings/my/purchases.
func (h *ListingHandler) MyPurchases(c *gin.Context) {
	listings, err := h.listingSvc.ListPurchases(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, listings)
}
