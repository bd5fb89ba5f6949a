package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/service"
)

// AuctionHandler serves the auction lifecycle and query endpoints.
type AuctionHandler struct {
	auctionSvc *service.AuctionService
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(auctionSvc *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctionSvc: auctionSvc}
}

// Create handles POST /api/auctions.
func (h *AuctionHandler) Create(c *gin.Context) {
	var req service.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	auction, err := h.auctionSvc.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, auction)
}

// List handles GET /api/auctions?status=open&page=1&limit=20.
func (h *AuctionHandler) List(c *gin.Context) {
	status := domain.AuctionStatus(c.DefaultQuery("status", string(domain.AuctionOpen)))
	page, limit := pagination(c)

	auctions, err := h.auctionSvc.ListByStatus(c.Request.Context(), status, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, auctions, len(auctions), page, limit)
}

// GetByID handles GET /api/auctions/:id.
func (h *AuctionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	summary, err := h.auctionSvc.GetSummary(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// ListBids handles GET /api/auctions/:id/bids.
func (h *AuctionHandler) ListBids(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}
	acceptedOnly := c.DefaultQuery("accepted", "true") == "true"

	bids, err := h.auctionSvc.ListBids(c.Request.Context(), id, acceptedOnly)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, bids)
}

// Close handles POST /api/auctions/:id/close (seller only).
func (h *AuctionHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	if err := h.auctionSvc.Close(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "closing"})
}

// Cancel handles DELETE /api/auctions/:id (seller only, before any bid).
func (h *AuctionHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	if err := h.auctionSvc.Cancel(c.Request.Context(), middleware.GetUserID(c), id, false); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "cancelled"})
}

// MySelling handles GET /api/auctions/my/selling.
func (h *AuctionHandler) MySelling(c *gin.Context) {
	auctions, err := h.auctionSvc.ListBySeller(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, auctions)
}

// MyBidding handles GET /api/auctions/my/bidding.
func (h *AuctionHandler) MyBidding(c *gin.Context) {
	auctions, err := h.auctionSvc.ListByBidder(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, auctions)
}

// MyWon handles GET /api/auctions/my/won.
func (h *AuctionHandler) MyWon(c *gin.Context) {
	auctions, err := h.auctionSvc.ListWon(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, auctions)
}

// pagination extracts page/limit query params with sane bounds.
func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
