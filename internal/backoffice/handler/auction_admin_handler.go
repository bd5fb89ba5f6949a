package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/repository"
	"github.com/alanadi/market/internal/service"
)

// AuctionAdminHandler serves the back-office auction views and interventions.
type AuctionAdminHandler struct {
	auctionSvc  *service.AuctionService
	settlement  service.Settler
	auctionRepo *repository.AuctionRepository
	bidRepo     *repository.BidRepository
}

// NewAuctionAdminHandler creates an AuctionAdminHandler.
func NewAuctionAdminHandler(
	auctionSvc *service.AuctionService,
	settlement service.Settler,
	auctionRepo *repository.AuctionRepository,
	bidRepo *repository.BidRepository,
) *AuctionAdminHandler {
	return &AuctionAdminHandler{
		auctionSvc:  auctionSvc,
		settlement:  settlement,
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
	}
}

// List handles GET /admin/auctions?status=closing.
func (h *AuctionAdminHandler) List(c *gin.Context) {
	status := domain.AuctionStatus(c.DefaultQuery("status", string(domain.AuctionOpen)))
	page, limit := adminPagination(c)

	auctions, err := h.auctionRepo.ListByStatus(c.Request.Context(), status, limit, (page-1)*limit)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondList(c, auctions, len(auctions), page, limit)
}

// Detail handles GET /admin/auctions/:id — the full row plus every bid,
// accepted and rejected.
func (h *AuctionAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	auction, err := h.auctionRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	bids, err := h.bidRepo.ListByAuction(c.Request.Context(), id, false)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"auction": auction, "bids": bids})
}

// ForceCancel handles POST /admin/auctions/:id/cancel — terminates an
// auction regardless of bids.  No money has moved before settlement, so
// cancelling a pre-settlement auction needs no refunds.
func (h *AuctionAdminHandler) ForceCancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	if err := h.auctionSvc.Cancel(c.Request.Context(), uuid.Nil, id, true); err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "cancelled"})
}

// RetrySettlement handles POST /admin/auctions/:id/settle — re-runs
// settlement manually, including for auctions past their retry budget.
func (h *AuctionAdminHandler) RetrySettlement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	if err := h.settlement.Settle(c.Request.Context(), id); err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "settled"})
}
