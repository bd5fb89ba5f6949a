package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/service"
)

// BidHandler serves bid placement and bid history endpoints.
type BidHandler struct {
	bidSvc *service.BidService
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bidSvc *service.BidService) *BidHandler {
	return &BidHandler{bidSvc: bidSvc}
}

// placeBidBody is the POST /api/bids payload.
type placeBidBody struct {
	AuctionID uuid.UUID       `json:"auction_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"     binding:"required"`
}

// Place handles POST /api/bids.  Business rejections come back as 200 with
// accepted=false and a reason; only infrastructure failures surface as 5xx.
// A rejection is an answer, not an error: the bidder reads the reason and
// re-bids.
func (h *BidHandler) Place(c *gin.Context) {
	var body placeBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if !body.Amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "validation", "amount must be positive")
		return
	}

	result, err := h.bidSvc.PlaceBid(c.Request.Context(), domain.PlaceBidRequest{
		AuctionID:   body.AuctionID,
		BidderID:    middleware.GetUserID(c),
		Amount:      body.Amount,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	status := http.StatusCreated
	if !result.Accepted {
		status = http.StatusOK
	}
	respondSuccess(c, status, result)
}

// My handles GET /api/bids/my.
func (h *BidHandler) My(c *gin.Context) {
	page, limit := pagination(c)

	bids, err := h.bidSvc.ListByBidder(c.Request.Context(), middleware.GetUserID(c), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, bids, len(bids), page, limit)
}
