package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/repository"
)

// SettlementAdminHandler serves back-office settlement views.
type SettlementAdminHandler struct {
	settlementRepo *repository.SettlementRepository
	cfg            *config.Config
}

// NewSettlementAdminHandler creates a SettlementAdminHandler.
func NewSettlementAdminHandler(settlementRepo *repository.SettlementRepository, cfg *config.Config) *SettlementAdminHandler {
	return &SettlementAdminHandler{settlementRepo: settlementRepo, cfg: cfg}
}

// NeedingAttention handles GET /admin/settlements/attention — settlements
// that failed repeatedly and exhausted the clock's retry budget.
func (h *SettlementAdminHandler) NeedingAttention(c *gin.Context) {
	settlements, err := h.settlementRepo.ListNeedingAttention(
		c.Request.Context(), h.cfg.Scheduler.MaxSettleAttempts)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, settlements)
}

// ByAuction handles GET /admin/settlements/:auctionID.
func (h *SettlementAdminHandler) ByAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid auction id")
		return
	}

	s, err := h.settlementRepo.GetByAuction(c.Request.Context(), auctionID)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, s)
}

// FinanceReport handles GET /admin/finance/report — settled volume and
// commission totals.
func (h *SettlementAdminHandler) FinanceReport(c *gin.Context) {
	summary, err := h.settlementRepo.Summary(c.Request.Context())
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}
