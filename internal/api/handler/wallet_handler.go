package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/repository"
)

// WalletHandler serves wallet balance and transaction history endpoints.
type WalletHandler struct {
	walletRepo *repository.WalletRepository
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(walletRepo *repository.WalletRepository) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo}
}

// Balance handles GET /api/wallet/balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	wallet, err := h.walletRepo.GetByUserID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"balance":    wallet.Balance,
		"updated_at": wallet.UpdatedAt,
	})
}

// Transactions handles GET /api/wallet/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	wallet, err := h.walletRepo.GetByUserID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	page, limit := pagination(c)
	txs, err := h.walletRepo.GetTransactions(c.Request.Context(), wallet.ID, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, txs, len(txs), page, limit)
}
