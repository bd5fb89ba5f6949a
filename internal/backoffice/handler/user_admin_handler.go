package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alanadi/market/internal/repository"
)

// UserAdminHandler serves back-office user management.
type UserAdminHandler struct {
	userRepo   *repository.UserRepository
	walletRepo *repository.WalletRepository
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(userRepo *repository.UserRepository, walletRepo *repository.WalletRepository) *UserAdminHandler {
	return &UserAdminHandler{userRepo: userRepo, walletRepo: walletRepo}
}

// Detail handles GET /admin/users/:id — the profile plus wallet state.
func (h *UserAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid user id")
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	wallet, err := h.walletRepo.GetByUserID(c.Request.Context(), id)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"user":   user.ToPublicProfile(),
		"wallet": wallet,
	})
}

// Suspend handles POST /admin/users/:id/suspend.
func (h *UserAdminHandler) Suspend(c *gin.Context) {
	h.setActive(c, false)
}

// Activate handles POST /admin/users/:id/activate.
func (h *UserAdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserAdminHandler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation", "invalid user id")
		return
	}
	if err := h.userRepo.SetActive(c.Request.Context(), id, active); err != nil {
		respondAdminError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"is_active": active})
}
