package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/repository"
	"github.com/alanadi/market/internal/service"
)

// UserHandler serves registration, login and profile endpoints.
type UserHandler struct {
	authSvc  *service.AuthService
	userRepo *repository.UserRepository
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(authSvc *service.AuthService, userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{authSvc: authSvc, userRepo: userRepo}
}

// Register handles POST /api/auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	resp, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Refresh handles POST /api/auth/refresh.
func (h *UserHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation", err.Error())
		return
	}

	access, refresh, err := h.authSvc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// Me handles GET /api/me.
func (h *UserHandler) Me(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user.ToPublicProfile())
}
