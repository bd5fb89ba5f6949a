package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanadi/market/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondDomainError maps a domain error to the right HTTP status.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrDomainNotOwned),
		errors.Is(err, domain.ErrSelfPurchase):
		respondError(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrSelfBid):
		respondError(c, http.StatusBadRequest, "validation", err.Error())
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error())
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error())
	case domain.IsAuthError(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error())
	case domain.IsExternal(err):
		respondError(c, http.StatusBadGateway, "external_failure", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal", "internal server error")
	}
}
