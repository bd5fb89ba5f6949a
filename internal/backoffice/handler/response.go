package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alanadi/market/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Admin response helpers
// ──────────────────────────────────────────────────────────────────────────────

// The envelope matches the public API so operator tooling can share clients,
// but error bodies differ: the reader is staff, so internal failures keep
// their real message instead of a generic one.

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

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

// respondAdminError maps a domain error to an HTTP status for the operator
// surface.
func respondAdminError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error())
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error())
	case domain.IsExternal(err):
		respondError(c, http.StatusBadGateway, "external_failure", err.Error())
	case domain.IsAuthError(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

// adminPagination reads page/limit query params with sane defaults for admin
// views, which page larger than the public API.
func adminPagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return
}
