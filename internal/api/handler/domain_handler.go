package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/registrar"
	"github.com/alanadi/market/internal/repository"
)

// AvailabilityChecker queries the registrar for a name's availability.
// Satisfied by the registrar client.
type AvailabilityChecker interface {
	CheckAvailable(ctx context.Context, name string) (*registrar.Availability, error)
}

// DomainHandler serves the domain-portfolio endpoints.
type DomainHandler struct {
	domainRepo *repository.DomainRepository
	checker    AvailabilityChecker
}

// NewDomainHandler creates a DomainHandler.
func NewDomainHandler(domainRepo *repository.DomainRepository, checker AvailabilityChecker) *DomainHandler {
	return &DomainHandler{domainRepo: domainRepo, checker: checker}
}

// My handles GET /api/domains/my.
func (h *DomainHandler) My(c *gin.Context) {
	domains, err := h.domainRepo.ListByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, domains)
}

// GetByName handles GET /api/domains/:name.
func (h *DomainHandler) GetByName(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Param("name")))
	if name == "" {
		respondError(c, http.StatusBadRequest, "validation", "domain name required")
		return
	}

	d, err := h.domainRepo.GetByName(c.Request.Context(), name)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, d)
}

// Check handles GET /api/domains/check?name=example.com — availability at
// the registrar, for names not yet in the marketplace.
func (h *DomainHandler) Check(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Query("name")))
	if name == "" || !strings.Contains(name, ".") {
		respondError(c, http.StatusBadRequest, "validation", "valid domain name required")
		return
	}

	avail, err := h.checker.CheckAvailable(c.Request.Context(), name)
	if err != nil {
		respondError(c, http.StatusBadGateway, "external_failure", "registrar lookup failed")
		return
	}
	respondSuccess(c, http.StatusOK, avail)
}
