package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alanadi/market/internal/backoffice/handler"
	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/repository"
	"github.com/alanadi/market/internal/service"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc        *service.AuthService
	AuctionSvc     *service.AuctionService
	SettlementSvc  service.Settler
	UserRepo       *repository.UserRepository
	WalletRepo     *repository.WalletRepository
	AuctionRepo    *repository.AuctionRepository
	BidRepo        *repository.BidRepository
	SettlementRepo *repository.SettlementRepository
	Cfg            *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine, served on its own port.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	auctionH := handler.NewAuctionAdminHandler(deps.AuctionSvc, deps.SettlementSvc, deps.AuctionRepo, deps.BidRepo)
	settlementH := handler.NewSettlementAdminHandler(deps.SettlementRepo, deps.Cfg)
	userH := handler.NewUserAdminHandler(deps.UserRepo, deps.WalletRepo)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		// Auctions
		a := admin.Group("/auctions")
		{
			a.GET("", auctionH.List)
			a.GET("/:id", auctionH.Detail)
			a.POST("/:id/cancel", auctionH.ForceCancel)
			a.POST("/:id/settle", auctionH.RetrySettlement)
		}

		// Settlements
		s := admin.Group("/settlements")
		{
			s.GET("/attention", settlementH.NeedingAttention)
			s.GET("/:auctionID", settlementH.ByAuction)
		}

		// Users
		u := admin.Group("/users")
		{
			u.GET("/:id", userH.Detail)
			u.POST("/:id/suspend", userH.Suspend)
			u.POST("/:id/activate", userH.Activate)
		}

		// Finance
		admin.GET("/finance/report", settlementH.FinanceReport)
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the caller to have a
// backoffice-capable role (admin, ops, readonly).
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		backofficeRoles := map[string]bool{
			"admin":    true,
			"ops":      true,
			"readonly": true,
		}
		if !backofficeRoles[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		// Mutating interventions require more than readonly.
		if c.Request.Method != http.MethodGet && claims.Role == "readonly" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
