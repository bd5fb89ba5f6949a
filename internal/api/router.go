package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanadi/market/internal/api/handler"
	"github.com/alanadi/market/internal/api/middleware"
	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/repository"
	"github.com/alanadi/market/internal/service"
	"github.com/alanadi/market/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc    *service.AuthService
	AuctionSvc *service.AuctionService
	BidSvc     *service.BidService
	AutoBidSvc *service.AutoBidService
	ListingSvc *service.ListingService
	UserRepo   *repository.UserRepository
	WalletRepo *repository.WalletRepository
	DomainRepo *repository.DomainRepository
	Registrar  handler.AvailabilityChecker
	Hub        *ws.Hub
	Cfg        *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check & metrics ───────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.UserRepo)
	auctionH := handler.NewAuctionHandler(deps.AuctionSvc)
	bidH := handler.NewBidHandler(deps.BidSvc)
	autoBidH := handler.NewAutoBidHandler(deps.AutoBidSvc)
	listingH := handler.NewListingHandler(deps.ListingSvc)
	walletH := handler.NewWalletHandler(deps.WalletRepo)
	domainH := handler.NewDomainHandler(deps.DomainRepo, deps.Registrar)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for auth endpoints
	bidRL := middleware.RateLimitMiddleware(30)  // 30 req/s per IP for bid endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Auctions (public reads) ──────────────────────────────────────────
		auctions := api.Group("/auctions")
		{
			auctions.GET("", auctionH.List)
			auctions.GET("/:id", auctionH.GetByID)
			auctions.GET("/:id/bids", auctionH.ListBids)
		}

		// ── Listings (public reads) ──────────────────────────────────────────
		listings := api.Group("/listings")
		{
			listings.GET("", listingH.List)
			listings.GET("/:id", listingH.GetByID)
		}

		// ── Domain availability (public) ─────────────────────────────────────
		api.GET("/domains/check", domainH.Check)

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Profile
			authed.GET("/me", userH.Me)

			// Auction lifecycle (sellers)
			authed.POST("/auctions", auctionH.Create)
			authed.POST("/auctions/:id/close", auctionH.Close)
			authed.DELETE("/auctions/:id", auctionH.Cancel)
			authed.GET("/auctions/my/selling", auctionH.MySelling)
			authed.GET("/auctions/my/bidding", auctionH.MyBidding)
			authed.GET("/auctions/my/won", auctionH.MyWon)

			// Fixed-price listings
			authed.POST("/listings", listingH.Create)
			authed.POST("/listings/:id/purchase", listingH.Purchase)
			authed.DELETE("/listings/:id", listingH.Cancel)
			authed.GET("/listings/my/selling", listingH.MySelling)
			authed.GET("/listings/my/purchases", listingH.MyPurchases)

			// Bids
			bids := authed.Group("/bids")
			bids.Use(bidRL)
			{
				bids.POST("", bidH.Place)
				bids.GET("/my", bidH.My)
			}

			// Auto-bids
			autobids := authed.Group("/autobids")
			{
				autobids.POST("", autoBidH.Create)
				autobids.GET("/my", autoBidH.My)
				autobids.PATCH("/:auctionID", autoBidH.Update)
				autobids.DELETE("/:auctionID", autoBidH.Delete)
			}

			// Wallet
			wallet := authed.Group("/wallet")
			{
				wallet.GET("/balance", walletH.Balance)
				wallet.GET("/transactions", walletH.Transactions)
			}

			// Domain portfolio
			authed.GET("/domains/my", domainH.My)
			authed.GET("/domains/:name", domainH.GetByName)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://alanadi.market":     true,
				"https://www.alanadi.market": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
