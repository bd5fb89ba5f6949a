// Package main is the entry point for the alanadi marketplace auction
// server.  It wires together all services and starts the HTTP server
// alongside the WebSocket hub and the background auction clock.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/api"
	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/payment"
	"github.com/alanadi/market/internal/registrar"
	"github.com/alanadi/market/internal/repository"
	"github.com/alanadi/market/internal/scheduler"
	"github.com/alanadi/market/internal/service"
	"github.com/alanadi/market/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting alanadi market server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Repositories & ledger ──────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	domainRepo := repository.NewDomainRepository(db)
	auctionRepo := repository.NewAuctionRepository(db)
	bidRepo := repository.NewBidRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	autoBidRepo := repository.NewAutoBidRepository(db)
	listingRepo := repository.NewListingRepository(db)

	ledger := repository.NewLedger(db, auctionRepo, bidRepo, settlementRepo, domainRepo, walletRepo, listingRepo)

	// ── 5. WebSocket hub & event sinks ────────────────────────────────────────
	jwtSecret := []byte(cfg.JWT.AccessSecret)
	var allowedOrigins []string
	if ori := os.Getenv("WS_ALLOWED_ORIGINS"); ori != "" {
		for _, o := range strings.Split(ori, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub(jwtSecret, allowedOrigins)

	sink := events.MultiSink{hub}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sink = append(sink, events.NewRedisSink(rdb, cfg.Redis.EventChannel, logger))
		logger.Info("redis event sink enabled", "addr", cfg.Redis.Addr)
	}

	// ── 6. External collaborators ─────────────────────────────────────────────
	paymentClient := payment.NewClient(cfg.Payment, logger)
	registrarClient := registrar.NewClient(cfg.Registrar, logger)

	// ── 7. Services (order matters for injection) ─────────────────────────────
	minIncrement := decimal.NewFromFloat(cfg.Auction.MinIncrement)
	commissionRate := decimal.NewFromFloat(cfg.Auction.CommissionRate)

	authSvc := service.NewAuthService(db, userRepo, cfg)

	bidSvc := service.NewBidService(auctionRepo, ledger, bidRepo, minIncrement, sink, logger)

	auctionSvc := service.NewAuctionService(auctionRepo, bidRepo, domainRepo, ledger, cfg, sink, logger)

	settlementSvc := service.NewSettlementService(
		auctionRepo, ledger, settlementRepo, domainRepo, autoBidRepo,
		paymentClient, registrarClient,
		commissionRate, cfg.Payment.Timeout, sink, logger)

	autoBidSvc := service.NewAutoBidService(autoBidRepo, auctionRepo, bidSvc, minIncrement, logger)

	listingSvc := service.NewListingService(
		listingRepo, domainRepo, auctionRepo, ledger,
		paymentClient, registrarClient,
		commissionRate, cfg.Payment.Timeout, sink, logger)

	// Wire circular dependencies via interfaces
	auctionSvc.SetSettler(settlementSvc)
	bidSvc.SetAutoBidTrigger(autoBidSvc)

	// ── 8. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 9. Start WS Hub ───────────────────────────────────────────────────────
	go hub.Run()
	logger.Info("websocket hub started")

	// ── 10. Auction clock ─────────────────────────────────────────────────────
	clock := scheduler.NewScheduler(auctionRepo, settlementSvc, cfg.Scheduler, sink, logger)
	clock.Start(ctx)

	// ── 11. HTTP Router ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:    authSvc,
		AuctionSvc: auctionSvc,
		BidSvc:     bidSvc,
		AutoBidSvc: autoBidSvc,
		ListingSvc: listingSvc,
		UserRepo:   userRepo,
		WalletRepo: walletRepo,
		DomainRepo: domainRepo,
		Registrar:  registrarClient,
		Hub:        hub,
		Cfg:        cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 12. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 13. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
