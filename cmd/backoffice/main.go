// Package main is the entry point for the alanadi back-office admin server.
// It exposes admin-only endpoints protected by RBAC and an IP allowlist.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/backoffice"
	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/payment"
	"github.com/alanadi/market/internal/registrar"
	"github.com/alanadi/market/internal/repository"
	"github.com/alanadi/market/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting alanadi backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
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

	// ── Repositories & ledger ─────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	domainRepo := repository.NewDomainRepository(db)
	auctionRepo := repository.NewAuctionRepository(db)
	bidRepo := repository.NewBidRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	autoBidRepo := repository.NewAutoBidRepository(db)
	listingRepo := repository.NewListingRepository(db)

	ledger := repository.NewLedger(db, auctionRepo, bidRepo, settlementRepo, domainRepo, walletRepo, listingRepo)

	// ── Services ──────────────────────────────────────────────────────────────
	// No WS hub here; events from admin interventions go nowhere.
	sink := events.NopSink{}

	paymentClient := payment.NewClient(cfg.Payment, logger)
	registrarClient := registrar.NewClient(cfg.Registrar, logger)

	authSvc := service.NewAuthService(db, userRepo, cfg)
	auctionSvc := service.NewAuctionService(auctionRepo, bidRepo, domainRepo, ledger, cfg, sink, logger)
	settlementSvc := service.NewSettlementService(
		auctionRepo, ledger, settlementRepo, domainRepo, autoBidRepo,
		paymentClient, registrarClient,
		decimal.NewFromFloat(cfg.Auction.CommissionRate), cfg.Payment.Timeout, sink, logger)

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:        authSvc,
		AuctionSvc:     auctionSvc,
		SettlementSvc:  settlementSvc,
		UserRepo:       userRepo,
		WalletRepo:     walletRepo,
		AuctionRepo:    auctionRepo,
		BidRepo:        bidRepo,
		SettlementRepo: settlementRepo,
		Cfg:            cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("backoffice server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	db.Close()
	logger.Info("backoffice stopped cleanly")
}
