// Package scheduler runs the three background goroutines that drive the
// auction lifecycle on the clock:
//  1. openLoop   – flips scheduled auctions to open at their start time.
//  2. closeLoop  – closes expired open auctions and settles them.
//  3. retryLoop  – re-runs settlements stuck in closing after a failure.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces — declared here so the clock can be tested with
// fakes and does not import the repository implementation directly.
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStore is the slice of the auction repository the clock uses.
type AuctionStore interface {
	ListScheduledDue(ctx context.Context, now time.Time) ([]*domain.Auction, error)
	ListExpiredOpen(ctx context.Context, now time.Time) ([]*domain.Auction, error)
	ListStuckClosing(ctx context.Context, maxAttempts int) ([]*domain.Auction, error)
	MarkOpen(ctx context.Context, auctionID uuid.UUID) error
	MarkClosing(ctx context.Context, auctionID uuid.UUID) error
}

// Settler finalises a closing auction.  Satisfied by the settlement service.
type Settler interface {
	Settle(ctx context.Context, auctionID uuid.UUID) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler is the auction clock.  Call Start(ctx) once from main(); cancel
// the context to shut it down gracefully.
//
// Failures are isolated per auction: one auction failing to close or settle
// never stops the scan, and the next tick picks up whatever is still due.
type Scheduler struct {
	auctions AuctionStore
	settler  Settler
	cfg      config.SchedulerConfig
	sink     events.Sink
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(auctions AuctionStore, settler Settler, cfg config.SchedulerConfig, sink events.Sink, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		auctions: auctions,
		settler:  settler,
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
	}
}

// Start launches the three background goroutines.  It returns immediately;
// all loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.openLoop(ctx)
	go s.closeLoop(ctx)
	go s.retryLoop(ctx)
	s.logger.Info("auction clock started",
		"open_interval", s.cfg.OpenInterval,
		"close_interval", s.cfg.CloseInterval,
		"retry_interval", s.cfg.RetryInterval)
}

// ──────────────────────────────────────────────────────────────────────────────
// openLoop
// ──────────────────────────────────────────────────────────────────────────────

// openLoop flips scheduled auctions to open once their start time passes.
func (s *Scheduler) openLoop(ctx context.Context) {
	defer s.recoverAndLog("openLoop")

	ticker := time.NewTicker(s.cfg.OpenInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("openLoop: shutting down")
			return
		case <-ticker.C:
			s.OpenDueAuctions(ctx)
		}
	}
}

// OpenDueAuctions opens every scheduled auction whose start time has passed.
// Exported so the back-office can trigger a scan on demand.
func (s *Scheduler) OpenDueAuctions(ctx context.Context) {
	timer := time.Now()
	defer func() { metrics.ScanDuration.WithLabelValues("open").Observe(time.Since(timer).Seconds()) }()

	due, err := s.auctions.ListScheduledDue(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("openLoop: list scheduled", "err", err)
		return
	}

	for _, a := range due {
		if err := s.auctions.MarkOpen(ctx, a.ID); err != nil {
			// Lost to a concurrent open or a cancel; nothing to do.
			s.logger.Debug("openLoop: skip", "auction_id", a.ID, "err", err)
			continue
		}
		s.logger.Info("auction opened", "auction_id", a.ID, "ends_at", a.EndsAt)
		s.sink.Emit(events.TypeAuctionOpened, map[string]interface{}{
			"auction_id": a.ID,
			"ends_at":    a.EndsAt,
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// closeLoop
// ──────────────────────────────────────────────────────────────────────────────

// closeLoop closes expired open auctions and settles each one.
func (s *Scheduler) closeLoop(ctx context.Context) {
	defer s.recoverAndLog("closeLoop")

	ticker := time.NewTicker(s.cfg.CloseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("closeLoop: shutting down")
			return
		case <-ticker.C:
			s.CloseExpiredAuctions(ctx)
		}
	}
}

// CloseExpiredAuctions scans for open auctions past their end time, flips
// each to closing and settles it.  The closing transition is conditional, so
// a second clock instance (or a racing seller close) scanning the same
// auction loses the flip and skips it; the winner alone runs settlement.
func (s *Scheduler) CloseExpiredAuctions(ctx context.Context) {
	timer := time.Now()
	defer func() { metrics.ScanDuration.WithLabelValues("close").Observe(time.Since(timer).Seconds()) }()

	expired, err := s.auctions.ListExpiredOpen(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("closeLoop: list expired", "err", err)
		return
	}

	for _, a := range expired {
		if err := s.auctions.MarkClosing(ctx, a.ID); err != nil {
			s.logger.Debug("closeLoop: lost closing transition", "auction_id", a.ID, "err", err)
			continue
		}
		s.logger.Info("auction closing", "auction_id", a.ID)
		s.sink.Emit(events.TypeAuctionClosing, map[string]interface{}{"auction_id": a.ID})

		if err := s.settler.Settle(ctx, a.ID); err != nil {
			// The settlement row records the failure; retryLoop takes it from here.
			s.logger.Warn("closeLoop: settlement failed", "auction_id", a.ID, "err", err)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// retryLoop
// ──────────────────────────────────────────────────────────────────────────────

// retryLoop re-runs settlement for auctions stuck in closing.  Auctions whose
// settlement exhausted its attempt budget are excluded; those wait for the
// back-office.
func (s *Scheduler) retryLoop(ctx context.Context) {
	defer s.recoverAndLog("retryLoop")

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retryLoop: shutting down")
			return
		case <-ticker.C:
			s.RetryStuckSettlements(ctx)
		}
	}
}

// RetryStuckSettlements retries settlement for every closing auction still
// inside its attempt budget.
func (s *Scheduler) RetryStuckSettlements(ctx context.Context) {
	timer := time.Now()
	defer func() { metrics.ScanDuration.WithLabelValues("retry").Observe(time.Since(timer).Seconds()) }()

	stuck, err := s.auctions.ListStuckClosing(ctx, s.cfg.MaxSettleAttempts)
	if err != nil {
		s.logger.Error("retryLoop: list stuck", "err", err)
		return
	}

	for _, a := range stuck {
		if err := s.settler.Settle(ctx, a.ID); err != nil {
			s.logger.Warn("retryLoop: settlement still failing", "auction_id", a.ID, "err", err)
		}
	}
}

// recoverAndLog logs a panic from a loop goroutine.  A panicking loop stays
// down until restart; the log line is the alert.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("scheduler loop panic", "loop", loop, "recover", r)
	}
}
