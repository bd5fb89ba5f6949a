package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/metrics"
	"github.com/alanadi/market/internal/payment"
)

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ──────────────────────────────────────────────────────────────────────────────

// PaymentProvider captures the winner's funds.  Implementations must honour
// the idempotency key: repeating a capture with the same key returns the
// original result instead of charging again.
type PaymentProvider interface {
	CaptureFunds(ctx context.Context, bidderID uuid.UUID, amount decimal.Decimal, idemKey string) (*payment.CaptureResult, error)
}

// RegistrarProvider transfers domain ownership at the registrar, keyed the
// same way.
type RegistrarProvider interface {
	TransferDomain(ctx context.Context, name string, fromUserID, toUserID uuid.UUID, idemKey string) error
}

// SettlementLedger is the atomic write surface settlement needs.
type SettlementLedger interface {
	CreateSettlementFor(ctx context.Context, a *domain.Auction, commissionRate decimal.Decimal) (*domain.Settlement, error)
	CommitSettled(ctx context.Context, a *domain.Auction, s *domain.Settlement) error
	CommitCancelled(ctx context.Context, auctionID uuid.UUID, settlementID *uuid.UUID) error
}

// SettlementStore records settlement step progress between external calls.
type SettlementStore interface {
	GetByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Settlement, error)
	RecordAttempt(ctx context.Context, settlementID uuid.UUID) error
	MarkCaptured(ctx context.Context, settlementID uuid.UUID) error
	MarkTransferred(ctx context.Context, settlementID uuid.UUID) error
	MarkFailed(ctx context.Context, settlementID uuid.UUID, cause string) error
}

// DomainReader resolves the domain asset under auction.
type DomainReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DomainAsset, error)
}

// AutoBidCloser switches off remaining auto-bids once an auction finishes.
type AutoBidCloser interface {
	DeactivateByAuction(ctx context.Context, auctionID uuid.UUID) error
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService finalises closing auctions exactly once.
//
// The sequence is capture, then transfer, then one transaction for the money
// movement and the status flip.  Each external step writes its completion
// timestamp before the next begins, so a retry after any partial failure
// skips the steps that already succeeded, and the idempotency keys make even
// a lost acknowledgement safe.  An auction never reaches settled with the
// winner's funds uncaptured.
type SettlementService struct {
	auctions       AuctionReader
	ledger         SettlementLedger
	store          SettlementStore
	domains        DomainReader
	autoBids       AutoBidCloser
	payments       PaymentProvider
	registrar      RegistrarProvider
	commissionRate decimal.Decimal
	callTimeout    time.Duration
	sink           events.Sink
	logger         *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(
	auctions AuctionReader,
	ledger SettlementLedger,
	store SettlementStore,
	domains DomainReader,
	autoBids AutoBidCloser,
	payments PaymentProvider,
	registrar RegistrarProvider,
	commissionRate decimal.Decimal,
	callTimeout time.Duration,
	sink events.Sink,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		auctions:       auctions,
		ledger:         ledger,
		store:          store,
		domains:        domains,
		autoBids:       autoBids,
		payments:       payments,
		registrar:      registrar,
		commissionRate: commissionRate,
		callTimeout:    callTimeout,
		sink:           sink,
		logger:         logger,
	}
}

// Settle finalises one auction.  Safe to call any number of times and from
// any number of processes: a completed settlement is a no-op, a partial one
// resumes where it stopped.
func (s *SettlementService) Settle(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}

	switch auction.Status {
	case domain.AuctionSettled, domain.AuctionCancelled:
		return nil // already finished, nothing to resume
	case domain.AuctionClosing:
		// proceed
	default:
		return fmt.Errorf("settlement_service.Settle: auction %s: %w", auctionID, domain.ErrAuctionNotClosing)
	}

	settlement, err := s.ledger.CreateSettlementFor(ctx, auction, s.commissionRate)
	if err != nil {
		return err
	}
	if settlement.Status == domain.SettlementCompleted {
		return nil
	}

	if err := s.store.RecordAttempt(ctx, settlement.ID); err != nil {
		return err
	}
	settlement.Attempts++
	if settlement.Attempts > 1 {
		metrics.SettlementRetries.Inc()
		s.logger.Info("retrying settlement",
			"auction_id", auctionID, "settlement_id", settlement.ID, "attempt", settlement.Attempts)
	}

	if !settlement.HasWinner() {
		return s.finishWithoutWinner(ctx, auction, settlement)
	}
	return s.finishWithWinner(ctx, auction, settlement)
}

// finishWithoutWinner terminates an auction that received no qualifying bid
// (none at all, or the reserve was not met).  No money moves; the domain
// stays with the seller.
func (s *SettlementService) finishWithoutWinner(ctx context.Context, auction *domain.Auction, settlement *domain.Settlement) error {
	if err := s.ledger.CommitCancelled(ctx, auction.ID, &settlement.ID); err != nil {
		return err
	}

	metrics.AuctionsSettled.WithLabelValues("cancelled").Inc()
	s.logger.Info("auction finished without winner", "auction_id", auction.ID)

	s.deactivateAutoBids(ctx, auction.ID)
	s.sink.Emit(events.TypeAuctionCancelled, map[string]interface{}{"auction_id": auction.ID})
	return nil
}

// finishWithWinner runs the two external steps and commits the result.
func (s *SettlementService) finishWithWinner(ctx context.Context, auction *domain.Auction, settlement *domain.Settlement) error {
	winnerID := *settlement.WinnerID

	if !settlement.Captured() {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		_, err := s.payments.CaptureFunds(callCtx, winnerID, settlement.Amount, settlement.PaymentKey)
		cancel()
		if err != nil {
			return s.fail(ctx, auction, settlement, fmt.Errorf("capture: %w", err))
		}
		if err := s.store.MarkCaptured(ctx, settlement.ID); err != nil {
			return err
		}
		now := time.Now().UTC()
		settlement.PaymentCapturedAt = &now
	}

	if !settlement.Transferred() {
		asset, err := s.domains.GetByID(ctx, auction.DomainID)
		if err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		err = s.registrar.TransferDomain(callCtx, asset.Name, auction.SellerID, winnerID, settlement.TransferKey)
		cancel()
		if err != nil {
			return s.fail(ctx, auction, settlement, fmt.Errorf("transfer: %w", err))
		}
		if err := s.store.MarkTransferred(ctx, settlement.ID); err != nil {
			return err
		}
		now := time.Now().UTC()
		settlement.TransferredAt = &now
	}

	if err := s.ledger.CommitSettled(ctx, auction, settlement); err != nil {
		return s.fail(ctx, auction, settlement, fmt.Errorf("commit: %w", err))
	}

	metrics.AuctionsSettled.WithLabelValues("settled").Inc()
	s.logger.Info("auction settled",
		"auction_id", auction.ID,
		"winner_id", winnerID,
		"amount", settlement.Amount.String(),
		"commission", settlement.Commission.String())

	s.deactivateAutoBids(ctx, auction.ID)
	s.sink.Emit(events.TypeAuctionSettled, map[string]interface{}{
		"auction_id": auction.ID,
		"winner_id":  winnerID,
		"amount":     settlement.Amount,
	})
	s.sink.EmitTo(winnerID.String(), events.TypeAuctionSettled, map[string]interface{}{
		"auction_id": auction.ID,
		"amount":     settlement.Amount,
	})
	return nil
}

// fail records the failed attempt and leaves the settlement retryable.  The
// auction stays in closing; nothing written so far is undone, so the next
// attempt resumes from the last completed step.
func (s *SettlementService) fail(ctx context.Context, auction *domain.Auction, settlement *domain.Settlement, cause error) error {
	if err := s.store.MarkFailed(ctx, settlement.ID, cause.Error()); err != nil {
		s.logger.Error("failed to record settlement failure",
			"settlement_id", settlement.ID, "error", err)
	}

	s.logger.Warn("settlement attempt failed",
		"auction_id", auction.ID,
		"settlement_id", settlement.ID,
		"attempt", settlement.Attempts,
		"error", cause)

	s.sink.Emit(events.TypeSettlementFailed, map[string]interface{}{
		"auction_id": auction.ID,
		"attempt":    settlement.Attempts,
	})
	return fmt.Errorf("settlement_service.Settle auction %s: %w", auction.ID, cause)
}

func (s *SettlementService) deactivateAutoBids(ctx context.Context, auctionID uuid.UUID) {
	if s.autoBids == nil {
		return
	}
	if err := s.autoBids.DeactivateByAuction(ctx, auctionID); err != nil {
		s.logger.Warn("failed to deactivate auto-bids", "auction_id", auctionID, "error", err)
	}
}
