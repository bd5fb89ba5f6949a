package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ──────────────────────────────────────────────────────────────────────────────

// AuctionReader provides the auction snapshots bid validation runs against.
type AuctionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
}

// BidLedger is the atomic write surface the bid path needs.  CommitBid must
// guarantee that of any set of concurrent calls against the same auction
// snapshot, at most one succeeds; the rest return ErrBidConflict.
type BidLedger interface {
	CommitBid(ctx context.Context, a *domain.Auction, bid *domain.Bid) error
	RecordRejectedBid(ctx context.Context, bid *domain.Bid) error
}

// BidHistory reads stored bids back for query endpoints.
type BidHistory interface {
	ListByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error)
}

// AutoBidTrigger reacts to a new standing bid by re-bidding for delegated
// bidders.  Wired via setter after construction to break the service cycle.
type AutoBidTrigger interface {
	ProcessAutoBids(ctx context.Context, auctionID uuid.UUID)
}

// ──────────────────────────────────────────────────────────────────────────────
// BidService
// ──────────────────────────────────────────────────────────────────────────────

// BidService accepts or rejects bids against open auctions.
//
// Correctness does not depend on locks here: every validation runs against a
// snapshot, and the decisive step is the ledger's version-guarded conditional
// update.  A snapshot gone stale between validation and commit simply loses
// the conditional update and is rejected, never half-applied.
type BidService struct {
	auctions  AuctionReader
	ledger    BidLedger
	history   BidHistory
	increment decimal.Decimal
	sink      events.Sink
	autoBids  AutoBidTrigger
	logger    *slog.Logger
}

// NewBidService creates a BidService.  minIncrement is the amount every new
// bid must exceed the standing bid by.
func NewBidService(auctions AuctionReader, ledger BidLedger, history BidHistory, minIncrement decimal.Decimal, sink events.Sink, logger *slog.Logger) *BidService {
	return &BidService{
		auctions:  auctions,
		ledger:    ledger,
		history:   history,
		increment: minIncrement,
		sink:      sink,
		logger:    logger,
	}
}

// ListByBidder returns a user's bid history.
func (s *BidService) ListByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	return s.history.ListByBidder(ctx, bidderID, limit, offset)
}

// SetAutoBidTrigger wires the auto-bid engine in after construction.
func (s *BidService) SetAutoBidTrigger(t AutoBidTrigger) {
	s.autoBids = t
}

// PlaceBid validates and attempts to commit a bid.  Business rejections come
// back as a BidResult with Accepted=false and a reason, not as an error;
// errors are reserved for infrastructure failures.
//
// Rejected bids are stored for audit but never touch auction state.
func (s *BidService) PlaceBid(ctx context.Context, req domain.PlaceBidRequest) (*domain.BidResult, error) {
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}

	auction, err := s.auctions.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}

	if reason := s.validate(auction, req); reason != domain.RejectNone {
		return s.reject(ctx, req, reason)
	}

	bid := &domain.Bid{
		ID:          uuid.New(),
		AuctionID:   req.AuctionID,
		BidderID:    req.BidderID,
		Amount:      req.Amount,
		Accepted:    true,
		IsAutoBid:   req.IsAutoBid,
		SubmittedAt: req.SubmittedAt,
		CreatedAt:   time.Now().UTC(),
	}

	prevBidder := auction.CurrentBidderID

	if err := s.ledger.CommitBid(ctx, auction, bid); err != nil {
		if errors.Is(err, domain.ErrBidConflict) {
			// Another bid moved the version between our snapshot and commit.
			return s.reject(ctx, req, domain.RejectLostRace)
		}
		return nil, fmt.Errorf("bid_service.PlaceBid: %w", err)
	}

	metrics.BidsAccepted.Inc()
	s.logger.Info("bid accepted",
		"auction_id", req.AuctionID,
		"bidder_id", req.BidderID,
		"amount", req.Amount.String(),
		"auto", req.IsAutoBid)

	s.emitAccepted(auction, bid, prevBidder)

	if s.autoBids != nil && !req.IsAutoBid {
		go s.autoBids.ProcessAutoBids(context.WithoutCancel(ctx), req.AuctionID)
	}

	return &domain.BidResult{Accepted: true, Bid: bid}, nil
}

// validate runs the acceptance ladder against the auction snapshot.  Order
// matters: status first, then timing, then ownership, then amount, so the
// caller always sees the most fundamental objection.
func (s *BidService) validate(a *domain.Auction, req domain.PlaceBidRequest) domain.RejectReason {
	if !a.IsOpen() {
		return domain.RejectNotOpen
	}
	if !req.SubmittedAt.Before(a.EndsAt) {
		return domain.RejectEnded
	}
	if req.BidderID == a.SellerID {
		return domain.RejectSelfBid
	}
	if req.Amount.LessThan(a.MinNextBid(s.increment)) {
		return domain.RejectTooLow
	}
	return domain.RejectNone
}

// reject records the rejected bid for audit and returns the result.  Audit
// failures are logged, not surfaced: the rejection itself already stands.
func (s *BidService) reject(ctx context.Context, req domain.PlaceBidRequest, reason domain.RejectReason) (*domain.BidResult, error) {
	metrics.BidsRejected.WithLabelValues(string(reason)).Inc()

	bid := &domain.Bid{
		ID:          uuid.New(),
		AuctionID:   req.AuctionID,
		BidderID:    req.BidderID,
		Amount:      req.Amount,
		Accepted:    false,
		Reason:      reason,
		IsAutoBid:   req.IsAutoBid,
		SubmittedAt: req.SubmittedAt,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.ledger.RecordRejectedBid(ctx, bid); err != nil {
		s.logger.Warn("rejected bid audit write failed",
			"auction_id", req.AuctionID, "reason", reason, "error", err)
	}

	return &domain.BidResult{Accepted: false, Reason: reason, Bid: bid}, nil
}

// emitAccepted publishes the new-highest-bid event and notifies the displaced
// bidder.  Fire-and-forget: the bid is already durable.
func (s *BidService) emitAccepted(a *domain.Auction, bid *domain.Bid, prevBidder *uuid.UUID) {
	payload := map[string]interface{}{
		"auction_id": a.ID,
		"amount":     bid.Amount,
		"bidder_id":  bid.BidderID,
		"placed_at":  bid.SubmittedAt,
	}
	s.sink.Emit(events.TypeNewHighestBid, payload)

	if prevBidder != nil && *prevBidder != bid.BidderID {
		s.sink.EmitTo(prevBidder.String(), events.TypeOutbid, payload)
	}
}
