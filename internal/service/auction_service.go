package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request types
// ──────────────────────────────────────────────────────────────────────────────

// CreateAuctionRequest carries the seller's listing parameters.
type CreateAuctionRequest struct {
	DomainID     uuid.UUID        `json:"domain_id"     binding:"required"`
	StartPrice   decimal.Decimal  `json:"start_price"   binding:"required"`
	ReservePrice *decimal.Decimal `json:"reserve_price"`
	StartsAt     *time.Time       `json:"starts_at"` // nil = open immediately
	EndsAt       *time.Time       `json:"ends_at"`   // nil = starts_at + default duration
}

// Settler finalises a closing auction.  Wired via setter to break the
// auction ↔ settlement service cycle.
type Settler interface {
	Settle(ctx context.Context, auctionID uuid.UUID) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStore is the persistence surface of the auction lifecycle.
// CancelIfUnbid must enforce the no-bid precondition inside its own
// conditional write: Cancel's snapshot check alone cannot see a bid that
// commits between the read and the cancel.
type AuctionStore interface {
	Create(ctx context.Context, a *domain.Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	GetActiveByDomain(ctx context.Context, domainID uuid.UUID) (*domain.Auction, error)
	ListByStatus(ctx context.Context, status domain.AuctionStatus, limit, offset int) ([]*domain.Auction, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Auction, error)
	ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*domain.Auction, error)
	ListWonBy(ctx context.Context, winnerID uuid.UUID) ([]*domain.Auction, error)
	MarkClosing(ctx context.Context, auctionID uuid.UUID) error
	CancelIfUnbid(ctx context.Context, auctionID uuid.UUID) error
}

// BidReader reads stored bids back for query endpoints.
type BidReader interface {
	ListByAuction(ctx context.Context, auctionID uuid.UUID, acceptedOnly bool) ([]*domain.Bid, error)
	CountByAuction(ctx context.Context, auctionID uuid.UUID) (int, error)
}

// CancelLedger commits forced cancellations, bids or not, atomically.
type CancelLedger interface {
	CommitCancelled(ctx context.Context, auctionID uuid.UUID, settlementID *uuid.UUID) error
}

// ──────────────────────────────────────────────────────────────────────────────
// AuctionService
// ──────────────────────────────────────────────────────────────────────────────

// AuctionService manages the auction lifecycle outside of bidding: listing,
// querying, early closing and cancellation.
type AuctionService struct {
	auctionRepo AuctionStore
	bidRepo     BidReader
	domainRepo  DomainReader
	ledger      CancelLedger
	cfg         *config.Config
	sink        events.Sink
	settler     Settler
	logger      *slog.Logger
}

// NewAuctionService creates an AuctionService.
func NewAuctionService(
	auctionRepo AuctionStore,
	bidRepo BidReader,
	domainRepo DomainReader,
	ledger CancelLedger,
	cfg *config.Config,
	sink events.Sink,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		domainRepo:  domainRepo,
		ledger:      ledger,
		cfg:         cfg,
		sink:        sink,
		logger:      logger,
	}
}

// SetSettler wires the settlement engine in after construction.
func (s *AuctionService) SetSettler(st Settler) {
	s.settler = st
}

// ──────────────────────────────────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────────────────────────────────

// Create lists a domain for auction.  The seller must own the domain and the
// domain must not already be in a live auction.  A future start time makes
// the auction scheduled; otherwise it opens immediately.
func (s *AuctionService) Create(ctx context.Context, sellerID uuid.UUID, req CreateAuctionRequest) (*domain.Auction, error) {
	asset, err := s.domainRepo.GetByID(ctx, req.DomainID)
	if err != nil {
		return nil, err
	}
	if !asset.OwnedBy(sellerID) {
		return nil, domain.ErrDomainNotOwned
	}

	if _, err := s.auctionRepo.GetActiveByDomain(ctx, req.DomainID); err == nil {
		return nil, domain.ErrDomainInAuction
	} else if !errors.Is(err, domain.ErrAuctionNotFound) {
		return nil, err
	}

	if !req.StartPrice.IsPositive() {
		return nil, fmt.Errorf("%w: start price must be positive", domain.ErrInvalidWindow)
	}
	if req.ReservePrice != nil && req.ReservePrice.LessThan(req.StartPrice) {
		return nil, fmt.Errorf("%w: reserve price below start price", domain.ErrInvalidWindow)
	}

	now := time.Now().UTC()
	startsAt := now
	if req.StartsAt != nil && req.StartsAt.After(now) {
		startsAt = req.StartsAt.UTC()
	}
	endsAt := startsAt.Add(s.cfg.Auction.DefaultDuration)
	if req.EndsAt != nil {
		endsAt = req.EndsAt.UTC()
	}

	window := endsAt.Sub(startsAt)
	if window < s.cfg.Auction.MinDuration || window > s.cfg.Auction.MaxDuration {
		return nil, fmt.Errorf("%w: duration %s outside [%s, %s]",
			domain.ErrInvalidWindow, window, s.cfg.Auction.MinDuration, s.cfg.Auction.MaxDuration)
	}

	status := domain.AuctionOpen
	if startsAt.After(now) {
		status = domain.AuctionScheduled
	}

	auction := &domain.Auction{
		ID:           uuid.New(),
		DomainID:     req.DomainID,
		SellerID:     sellerID,
		Status:       status,
		StartPrice:   req.StartPrice,
		ReservePrice: req.ReservePrice,
		StartsAt:     startsAt,
		EndsAt:       endsAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.auctionRepo.Create(ctx, auction); err != nil {
		return nil, err
	}

	s.logger.Info("auction created",
		"auction_id", auction.ID, "domain", asset.Name, "status", status, "ends_at", endsAt)

	if status == domain.AuctionOpen {
		s.sink.Emit(events.TypeAuctionOpened, auction.ToSummary(asset.Name, 0))
	}
	return auction, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// Get returns an auction by ID.
func (s *AuctionService) Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return s.auctionRepo.GetByID(ctx, id)
}

// GetSummary returns the public read-model of an auction.
func (s *AuctionService) GetSummary(ctx context.Context, id uuid.UUID) (*domain.AuctionSummary, error) {
	auction, err := s.auctionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	asset, err := s.domainRepo.GetByID(ctx, auction.DomainID)
	if err != nil {
		return nil, err
	}
	count, err := s.bidRepo.CountByAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := auction.ToSummary(asset.Name, count)
	return &summary, nil
}

// ListOpen returns currently biddable auctions, soonest-ending first.
func (s *AuctionService) ListOpen(ctx context.Context, limit, offset int) ([]*domain.Auction, error) {
	return s.auctionRepo.ListByStatus(ctx, domain.AuctionOpen, limit, offset)
}

// ListByStatus returns auctions in any one status.
func (s *AuctionService) ListByStatus(ctx context.Context, status domain.AuctionStatus, limit, offset int) ([]*domain.Auction, error) {
	return s.auctionRepo.ListByStatus(ctx, status, limit, offset)
}

// ListBySeller returns a seller's auctions.
func (s *AuctionService) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Auction, error) {
	return s.auctionRepo.ListBySeller(ctx, sellerID)
}

// ListByBidder returns auctions the user has bid on.
func (s *AuctionService) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*domain.Auction, error) {
	return s.auctionRepo.ListByBidder(ctx, bidderID)
}

// ListWon returns auctions the user has won.
func (s *AuctionService) ListWon(ctx context.Context, winnerID uuid.UUID) ([]*domain.Auction, error) {
	return s.auctionRepo.ListWonBy(ctx, winnerID)
}

// ListBids returns the bid history of an auction.
func (s *AuctionService) ListBids(ctx context.Context, auctionID uuid.UUID, acceptedOnly bool) ([]*domain.Bid, error) {
	if _, err := s.auctionRepo.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bidRepo.ListByAuction(ctx, auctionID, acceptedOnly)
}

// ──────────────────────────────────────────────────────────────────────────────
// Close / Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Close ends an open auction early at the seller's request and settles it
// with the standing bid.  The closing transition is conditional, so a close
// racing the clock's own closing resolves to exactly one winner; the loser
// returns ErrAlreadySettled and settlement proceeds once either way.
func (s *AuctionService) Close(ctx context.Context, sellerID, auctionID uuid.UUID) error {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.SellerID != sellerID {
		return domain.ErrForbidden
	}

	if err := s.auctionRepo.MarkClosing(ctx, auctionID); err != nil {
		return err
	}
	s.logger.Info("auction closed by seller", "auction_id", auctionID)
	s.sink.Emit(events.TypeAuctionClosing, map[string]interface{}{"auction_id": auctionID})

	if s.settler == nil {
		return nil
	}
	if err := s.settler.Settle(ctx, auctionID); err != nil {
		// Settlement failures are retried by the clock; the close itself stands.
		s.logger.Warn("settlement after seller close failed, will retry",
			"auction_id", auctionID, "error", err)
	}
	return nil
}

// Cancel withdraws an auction that has not yet received a bid.  Sellers can
// only cancel their own listings; the back-office bypasses both the ownership
// and the no-bid check with force=true.
func (s *AuctionService) Cancel(ctx context.Context, requesterID, auctionID uuid.UUID, force bool) error {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if force {
		if err := s.ledger.CommitCancelled(ctx, auctionID, nil); err != nil {
			return err
		}
	} else {
		if auction.SellerID != requesterID {
			return domain.ErrForbidden
		}
		// The snapshot check gives a fast, clear answer; the decisive check is
		// inside CancelIfUnbid's conditional update, so a bid that commits
		// after this read makes the cancel lose instead of orphaning the bid.
		if auction.HasBid() {
			return fmt.Errorf("%w: cannot cancel", domain.ErrAuctionHasBids)
		}
		if err := s.auctionRepo.CancelIfUnbid(ctx, auctionID); err != nil {
			return err
		}
	}
	s.logger.Info("auction cancelled", "auction_id", auctionID, "forced", force)
	s.sink.Emit(events.TypeAuctionCancelled, map[string]interface{}{"auction_id": auctionID})
	return nil
}
