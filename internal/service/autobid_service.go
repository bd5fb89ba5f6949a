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
	"github.com/alanadi/market/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request types
// ──────────────────────────────────────────────────────────────────────────────

// CreateAutoBidRequest sets up delegated bidding on an auction.
type CreateAutoBidRequest struct {
	AuctionID uuid.UUID        `json:"auction_id" binding:"required"`
	MaxAmount decimal.Decimal  `json:"max_amount" binding:"required"`
	Increment *decimal.Decimal `json:"increment"` // nil = marketplace minimum
}

// BidPlacer places bids on behalf of auto-bidders.  Satisfied by BidService.
type BidPlacer interface {
	PlaceBid(ctx context.Context, req domain.PlaceBidRequest) (*domain.BidResult, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// AutoBidService
// ──────────────────────────────────────────────────────────────────────────────

// AutoBidService manages delegated bidding: a bidder sets a ceiling, and the
// engine re-bids for them whenever they are displaced, up to that ceiling.
type AutoBidService struct {
	autoBidRepo  *repository.AutoBidRepository
	auctionRepo  *repository.AuctionRepository
	bids         BidPlacer
	minIncrement decimal.Decimal
	logger       *slog.Logger
}

// NewAutoBidService creates an AutoBidService.
func NewAutoBidService(
	autoBidRepo *repository.AutoBidRepository,
	auctionRepo *repository.AuctionRepository,
	bids BidPlacer,
	minIncrement decimal.Decimal,
	logger *slog.Logger,
) *AutoBidService {
	return &AutoBidService{
		autoBidRepo:  autoBidRepo,
		auctionRepo:  auctionRepo,
		bids:         bids,
		minIncrement: minIncrement,
		logger:       logger,
	}
}

// Create registers an auto-bid for the bidder on an open auction.
func (s *AutoBidService) Create(ctx context.Context, bidderID uuid.UUID, req CreateAutoBidRequest) (*domain.AutoBid, error) {
	auction, err := s.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}
	if !auction.IsOpen() {
		return nil, domain.ErrAuctionNotOpen
	}
	if auction.SellerID == bidderID {
		return nil, domain.ErrSelfBid
	}
	if req.MaxAmount.LessThan(auction.MinNextBid(s.minIncrement)) {
		return nil, domain.ErrBidTooLow
	}

	if _, err := s.autoBidRepo.GetActive(ctx, req.AuctionID, bidderID); err == nil {
		return nil, domain.ErrAutoBidExists
	} else if !errors.Is(err, domain.ErrAutoBidNotFound) {
		return nil, err
	}

	increment := s.minIncrement
	if req.Increment != nil && req.Increment.GreaterThanOrEqual(s.minIncrement) {
		increment = *req.Increment
	}

	now := time.Now().UTC()
	ab := &domain.AutoBid{
		ID:        uuid.New(),
		AuctionID: req.AuctionID,
		BidderID:  bidderID,
		MaxAmount: req.MaxAmount,
		Increment: increment,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.autoBidRepo.Create(ctx, ab); err != nil {
		return nil, err
	}

	s.logger.Info("auto-bid created",
		"auction_id", req.AuctionID, "bidder_id", bidderID, "max", req.MaxAmount.String())

	// Bid immediately if the bidder is not already on top.
	go s.ProcessAutoBids(context.WithoutCancel(ctx), req.AuctionID)

	return ab, nil
}

// UpdateCeiling changes the ceiling of the bidder's active auto-bid.
func (s *AutoBidService) UpdateCeiling(ctx context.Context, bidderID, auctionID uuid.UUID, maxAmount decimal.Decimal, increment *decimal.Decimal) (*domain.AutoBid, error) {
	ab, err := s.autoBidRepo.GetActive(ctx, auctionID, bidderID)
	if err != nil {
		return nil, err
	}

	inc := ab.Increment
	if increment != nil && increment.GreaterThanOrEqual(s.minIncrement) {
		inc = *increment
	}
	if err := s.autoBidRepo.UpdateCeiling(ctx, ab.ID, maxAmount, inc); err != nil {
		return nil, err
	}
	ab.MaxAmount = maxAmount
	ab.Increment = inc

	go s.ProcessAutoBids(context.WithoutCancel(ctx), auctionID)
	return ab, nil
}

// Deactivate switches off the bidder's auto-bid on an auction.
func (s *AutoBidService) Deactivate(ctx context.Context, bidderID, auctionID uuid.UUID) error {
	ab, err := s.autoBidRepo.GetActive(ctx, auctionID, bidderID)
	if err != nil {
		return err
	}
	return s.autoBidRepo.Deactivate(ctx, ab.ID)
}

// ListByBidder returns all of a user's auto-bids.
func (s *AutoBidService) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*domain.AutoBid, error) {
	return s.autoBidRepo.ListByBidder(ctx, bidderID)
}

// ProcessAutoBids re-bids for displaced delegates until the standing bid
// stabilises.  Called after every manually accepted bid and after auto-bid
// setup.  Delegates are tried strongest ceiling first; auto-bid rounds stop
// as soon as a full pass places nothing, which is guaranteed to happen
// because every accepted bid strictly raises the standing amount toward
// finite ceilings.
func (s *AutoBidService) ProcessAutoBids(ctx context.Context, auctionID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auto-bid processing panic", "auction_id", auctionID, "recover", r)
		}
	}()

	for round := 0; round < 100; round++ {
		placed, err := s.runRound(ctx, auctionID)
		if err != nil {
			s.logger.Warn("auto-bid round failed", "auction_id", auctionID, "error", err)
			return
		}
		if !placed {
			return
		}
	}
	s.logger.Warn("auto-bid processing hit round cap", "auction_id", auctionID)
}

// runRound places at most one auto-bid: the first delegate (by descending
// ceiling) who is not currently on top and can still beat the standing bid.
func (s *AutoBidService) runRound(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if !auction.IsOpen() {
		return false, nil
	}

	delegates, err := s.autoBidRepo.ListActiveByAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}

	for _, ab := range delegates {
		if auction.CurrentBidderID != nil && *auction.CurrentBidderID == ab.BidderID {
			continue // already on top
		}

		current := auction.StartPrice.Sub(s.minIncrement) // so first bid = start price
		if auction.HasBid() {
			current = *auction.CurrentBid
		}
		next := ab.NextAmount(current)
		if next.IsZero() || next.LessThan(auction.MinNextBid(s.minIncrement)) {
			continue // ceiling exhausted
		}

		result, err := s.bids.PlaceBid(ctx, domain.PlaceBidRequest{
			AuctionID:   auctionID,
			BidderID:    ab.BidderID,
			Amount:      next,
			SubmittedAt: time.Now().UTC(),
			IsAutoBid:   true,
		})
		if err != nil {
			return false, fmt.Errorf("autobid_service.runRound: %w", err)
		}
		if result.Accepted {
			return true, nil
		}
		// Lost a race or went stale; re-read and try again next round.
		if result.Reason == domain.RejectLostRace {
			return true, nil
		}
	}
	return false, nil
}
