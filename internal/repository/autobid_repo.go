package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
)

// AutoBidRepository handles all database operations for AutoBids.
type AutoBidRepository struct {
	db *sqlx.DB
}

// NewAutoBidRepository creates a new AutoBidRepository.
func NewAutoBidRepository(db *sqlx.DB) *AutoBidRepository {
	return &AutoBidRepository{db: db}
}

// Create inserts an auto-bid row.  The partial unique index on
// (auction_id, bidder_id) WHERE is_active surfaces duplicates as a conflict.
func (r *AutoBidRepository) Create(ctx context.Context, ab *domain.AutoBid) error {
	query := `
		INSERT INTO auto_bids
			(id, auction_id, bidder_id, max_amount, increment, is_active, created_at, updated_at)
		VALUES
			(:id, :auction_id, :bidder_id, :max_amount, :increment, :is_active, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, ab)
	if err != nil {
		return fmt.Errorf("autobid_repo.Create: %w", err)
	}
	return nil
}

// GetActive fetches a bidder's active auto-bid on an auction.
func (r *AutoBidRepository) GetActive(ctx context.Context, auctionID, bidderID uuid.UUID) (*domain.AutoBid, error) {
	var ab domain.AutoBid
	err := r.db.GetContext(ctx, &ab,
		`SELECT * FROM auto_bids
		 WHERE auction_id = $1 AND bidder_id = $2 AND is_active = true`,
		auctionID, bidderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAutoBidNotFound
		}
		return nil, fmt.Errorf("autobid_repo.GetActive: %w", err)
	}
	return &ab, nil
}

// ListActiveByAuction returns active auto-bids on an auction, highest ceiling
// first so the engine processes the strongest delegate before the rest.
func (r *AutoBidRepository) ListActiveByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.AutoBid, error) {
	var abs []*domain.AutoBid
	err := r.db.SelectContext(ctx, &abs,
		`SELECT * FROM auto_bids
		 WHERE auction_id = $1 AND is_active = true
		 ORDER BY max_amount DESC, created_at ASC`,
		auctionID)
	if err != nil {
		return nil, fmt.Errorf("autobid_repo.ListActiveByAuction: %w", err)
	}
	return abs, nil
}

// ListByBidder returns all of a user's auto-bids, newest first.
func (r *AutoBidRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*domain.AutoBid, error) {
	var abs []*domain.AutoBid
	err := r.db.SelectContext(ctx, &abs,
		`SELECT * FROM auto_bids WHERE bidder_id = $1 ORDER BY created_at DESC`,
		bidderID)
	if err != nil {
		return nil, fmt.Errorf("autobid_repo.ListByBidder: %w", err)
	}
	return abs, nil
}

// UpdateCeiling raises or lowers an active auto-bid's max amount.
func (r *AutoBidRepository) UpdateCeiling(ctx context.Context, id uuid.UUID, maxAmount, increment decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auto_bids
		 SET max_amount = $1, increment = $2, updated_at = now()
		 WHERE id = $3 AND is_active = true`,
		maxAmount, increment, id)
	if err != nil {
		return fmt.Errorf("autobid_repo.UpdateCeiling: %w", err)
	}
	return oneRowOr(res, domain.ErrAutoBidNotFound)
}

// Deactivate turns an auto-bid off.  Idempotent from the caller's view once
// the row exists.
func (r *AutoBidRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auto_bids SET is_active = false, updated_at = now()
		 WHERE id = $1 AND is_active = true`,
		id)
	if err != nil {
		return fmt.Errorf("autobid_repo.Deactivate: %w", err)
	}
	return oneRowOr(res, domain.ErrAutoBidNotFound)
}

// DeactivateByAuction switches off every auto-bid on an auction, called when
// the auction leaves the open state.
func (r *AutoBidRepository) DeactivateByAuction(ctx context.Context, auctionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auto_bids SET is_active = false, updated_at = now()
		 WHERE auction_id = $1 AND is_active = true`,
		auctionID)
	if err != nil {
		return fmt.Errorf("autobid_repo.DeactivateByAuction: %w", err)
	}
	return nil
}
