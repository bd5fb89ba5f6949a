package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alanadi/market/internal/domain"
)

// BidRepository handles all database operations for Bids.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository creates a new BidRepository.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Insert writes a bid row within an existing transaction.  Accepted and
// rejected bids alike are stored; rejected rows are audit-only.
func (r *BidRepository) Insert(ctx context.Context, tx *sqlx.Tx, b *domain.Bid) error {
	query := `
		INSERT INTO bids
			(id, auction_id, bidder_id, amount, accepted, reason, is_auto_bid, submitted_at, created_at)
		VALUES
			(:id, :auction_id, :bidder_id, :amount, :accepted, :reason, :is_auto_bid, :submitted_at, :created_at)`
	var err error
	if tx != nil {
		_, err = tx.NamedExecContext(ctx, query, b)
	} else {
		_, err = r.db.NamedExecContext(ctx, query, b)
	}
	if err != nil {
		return fmt.Errorf("bid_repo.Insert: %w", err)
	}
	return nil
}

// HighestAccepted returns the standing (highest accepted) bid on an auction.
// Ties on amount resolve to the earlier bid.
func (r *BidRepository) HighestAccepted(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	var b domain.Bid
	err := r.db.GetContext(ctx, &b,
		`SELECT * FROM bids
		 WHERE auction_id = $1 AND accepted = true
		 ORDER BY amount DESC, created_at ASC
		 LIMIT 1`,
		auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("bid_repo.HighestAccepted: %w", err)
	}
	return &b, nil
}

// ListByAuction returns all bids on an auction, newest first.
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID, acceptedOnly bool) ([]*domain.Bid, error) {
	query := `SELECT * FROM bids WHERE auction_id = $1 ORDER BY created_at DESC`
	if acceptedOnly {
		query = `SELECT * FROM bids WHERE auction_id = $1 AND accepted = true ORDER BY created_at DESC`
	}
	var bids []*domain.Bid
	if err := r.db.SelectContext(ctx, &bids, query, auctionID); err != nil {
		return nil, fmt.Errorf("bid_repo.ListByAuction: %w", err)
	}
	return bids, nil
}

// ListByBidder returns a user's bids across all auctions, newest first.
func (r *BidRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE bidder_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		bidderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bid_repo.ListByBidder: %w", err)
	}
	return bids, nil
}

// CountByAuction returns how many accepted bids an auction has received.
func (r *BidRepository) CountByAuction(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND accepted = true`,
		auctionID)
	if err != nil {
		return 0, fmt.Errorf("bid_repo.CountByAuction: %w", err)
	}
	return n, nil
}
