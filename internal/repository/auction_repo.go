package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
)

// AuctionRepository handles all database operations for Auctions.
type AuctionRepository struct {
	db *sqlx.DB
}

// NewAuctionRepository creates a new AuctionRepository.
func NewAuctionRepository(db *sqlx.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

// Create inserts a new auction row.
func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
		INSERT INTO auctions
			(id, domain_id, seller_id, status, start_price, reserve_price,
			 current_bid, current_bidder_id, winner_id, version,
			 starts_at, ends_at, settled_at, created_at, updated_at)
		VALUES
			(:id, :domain_id, :seller_id, :status, :start_price, :reserve_price,
			 :current_bid, :current_bidder_id, :winner_id, :version,
			 :starts_at, :ends_at, :settled_at, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("auction_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches an auction by its primary key.
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	var a domain.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("auction_repo.GetByID: %w", err)
	}
	return &a, nil
}

// GetActiveByDomain returns the scheduled/open/closing auction for a domain,
// if one exists.  Used to prevent double-listing.
func (r *AuctionRepository) GetActiveByDomain(ctx context.Context, domainID uuid.UUID) (*domain.Auction, error) {
	var a domain.Auction
	err := r.db.GetContext(ctx, &a,
		`SELECT * FROM auctions
		 WHERE domain_id = $1 AND status IN ('scheduled', 'open', 'closing')
		 LIMIT 1`,
		domainID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("auction_repo.GetActiveByDomain: %w", err)
	}
	return &a, nil
}

// ListByStatus returns auctions in the given status, most recently ending first.
func (r *AuctionRepository) ListByStatus(ctx context.Context, status domain.AuctionStatus, limit, offset int) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = $1 ORDER BY ends_at ASC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListByStatus: %w", err)
	}
	return auctions, nil
}

// ListBySeller returns all auctions created by a seller, newest first.
func (r *AuctionRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC`,
		sellerID)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListBySeller: %w", err)
	}
	return auctions, nil
}

// ListByBidder returns all auctions the user has placed an accepted bid on.
func (r *AuctionRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT DISTINCT a.* FROM auctions a
		 JOIN bids b ON b.auction_id = a.id
		 WHERE b.bidder_id = $1 AND b.accepted = true
		 ORDER BY a.ends_at ASC`,
		bidderID)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListByBidder: %w", err)
	}
	return auctions, nil
}

// ListWonBy returns settled auctions won by the user, newest first.
func (r *AuctionRepository) ListWonBy(ctx context.Context, winnerID uuid.UUID) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions
		 WHERE winner_id = $1 AND status = 'settled'
		 ORDER BY settled_at DESC`,
		winnerID)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListWonBy: %w", err)
	}
	return auctions, nil
}

// ListScheduledDue returns scheduled auctions whose start time has passed.
func (r *AuctionRepository) ListScheduledDue(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = 'scheduled' AND starts_at <= $1 ORDER BY starts_at ASC`,
		now)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListScheduledDue: %w", err)
	}
	return auctions, nil
}

// ListExpiredOpen returns open auctions whose bidding window has passed
// (i.e. due for closing and settlement).
func (r *AuctionRepository) ListExpiredOpen(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = 'open' AND ends_at <= $1 ORDER BY ends_at ASC`,
		now)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListExpiredOpen: %w", err)
	}
	return auctions, nil
}

// ListStuckClosing returns auctions stuck in 'closing' whose settlements have
// failed fewer than maxAttempts times.  Auctions whose settlement exhausted
// its attempts are left for the back-office.
func (r *AuctionRepository) ListStuckClosing(ctx context.Context, maxAttempts int) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT a.* FROM auctions a
		 LEFT JOIN settlements s ON s.auction_id = a.id
		 WHERE a.status = 'closing'
		   AND (s.id IS NULL OR (s.status <> 'completed' AND s.attempts < $1))
		 ORDER BY a.ends_at ASC`,
		maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.ListStuckClosing: %w", err)
	}
	return auctions, nil
}

// TryOutbid installs a new standing bid with a single conditional update.
// The guard re-checks status, end time and version inside the statement, so
// two concurrent bids against the same version can never both win: exactly
// one matches the row, the other sees zero rows affected and gets
// ErrBidConflict.  Runs inside the caller's transaction.
func (r *AuctionRepository) TryOutbid(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID, expectedVersion int64, amount decimal.Decimal, bidderID uuid.UUID, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE auctions
		 SET current_bid       = $1,
		     current_bidder_id = $2,
		     version           = version + 1,
		     updated_at        = now()
		 WHERE id = $3
		   AND status = 'open'
		   AND version = $4
		   AND ends_at > $5`,
		amount, bidderID, auctionID, expectedVersion, now)
	if err != nil {
		return fmt.Errorf("auction_repo.TryOutbid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("auction_repo.TryOutbid rows: %w", err)
	}
	if n == 0 {
		return domain.ErrBidConflict
	}
	return nil
}

// MarkOpen transitions a scheduled auction to open.  Conditional on the
// current status so a concurrent cancel cannot be overwritten.
func (r *AuctionRepository) MarkOpen(ctx context.Context, auctionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET status = 'open', updated_at = now()
		 WHERE id = $1 AND status = 'scheduled'`,
		auctionID)
	if err != nil {
		return fmt.Errorf("auction_repo.MarkOpen: %w", err)
	}
	return oneRowOr(res, domain.ErrAuctionNotOpen)
}

// MarkClosing atomically transitions an open auction to closing.  This is the
// serialization point between bidding and settlement: the same conditional
// guard that rejects late bids guarantees no bid lands after this succeeds.
// Exactly one caller (clock tick or seller close) wins the transition;
// everyone else gets ErrAlreadySettled.
func (r *AuctionRepository) MarkClosing(ctx context.Context, auctionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET status = 'closing', updated_at = now()
		 WHERE id = $1 AND status = 'open'`,
		auctionID)
	if err != nil {
		return fmt.Errorf("auction_repo.MarkClosing: %w", err)
	}
	return oneRowOr(res, domain.ErrAlreadySettled)
}

// MarkSettled finalises a closing auction with its winner.  Runs inside the
// settlement transaction so the status flip, ownership transfer and wallet
// credits commit together.
func (r *AuctionRepository) MarkSettled(ctx context.Context, tx *sqlx.Tx, auctionID, winnerID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE auctions
		 SET status = 'settled', winner_id = $1, settled_at = now(), updated_at = now()
		 WHERE id = $2 AND status = 'closing'`,
		winnerID, auctionID)
	if err != nil {
		return fmt.Errorf("auction_repo.MarkSettled: %w", err)
	}
	return oneRowOr(res, domain.ErrAlreadySettled)
}

// MarkCancelled terminates an auction with no winner.  Allowed from any
// non-terminal status.
func (r *AuctionRepository) MarkCancelled(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID) error {
	var res sql.Result
	var err error
	query := `
		UPDATE auctions SET status = 'cancelled', settled_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('scheduled', 'open', 'closing')`
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, auctionID)
	} else {
		res, err = r.db.ExecContext(ctx, query, auctionID)
	}
	if err != nil {
		return fmt.Errorf("auction_repo.MarkCancelled: %w", err)
	}
	return oneRowOr(res, domain.ErrAlreadySettled)
}

// CancelIfUnbid terminates an auction only while no bid stands.  The no-bid
// precondition is part of the conditional update itself, not a prior read, so
// a bid committing concurrently through TryOutbid makes this match zero rows
// instead of cancelling the auction out from under its bidder.
func (r *AuctionRepository) CancelIfUnbid(ctx context.Context, auctionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET status = 'cancelled', settled_at = now(), updated_at = now()
		 WHERE id = $1
		   AND status IN ('scheduled', 'open')
		   AND current_bidder_id IS NULL`,
		auctionID)
	if err != nil {
		return fmt.Errorf("auction_repo.CancelIfUnbid: %w", err)
	}
	return oneRowOr(res, domain.ErrAuctionHasBids)
}

// oneRowOr returns notOne when the statement matched no rows.
func oneRowOr(res sql.Result, notOne error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: rows affected: %w", err)
	}
	if n == 0 {
		return notOne
	}
	return nil
}
