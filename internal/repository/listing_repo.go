package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alanadi/market/internal/domain"
)

// ListingRepository handles all database operations for fixed-price listings.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a new listing row.
func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings
			(id, domain_id, seller_id, buyer_id, price, status,
			 sold_at, created_at, updated_at)
		VALUES
			(:id, :domain_id, :seller_id, :buyer_id, :price, :status,
			 :sold_at, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, l)
	if err != nil {
		return fmt.Errorf("listing_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a listing by its primary key.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	err := r.db.GetContext(ctx, &l, `SELECT * FROM listings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("listing_repo.GetByID: %w", err)
	}
	return &l, nil
}

// GetActiveByDomain returns the live (active or pending) listing for a
// domain, if one exists.  Used to prevent double-listing.
func (r *ListingRepository) GetActiveByDomain(ctx context.Context, domainID uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	err := r.db.GetContext(ctx, &l,
		`SELECT * FROM listings
		 WHERE domain_id = $1 AND status IN ('active', 'pending')
		 LIMIT 1`,
		domainID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("listing_repo.GetActiveByDomain: %w", err)
	}
	return &l, nil
}

// ListByStatus returns listings in the given status, newest first.
func (r *ListingRepository) ListByStatus(ctx context.Context, status domain.ListingStatus, limit, offset int) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	err := r.db.SelectContext(ctx, &listings,
		`SELECT * FROM listings WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing_repo.ListByStatus: %w", err)
	}
	return listings, nil
}

// ListBySeller returns all listings created by a seller, newest first.
func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	err := r.db.SelectContext(ctx, &listings,
		`SELECT * FROM listings WHERE seller_id = $1 ORDER BY created_at DESC`,
		sellerID)
	if err != nil {
		return nil, fmt.Errorf("listing_repo.ListBySeller: %w", err)
	}
	return listings, nil
}

// ListPurchasedBy returns sold listings bought by the user, newest first.
func (r *ListingRepository) ListPurchasedBy(ctx context.Context, buyerID uuid.UUID) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	err := r.db.SelectContext(ctx, &listings,
		`SELECT * FROM listings
		 WHERE buyer_id = $1 AND status = 'sold'
		 ORDER BY sold_at DESC`,
		buyerID)
	if err != nil {
		return nil, fmt.Errorf("listing_repo.ListPurchasedBy: %w", err)
	}
	return listings, nil
}

// ClaimForPurchase moves an active listing to pending under the buyer's name.
// Every precondition — active status, not the seller's own listing — sits
// inside the conditional update, so of any set of concurrent buyers exactly
// one claims the listing; the rest see zero rows and get
// ErrListingUnavailable.
func (r *ListingRepository) ClaimForPurchase(ctx context.Context, listingID, buyerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'pending', buyer_id = $2, updated_at = now()
		 WHERE id = $1 AND status = 'active' AND seller_id <> $2`,
		listingID, buyerID)
	if err != nil {
		return fmt.Errorf("listing_repo.ClaimForPurchase: %w", err)
	}
	return oneRowOr(res, domain.ErrListingUnavailable)
}

// ReleaseClaim returns a pending listing to active after a failed purchase.
// Guarded on the claiming buyer so a stale caller cannot release someone
// else's claim.
func (r *ListingRepository) ReleaseClaim(ctx context.Context, listingID, buyerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'active', buyer_id = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'pending' AND buyer_id = $2`,
		listingID, buyerID)
	if err != nil {
		return fmt.Errorf("listing_repo.ReleaseClaim: %w", err)
	}
	return oneRowOr(res, domain.ErrListingUnavailable)
}

// MarkSold finalises a claimed listing.  Runs inside the purchase transaction
// so the status flip, ownership transfer and wallet credits commit together.
func (r *ListingRepository) MarkSold(ctx context.Context, tx *sqlx.Tx, listingID, buyerID uuid.UUID, soldAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = 'sold', sold_at = $3, updated_at = now()
		 WHERE id = $1 AND status = 'pending' AND buyer_id = $2`,
		listingID, buyerID, soldAt)
	if err != nil {
		return fmt.Errorf("listing_repo.MarkSold: %w", err)
	}
	return oneRowOr(res, domain.ErrListingUnavailable)
}

// MarkCancelled withdraws an active listing.  Conditional on the status, so a
// purchase claiming the listing concurrently wins over the cancel.
func (r *ListingRepository) MarkCancelled(ctx context.Context, listingID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'cancelled', updated_at = now()
		 WHERE id = $1 AND status = 'active'`,
		listingID)
	if err != nil {
		return fmt.Errorf("listing_repo.MarkCancelled: %w", err)
	}
	return oneRowOr(res, domain.ErrListingUnavailable)
}
