package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Listing
// ──────────────────────────────────────────────────────────────────────────────

// ListingStatus is the lifecycle state of a fixed-price listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"    // buyable
	ListingPending   ListingStatus = "pending"   // a purchase is in flight; hidden from other buyers
	ListingSold      ListingStatus = "sold"      // buyer paid, domain transferred
	ListingCancelled ListingStatus = "cancelled" // withdrawn by the seller
)

// Listing is a buy-now sale of one domain at a fixed price, the counterpart
// to the auction flow.  Status moves active → pending → sold through
// conditional updates, so of any set of concurrent buyers exactly one claims
// the listing; a failed purchase releases the claim back to active.
type Listing struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	DomainID  uuid.UUID       `json:"domain_id"  db:"domain_id"`
	SellerID  uuid.UUID       `json:"seller_id"  db:"seller_id"`
	BuyerID   *uuid.UUID      `json:"buyer_id"   db:"buyer_id"`
	Price     decimal.Decimal `json:"price"      db:"price"`
	Status    ListingStatus   `json:"status"     db:"status"`
	SoldAt    *time.Time      `json:"sold_at"    db:"sold_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// IsActive returns true while the listing can be purchased.
func (l *Listing) IsActive() bool {
	return l.Status == ListingActive
}

// PurchaseIdempotencyKey derives the stable key for charging a listing's
// buyer.  A listing sells at most once, so the listing ID alone keys it.
func PurchaseIdempotencyKey(listingID uuid.UUID) string {
	return fmt.Sprintf("purchase-%s", listingID)
}

// PurchaseTransferIdempotencyKey derives the stable key for the registrar
// transfer of a purchased listing.
func PurchaseTransferIdempotencyKey(listingID uuid.UUID) string {
	return fmt.Sprintf("purchase-transfer-%s", listingID)
}

// PurchaseRefundIdempotencyKey derives the stable key for refunding a capture
// whose purchase could not complete.
func PurchaseRefundIdempotencyKey(listingID uuid.UUID) string {
	return fmt.Sprintf("purchase-refund-%s", listingID)
}

// ListingSummary is a derived, read-only view of a Listing for public
// endpoints, carrying the domain name that lives outside the listing row.
type ListingSummary struct {
	ID         uuid.UUID       `json:"id"`
	DomainName string          `json:"domain_name"`
	SellerID   uuid.UUID       `json:"seller_id"`
	BuyerID    *uuid.UUID      `json:"buyer_id"`
	Price      decimal.Decimal `json:"price"`
	Status     ListingStatus   `json:"status"`
	SoldAt     *time.Time      `json:"sold_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToSummary builds a ListingSummary given the domain name.
func (l *Listing) ToSummary(domainName string) ListingSummary {
	return ListingSummary{
		ID:         l.ID,
		DomainName: domainName,
		SellerID:   l.SellerID,
		BuyerID:    l.BuyerID,
		Price:      l.Price,
		Status:     l.Status,
		SoldAt:     l.SoldAt,
		CreatedAt:  l.CreatedAt,
	}
}
