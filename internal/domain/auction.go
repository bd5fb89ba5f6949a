// Package domain defines the core business entities and types for the
// alanadi domain-name marketplace.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "scheduled" // created with a future start, not yet biddable
	AuctionOpen      AuctionStatus = "open"      // accepting bids
	AuctionClosing   AuctionStatus = "closing"   // bidding window shut, settlement in progress
	AuctionSettled   AuctionStatus = "settled"   // winner paid, domain transferred
	AuctionCancelled AuctionStatus = "cancelled" // no winner; domain stays with the seller
)

// auctionTransitions encodes the allowed forward edges of the status machine.
// Settled and cancelled are terminal.
var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionScheduled: {AuctionOpen, AuctionCancelled},
	AuctionOpen:      {AuctionClosing, AuctionCancelled},
	AuctionClosing:   {AuctionSettled, AuctionCancelled},
}

// CanTransition reports whether moving from → to is a legal, monotonic step.
func (s AuctionStatus) CanTransition(to AuctionStatus) bool {
	for _, next := range auctionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses that can never change again.
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionSettled || s == AuctionCancelled
}

// ──────────────────────────────────────────────────────────────────────────────
// Auction
// ──────────────────────────────────────────────────────────────────────────────

// Auction is a time-boxed sale of one domain with competitive bidding.
//
// CurrentBid / CurrentBidderID track the standing highest accepted bid and are
// mutated only through the ledger's conditional update, guarded by Version.
type Auction struct {
	ID              uuid.UUID        `json:"id"                db:"id"`
	DomainID        uuid.UUID        `json:"domain_id"         db:"domain_id"`
	SellerID        uuid.UUID        `json:"seller_id"         db:"seller_id"`
	Status          AuctionStatus    `json:"status"            db:"status"`
	StartPrice      decimal.Decimal  `json:"start_price"       db:"start_price"`
	ReservePrice    *decimal.Decimal `json:"reserve_price"     db:"reserve_price"`
	CurrentBid      *decimal.Decimal `json:"current_bid"       db:"current_bid"`
	CurrentBidderID *uuid.UUID       `json:"current_bidder_id" db:"current_bidder_id"`
	WinnerID        *uuid.UUID       `json:"winner_id"         db:"winner_id"`
	Version         int64            `json:"-"                 db:"version"`
	StartsAt        time.Time        `json:"starts_at"         db:"starts_at"`
	EndsAt          time.Time        `json:"ends_at"           db:"ends_at"`
	SettledAt       *time.Time       `json:"settled_at"        db:"settled_at"`
	CreatedAt       time.Time        `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"        db:"updated_at"`
}

// IsOpen returns true while the auction is accepting bids.
func (a *Auction) IsOpen() bool {
	return a.Status == AuctionOpen
}

// HasBid returns true once at least one bid has been accepted.
func (a *Auction) HasBid() bool {
	return a.CurrentBid != nil && a.CurrentBidderID != nil
}

// MinNextBid returns the smallest amount the next bid must reach: the start
// price while no bid exists, otherwise the standing bid plus the increment.
func (a *Auction) MinNextBid(increment decimal.Decimal) decimal.Decimal {
	if !a.HasBid() {
		return a.StartPrice
	}
	return a.CurrentBid.Add(increment)
}

// ReserveMet returns true when either no reserve is set or the standing bid
// reaches it.  An auction with no bid never meets its reserve.
func (a *Auction) ReserveMet() bool {
	if !a.HasBid() {
		return false
	}
	if a.ReservePrice == nil {
		return true
	}
	return a.CurrentBid.GreaterThanOrEqual(*a.ReservePrice)
}

// TimeLeft returns the duration remaining until the bidding window closes.
// Returns 0 once EndsAt has passed.
func (a *Auction) TimeLeft() time.Duration {
	remaining := time.Until(a.EndsAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ──────────────────────────────────────────────────────────────────────────────
// AuctionSummary — read model for list endpoints and event payloads
// ──────────────────────────────────────────────────────────────────────────────

// AuctionSummary is a derived, read-only view of an Auction.
type AuctionSummary struct {
	ID          uuid.UUID        `json:"id"`
	DomainName  string           `json:"domain_name"`
	SellerID    uuid.UUID        `json:"seller_id"`
	Status      AuctionStatus    `json:"status"`
	StartPrice  decimal.Decimal  `json:"start_price"`
	CurrentBid  *decimal.Decimal `json:"current_bid"`
	BidCount    int              `json:"bid_count"`
	EndsAt      time.Time        `json:"ends_at"`
	TimeLeftSec int64            `json:"time_left_sec"`
}

// ToSummary builds an AuctionSummary given the domain name and bid count,
// which live outside the auction row.
func (a *Auction) ToSummary(domainName string, bidCount int) AuctionSummary {
	return AuctionSummary{
		ID:          a.ID,
		DomainName:  domainName,
		SellerID:    a.SellerID,
		Status:      a.Status,
		StartPrice:  a.StartPrice,
		CurrentBid:  a.CurrentBid,
		BidCount:    bidCount,
		EndsAt:      a.EndsAt,
		TimeLeftSec: int64(a.TimeLeft().Seconds()),
	}
}
