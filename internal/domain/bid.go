package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Bid
// ──────────────────────────────────────────────────────────────────────────────

// RejectReason classifies why a bid was not accepted.  Rejected bids are kept
// for audit but never touch auction state.
type RejectReason string

const (
	RejectNone       RejectReason = ""
	RejectNotOpen    RejectReason = "auction_not_open"
	RejectEnded      RejectReason = "auction_ended"
	RejectSelfBid    RejectReason = "self_bid"
	RejectTooLow     RejectReason = "below_minimum"
	RejectLostRace   RejectReason = "lost_race"
)

// Bid is a monetary offer against an open Auction.
type Bid struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	AuctionID   uuid.UUID       `json:"auction_id"   db:"auction_id"`
	BidderID    uuid.UUID       `json:"bidder_id"    db:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"       db:"amount"`
	Accepted    bool            `json:"accepted"     db:"accepted"`
	Reason      RejectReason    `json:"reason"       db:"reason"`
	IsAutoBid   bool            `json:"is_auto_bid"  db:"is_auto_bid"`
	SubmittedAt time.Time       `json:"submitted_at" db:"submitted_at"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
}

// PlaceBidRequest carries the validated inputs for placing a bid.
type PlaceBidRequest struct {
	AuctionID   uuid.UUID
	BidderID    uuid.UUID
	Amount      decimal.Decimal
	SubmittedAt time.Time
	IsAutoBid   bool
}

// BidResult is returned from bid placement: either an accepted bid or a
// rejection with its reason.
type BidResult struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Bid      *Bid         `json:"bid,omitempty"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AutoBid
// ──────────────────────────────────────────────────────────────────────────────

// AutoBid lets a bidder delegate bidding up to a ceiling: whenever they are
// outbid the engine re-bids current + Increment, capped at MaxAmount.
type AutoBid struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	AuctionID uuid.UUID       `json:"auction_id" db:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"  db:"bidder_id"`
	MaxAmount decimal.Decimal `json:"max_amount" db:"max_amount"`
	Increment decimal.Decimal `json:"increment"  db:"increment"`
	IsActive  bool            `json:"is_active"  db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// NextAmount returns the amount this auto-bid would offer over the standing
// bid, or decimal.Zero when the ceiling is exhausted.
func (ab *AutoBid) NextAmount(currentHighest decimal.Decimal) decimal.Decimal {
	if ab.MaxAmount.LessThanOrEqual(currentHighest) {
		return decimal.Zero
	}
	next := currentHighest.Add(ab.Increment)
	if next.GreaterThan(ab.MaxAmount) {
		next = ab.MaxAmount
	}
	if next.LessThanOrEqual(currentHighest) {
		return decimal.Zero
	}
	return next
}
