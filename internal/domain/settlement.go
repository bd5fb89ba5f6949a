package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────────────────────────

// SettlementStatus is the completion state of a settlement.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
	SettlementFailed    SettlementStatus = "failed" // retryable; picked up by the clock again
)

// Settlement finalises one terminal auction.  At most one row exists per
// auction; re-running settlement for a completed row is a no-op that returns
// the prior result.
//
// PaymentCapturedAt / TransferredAt record which external steps already
// succeeded so a retry after partial failure skips them.  The idempotency
// keys are derived from the settlement ID and reused verbatim on every retry,
// so the collaborators never double-charge or double-transfer.
type Settlement struct {
	ID                uuid.UUID        `json:"id"                  db:"id"`
	AuctionID         uuid.UUID        `json:"auction_id"          db:"auction_id"`
	WinnerID          *uuid.UUID       `json:"winner_id"           db:"winner_id"`
	Amount            decimal.Decimal  `json:"amount"              db:"amount"`
	SellerProceeds    decimal.Decimal  `json:"seller_proceeds"     db:"seller_proceeds"`
	Commission        decimal.Decimal  `json:"commission"          db:"commission"`
	Status            SettlementStatus `json:"status"              db:"status"`
	Attempts          int              `json:"attempts"            db:"attempts"`
	PaymentKey        string           `json:"-"                   db:"payment_key"`
	TransferKey       string           `json:"-"                   db:"transfer_key"`
	PaymentCapturedAt *time.Time       `json:"payment_captured_at" db:"payment_captured_at"`
	TransferredAt     *time.Time       `json:"transferred_at"      db:"transferred_at"`
	LastError         *string          `json:"last_error"          db:"last_error"`
	CompletedAt       *time.Time       `json:"completed_at"        db:"completed_at"`
	CreatedAt         time.Time        `json:"created_at"          db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"          db:"updated_at"`
}

// HasWinner returns true when a winning bidder was determined.
func (s *Settlement) HasWinner() bool {
	return s.WinnerID != nil
}

// Captured returns true once the payment-capture step has succeeded.
func (s *Settlement) Captured() bool {
	return s.PaymentCapturedAt != nil
}

// Transferred returns true once the domain-transfer step has succeeded.
func (s *Settlement) Transferred() bool {
	return s.TransferredAt != nil
}

// PaymentIdempotencyKey derives the stable key sent to the payment
// collaborator for this settlement.
func PaymentIdempotencyKey(settlementID uuid.UUID) string {
	return fmt.Sprintf("capture-%s", settlementID)
}

// TransferIdempotencyKey derives the stable key sent to the registrar for
// this settlement.
func TransferIdempotencyKey(settlementID uuid.UUID) string {
	return fmt.Sprintf("transfer-%s", settlementID)
}

// SplitProceeds divides a winning amount into seller proceeds and marketplace
// commission at the given rate.  Amounts are floored to 4 decimal places
// (matching DB DECIMAL(18,4)); the commission keeps the remainder so the two
// parts always sum to the full amount.
func SplitProceeds(amount, commissionRate decimal.Decimal) (proceeds, commission decimal.Decimal) {
	one := decimal.NewFromInt(1)
	proceeds = amount.Mul(one.Sub(commissionRate)).RoundDown(4)
	commission = amount.Sub(proceeds)
	return proceeds, commission
}
