package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DomainAsset is a registered domain name owned by a marketplace user.
// Ownership changes only at settlement (auction win) or registration.
type DomainAsset struct {
	ID         uuid.UUID        `json:"id"          db:"id"`
	Name       string           `json:"name"        db:"name"`
	OwnerID    uuid.UUID        `json:"owner_id"    db:"owner_id"`
	Price      *decimal.Decimal `json:"price"       db:"price"`       // last acquisition price
	AcquiredAt time.Time        `json:"acquired_at" db:"acquired_at"` // registration or auction win
	ExpiresAt  *time.Time       `json:"expires_at"  db:"expires_at"`  // registrar expiry, if known
	CreatedAt  time.Time        `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"  db:"updated_at"`
}

// OwnedBy reports whether the asset currently belongs to userID.
func (d *DomainAsset) OwnedBy(userID uuid.UUID) bool {
	return d.OwnerID == userID
}
