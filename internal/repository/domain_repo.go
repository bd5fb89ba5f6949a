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

// DomainRepository handles all database operations for DomainAssets.
type DomainRepository struct {
	db *sqlx.DB
}

// NewDomainRepository creates a new DomainRepository.
func NewDomainRepository(db *sqlx.DB) *DomainRepository {
	return &DomainRepository{db: db}
}

// Create inserts a new domain asset row.
func (r *DomainRepository) Create(ctx context.Context, d *domain.DomainAsset) error {
	query := `
		INSERT INTO domains
			(id, name, owner_id, price, acquired_at, expires_at, created_at, updated_at)
		VALUES
			(:id, :name, :owner_id, :price, :acquired_at, :expires_at, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("domain_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a domain asset by its primary key.
func (r *DomainRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DomainAsset, error) {
	var d domain.DomainAsset
	err := r.db.GetContext(ctx, &d, `SELECT * FROM domains WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDomainNotFound
		}
		return nil, fmt.Errorf("domain_repo.GetByID: %w", err)
	}
	return &d, nil
}

// GetByName fetches a domain asset by its (unique, lowercased) name.
func (r *DomainRepository) GetByName(ctx context.Context, name string) (*domain.DomainAsset, error) {
	var d domain.DomainAsset
	err := r.db.GetContext(ctx, &d, `SELECT * FROM domains WHERE name = lower($1)`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDomainNotFound
		}
		return nil, fmt.Errorf("domain_repo.GetByName: %w", err)
	}
	return &d, nil
}

// ListByOwner returns all domains a user owns, alphabetically.
func (r *DomainRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.DomainAsset, error) {
	var ds []*domain.DomainAsset
	err := r.db.SelectContext(ctx, &ds,
		`SELECT * FROM domains WHERE owner_id = $1 ORDER BY name ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("domain_repo.ListByOwner: %w", err)
	}
	return ds, nil
}

// TransferOwnership reassigns a domain to the winner within the settlement
// transaction, recording the winning amount as the acquisition price.
func (r *DomainRepository) TransferOwnership(ctx context.Context, tx *sqlx.Tx, domainID, newOwnerID uuid.UUID, price decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE domains
		 SET owner_id = $1, price = $2, acquired_at = now(), updated_at = now()
		 WHERE id = $3`,
		newOwnerID, price, domainID)
	if err != nil {
		return fmt.Errorf("domain_repo.TransferOwnership: %w", err)
	}
	return oneRowOr(res, domain.ErrDomainNotFound)
}
