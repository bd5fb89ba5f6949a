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

// SettlementRepository handles all database operations for Settlements.
type SettlementRepository struct {
	db *sqlx.DB
}

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// GetByAuction fetches the settlement row for an auction.
func (r *SettlementRepository) GetByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Settlement, error) {
	var s domain.Settlement
	err := r.db.GetContext(ctx, &s, `SELECT * FROM settlements WHERE auction_id = $1`, auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSettlementNotFound
		}
		return nil, fmt.Errorf("settlement_repo.GetByAuction: %w", err)
	}
	return &s, nil
}

// Create inserts the settlement row for an auction.  The unique constraint on
// auction_id makes concurrent creation safe: the loser of the race does
// nothing and re-reads the existing row.
func (r *SettlementRepository) Create(ctx context.Context, s *domain.Settlement) error {
	query := `
		INSERT INTO settlements
			(id, auction_id, winner_id, amount, seller_proceeds, commission,
			 status, attempts, payment_key, transfer_key,
			 payment_captured_at, transferred_at, last_error, completed_at,
			 created_at, updated_at)
		VALUES
			(:id, :auction_id, :winner_id, :amount, :seller_proceeds, :commission,
			 :status, :attempts, :payment_key, :transfer_key,
			 :payment_captured_at, :transferred_at, :last_error, :completed_at,
			 :created_at, :updated_at)
		ON CONFLICT (auction_id) DO NOTHING`
	_, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("settlement_repo.Create: %w", err)
	}
	return nil
}

// RecordAttempt increments the attempt counter and stamps the settlement
// pending before external calls begin.
func (r *SettlementRepository) RecordAttempt(ctx context.Context, settlementID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE settlements
		 SET attempts = attempts + 1, status = 'pending', updated_at = now()
		 WHERE id = $1`,
		settlementID)
	if err != nil {
		return fmt.Errorf("settlement_repo.RecordAttempt: %w", err)
	}
	return nil
}

// MarkCaptured records a successful payment capture.  Written immediately
// after the collaborator confirms, before the transfer starts, so a crash in
// between never repeats the charge.
func (r *SettlementRepository) MarkCaptured(ctx context.Context, settlementID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE settlements
		 SET payment_captured_at = COALESCE(payment_captured_at, now()), updated_at = now()
		 WHERE id = $1`,
		settlementID)
	if err != nil {
		return fmt.Errorf("settlement_repo.MarkCaptured: %w", err)
	}
	return nil
}

// MarkTransferred records a successful domain transfer.
func (r *SettlementRepository) MarkTransferred(ctx context.Context, settlementID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE settlements
		 SET transferred_at = COALESCE(transferred_at, now()), updated_at = now()
		 WHERE id = $1`,
		settlementID)
	if err != nil {
		return fmt.Errorf("settlement_repo.MarkTransferred: %w", err)
	}
	return nil
}

// MarkCompleted finalises the settlement within the calling transaction,
// alongside the auction status flip and wallet credits.
func (r *SettlementRepository) MarkCompleted(ctx context.Context, tx *sqlx.Tx, settlementID uuid.UUID) error {
	var res sql.Result
	var err error
	query := `
		UPDATE settlements
		SET status = 'completed', completed_at = now(), last_error = NULL, updated_at = now()
		WHERE id = $1 AND status <> 'completed'`
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, settlementID)
	} else {
		res, err = r.db.ExecContext(ctx, query, settlementID)
	}
	if err != nil {
		return fmt.Errorf("settlement_repo.MarkCompleted: %w", err)
	}
	return oneRowOr(res, domain.ErrAlreadySettled)
}

// MarkFailed records a failed attempt.  The settlement stays retryable;
// step-completion timestamps written earlier survive untouched.
func (r *SettlementRepository) MarkFailed(ctx context.Context, settlementID uuid.UUID, cause string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE settlements
		 SET status = 'failed', last_error = $1, updated_at = now()
		 WHERE id = $2 AND status <> 'completed'`,
		cause, settlementID)
	if err != nil {
		return fmt.Errorf("settlement_repo.MarkFailed: %w", err)
	}
	return nil
}

// ListNeedingAttention returns failed settlements that exhausted their retry
// budget.  These require manual intervention via the back-office.
func (r *SettlementRepository) ListNeedingAttention(ctx context.Context, maxAttempts int) ([]*domain.Settlement, error) {
	var settlements []*domain.Settlement
	err := r.db.SelectContext(ctx, &settlements,
		`SELECT * FROM settlements
		 WHERE status = 'failed' AND attempts >= $1
		 ORDER BY updated_at ASC`,
		maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("settlement_repo.ListNeedingAttention: %w", err)
	}
	return settlements, nil
}

// FinanceSummary aggregates completed settlements for back-office reporting.
type FinanceSummary struct {
	SettledCount    int    `db:"settled_count"    json:"settled_count"`
	TotalVolume     string `db:"total_volume"     json:"total_volume"`
	TotalCommission string `db:"total_commission" json:"total_commission"`
}

// Summary computes totals over all completed settlements with a winner.
func (r *SettlementRepository) Summary(ctx context.Context) (*FinanceSummary, error) {
	var s FinanceSummary
	err := r.db.GetContext(ctx, &s,
		`SELECT COUNT(*)                        AS settled_count,
		        COALESCE(SUM(amount), 0)::text     AS total_volume,
		        COALESCE(SUM(commission), 0)::text AS total_commission
		 FROM settlements
		 WHERE status = 'completed' AND winner_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("settlement_repo.Summary: %w", err)
	}
	return &s, nil
}
