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

// WalletRepository handles wallet balances and their transaction audit log.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a wallet row, typically at registration time.
func (r *WalletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, wallet_type, balance, created_at, updated_at)
		VALUES (:id, :user_id, :wallet_type, :balance, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, w)
	if err != nil {
		return fmt.Errorf("wallet_repo.Create: %w", err)
	}
	return nil
}

// GetByUserID fetches a user's wallet.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w,
		`SELECT * FROM wallets WHERE user_id = $1 AND wallet_type IS NULL`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetByUserID: %w", err)
	}
	return &w, nil
}

// GetPlatform fetches the single house wallet that collects commission.
func (r *WalletRepository) GetPlatform(ctx context.Context) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w,
		`SELECT * FROM wallets WHERE wallet_type = 'platform' LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetPlatform: %w", err)
	}
	return &w, nil
}

// Credit adds amount to a wallet and writes the audit transaction, all within
// the caller's transaction.  The row is locked first so balance_before /
// balance_after in the audit log are exact even under concurrent credits.
func (r *WalletRepository) Credit(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount decimal.Decimal, txType domain.TxType, refID *uuid.UUID, description string) error {
	var before decimal.Decimal
	err := tx.GetContext(ctx, &before,
		`SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrWalletNotFound
		}
		return fmt.Errorf("wallet_repo.Credit lock: %w", err)
	}

	after := before.Add(amount)
	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2`,
		after, walletID); err != nil {
		return fmt.Errorf("wallet_repo.Credit update: %w", err)
	}

	entry := domain.Transaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		RefID:         refID,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err = tx.NamedExecContext(ctx,
		`INSERT INTO wallet_transactions
			(id, wallet_id, type, amount, balance_before, balance_after, ref_id, description, created_at)
		 VALUES
			(:id, :wallet_id, :type, :amount, :balance_before, :balance_after, :ref_id, :description, :created_at)`,
		entry); err != nil {
		return fmt.Errorf("wallet_repo.Credit log: %w", err)
	}
	return nil
}

// GetTransactions returns a wallet's audit log, newest first.
func (r *WalletRepository) GetTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := r.db.SelectContext(ctx, &txs,
		`SELECT * FROM wallet_transactions
		 WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.GetTransactions: %w", err)
	}
	return txs, nil
}
