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

// UserRepository handles all database operations for Users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users
			(id, email, username, password_hash, role, is_active, created_at, updated_at)
		VALUES
			(:id, :email, :username, :password_hash, :role, :is_active, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, u)
	if err != nil {
		return fmt.Errorf("user_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByID: %w", err)
	}
	return &u, nil
}

// GetByEmail fetches a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByEmail: %w", err)
	}
	return &u, nil
}

// ExistsByEmailOrUsername reports which of the two identifiers is taken.
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error) {
	row := struct {
		EmailTaken    bool `db:"email_taken"`
		UsernameTaken bool `db:"username_taken"`
	}{}
	err = r.db.GetContext(ctx, &row,
		`SELECT
			EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))    AS email_taken,
			EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($2)) AS username_taken`,
		email, username)
	if err != nil {
		return false, false, fmt.Errorf("user_repo.ExistsByEmailOrUsername: %w", err)
	}
	return row.EmailTaken, row.UsernameTaken, nil
}

// SetActive toggles a user's active flag (back-office suspend/restore).
func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, id)
	if err != nil {
		return fmt.Errorf("user_repo.SetActive: %w", err)
	}
	return oneRowOr(res, domain.ErrUserNotFound)
}
