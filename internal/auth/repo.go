package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewell-hms/carewell/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	TouchLogin(ctx context.Context, userID int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT id, tenant_id, email, password_hash, role, is_active, created_at, updated_at
FROM users WHERE lower(email) = $1`
	var (
		user   User
		legacy pgtype.Text
	)
	err := r.pool.QueryRow(ctx, q, email).Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash,
		&legacy, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if legacy.Valid {
		user.LegacyRole = legacy.String
	}
	return &user, nil
}

// TouchLogin records the last successful login.
func (r *PGRepository) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, pgtype.Timestamptz{Time: at, Valid: true})
	return err
}

var _ Repository = (*PGRepository)(nil)
