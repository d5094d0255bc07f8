package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/carewell-hms/carewell/internal/platform/db"
	"github.com/carewell-hms/carewell/internal/shared"
)

const constraintUserRole = "users_tenant_role_fkey"

// Repository defines persistence for user authorization attributes.
type Repository interface {
	// FindByID loads a user regardless of tenant so the caller can compare tenants itself.
	FindByID(ctx context.Context, userID int64) (User, error)
	Get(ctx context.Context, tenantID, userID int64) (User, error)
	List(ctx context.Context, tenantID int64) ([]User, error)
	SetRole(ctx context.Context, tenantID, userID int64, roleID *int64) error
	SetOverrides(ctx context.Context, tenantID, userID int64, o Overrides) error
	SetActive(ctx context.Context, tenantID, userID int64, active bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectUser = `SELECT id, tenant_id, email, name, role_id, role, custom_permissions, is_active, created_at, updated_at FROM users `

func scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		roleID pgtype.Int8
		legacy pgtype.Text
		custom []byte
	)
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &roleID, &legacy, &custom, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	if roleID.Valid {
		id := roleID.Int64
		u.RoleID = &id
	}
	if legacy.Valid {
		u.LegacyRole = LegacyRole(legacy.String)
	}
	overrides, err := ParseOverrides(custom)
	if err != nil {
		return User{}, err
	}
	u.Overrides = overrides
	return u, nil
}

func (r *PGRepository) getOne(ctx context.Context, where string, args ...any) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// FindByID loads a user by id.
func (r *PGRepository) FindByID(ctx context.Context, userID int64) (User, error) {
	return r.getOne(ctx, "WHERE id = $1", userID)
}

// Get loads a user of the tenant.
func (r *PGRepository) Get(ctx context.Context, tenantID, userID int64) (User, error) {
	return r.getOne(ctx, "WHERE tenant_id = $1 AND id = $2", tenantID, userID)
}

// List returns all users of the tenant ordered by email.
func (r *PGRepository) List(ctx context.Context, tenantID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUser+"WHERE tenant_id = $1 ORDER BY email", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetRole assigns roleID, or clears it when nil.
func (r *PGRepository) SetRole(ctx context.Context, tenantID, userID int64, roleID *int64) error {
	var arg pgtype.Int8
	if roleID != nil {
		arg = pgtype.Int8{Int64: *roleID, Valid: true}
	}
	err := r.exec(ctx, `UPDATE users SET role_id = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`, tenantID, userID, arg)
	if platformdb.IsForeignKeyViolation(err, constraintUserRole) {
		return fmt.Errorf("users: assign role: %w", shared.ErrNotFound)
	}
	return err
}

// SetOverrides stores the custom permission document.
func (r *PGRepository) SetOverrides(ctx context.Context, tenantID, userID int64, o Overrides) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("users: encode overrides: %w", err)
	}
	return r.exec(ctx, `UPDATE users SET custom_permissions = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`, tenantID, userID, doc)
}

// SetActive toggles the user's active flag.
func (r *PGRepository) SetActive(ctx context.Context, tenantID, userID int64, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`, tenantID, userID, active)
}

func (r *PGRepository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
