package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/carewell-hms/carewell/internal/platform/db"
	"github.com/carewell-hms/carewell/internal/shared"
)

// Repository defines persistence operations for the permission catalog.
type Repository interface {
	Upsert(ctx context.Context, p Permission) (Permission, error)
	List(ctx context.Context) ([]Permission, error)
	Get(ctx context.Context, code string) (Permission, error)
	Exists(ctx context.Context, code string) (bool, error)
	CountRoleGrants(ctx context.Context, code string) (int64, error)
	Delete(ctx context.Context, code string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Upsert inserts a permission or refreshes its metadata. A system flag is never cleared.
func (r *PGRepository) Upsert(ctx context.Context, p Permission) (Permission, error) {
	const q = `INSERT INTO permissions (code, category, description, is_system)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE
SET category = EXCLUDED.category,
    description = EXCLUDED.description,
    is_system = permissions.is_system OR EXCLUDED.is_system
RETURNING id, code, category, description, is_system, created_at`
	var out Permission
	err := r.pool.QueryRow(ctx, q, p.Code, p.Category, p.Description, p.IsSystem).
		Scan(&out.ID, &out.Code, &out.Category, &out.Description, &out.IsSystem, &out.CreatedAt)
	if err != nil {
		return Permission{}, fmt.Errorf("permissions: upsert %s: %w", p.Code, err)
	}
	return out, nil
}

// List returns all permissions ordered by code.
func (r *PGRepository) List(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, category, description, is_system, created_at FROM permissions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Category, &p.Description, &p.IsSystem, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// Get fetches a permission by code.
func (r *PGRepository) Get(ctx context.Context, code string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, code, category, description, is_system, created_at FROM permissions WHERE code = $1`, code).
		Scan(&p.ID, &p.Code, &p.Category, &p.Description, &p.IsSystem, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// Exists reports whether the code is registered.
func (r *PGRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// CountRoleGrants counts roles that reference the permission.
func (r *PGRepository) CountRoleGrants(ctx context.Context, code string) (int64, error) {
	const q = `SELECT COUNT(*) FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id WHERE p.code = $1`
	var n int64
	err := r.pool.QueryRow(ctx, q, code).Scan(&n)
	return n, err
}

// Delete removes a permission by code.
func (r *PGRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE code = $1`, code)
	if err != nil {
		if platformdb.IsForeignKeyViolation(err, "") {
			return shared.ErrPermissionInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
