package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/carewell-hms/carewell/internal/platform/db"
	"github.com/carewell-hms/carewell/internal/shared"
)

const (
	constraintTenantName = "tenant_roles_tenant_name_key"
	constraintUserRole   = "users_tenant_role_fkey"
)

// Repository defines tenant-scoped persistence for roles. Every lookup takes the tenant id.
type Repository interface {
	Create(ctx context.Context, role Role) (Role, error)
	Get(ctx context.Context, tenantID, roleID int64) (Role, error)
	FindByName(ctx context.Context, tenantID int64, nameKey string) (Role, error)
	List(ctx context.Context, tenantID int64) ([]Role, error)
	Update(ctx context.Context, role Role, expectedVersion int) (Role, error)
	Delete(ctx context.Context, tenantID, roleID int64) error
	CountUsers(ctx context.Context, tenantID, roleID int64) (int64, error)
	SystemRole(ctx context.Context, tenantID int64) (Role, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectRole = `SELECT r.id, r.tenant_id, r.name, r.description, r.is_system, r.is_active, r.version,
       r.created_at, r.updated_at,
       COALESCE(array_agg(p.code ORDER BY p.code) FILTER (WHERE p.code IS NOT NULL), '{}')::text[]
FROM tenant_roles r
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.TenantID, &role.Name, &role.Description, &role.IsSystem, &role.IsActive,
		&role.Version, &role.CreatedAt, &role.UpdatedAt, &role.PermissionCodes)
	return role, err
}

func (r *PGRepository) getOne(ctx context.Context, where string, args ...any) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, selectRole+where+" GROUP BY r.id", args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// Create inserts a role with its permission grants.
func (r *PGRepository) Create(ctx context.Context, role Role) (Role, error) {
	var id int64
	err := platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO tenant_roles (tenant_id, name, name_key, description, is_system, is_active, version)
VALUES ($1, $2, $3, $4, $5, $6, 1)
RETURNING id`
		if err := tx.QueryRow(ctx, q, role.TenantID, role.Name, NameKey(role.Name), role.Description, role.IsSystem, role.IsActive).Scan(&id); err != nil {
			return err
		}
		return replaceGrants(ctx, tx, id, role.PermissionCodes)
	})
	if err != nil {
		return Role{}, mapWriteError("create", err)
	}
	return r.Get(ctx, role.TenantID, id)
}

// Get loads a role owned by tenantID.
func (r *PGRepository) Get(ctx context.Context, tenantID, roleID int64) (Role, error) {
	return r.getOne(ctx, "WHERE r.tenant_id = $1 AND r.id = $2", tenantID, roleID)
}

// FindByName loads a role by its folded name.
func (r *PGRepository) FindByName(ctx context.Context, tenantID int64, nameKey string) (Role, error) {
	return r.getOne(ctx, "WHERE r.tenant_id = $1 AND r.name_key = $2", tenantID, nameKey)
}

// SystemRole loads the tenant's protected Admin role.
func (r *PGRepository) SystemRole(ctx context.Context, tenantID int64) (Role, error) {
	return r.getOne(ctx, "WHERE r.tenant_id = $1 AND r.is_system", tenantID)
}

// List returns every role of the tenant ordered by name.
func (r *PGRepository) List(ctx context.Context, tenantID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, selectRole+"WHERE r.tenant_id = $1 GROUP BY r.id ORDER BY r.name_key", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Update writes the role if its stored version still equals expectedVersion.
func (r *PGRepository) Update(ctx context.Context, role Role, expectedVersion int) (Role, error) {
	err := platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `UPDATE tenant_roles
SET name = $4, name_key = $5, description = $6, is_active = $7, version = version + 1, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND version = $3`
		tag, err := tx.Exec(ctx, q, role.TenantID, role.ID, expectedVersion, role.Name, NameKey(role.Name), role.Description, role.IsActive)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrConflict
		}
		if role.IsSystem {
			return nil
		}
		return replaceGrants(ctx, tx, role.ID, role.PermissionCodes)
	})
	if err != nil {
		return Role{}, mapWriteError("update", err)
	}
	return r.Get(ctx, role.TenantID, role.ID)
}

// Delete removes a non-system role of the tenant.
func (r *PGRepository) Delete(ctx context.Context, tenantID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenant_roles WHERE tenant_id = $1 AND id = $2 AND NOT is_system`, tenantID, roleID)
	if err != nil {
		return mapWriteError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountUsers counts users of the tenant assigned to the role.
func (r *PGRepository) CountUsers(ctx context.Context, tenantID, roleID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND role_id = $2`, tenantID, roleID).Scan(&n)
	return n, err
}

func replaceGrants(ctx context.Context, tx pgx.Tx, roleID int64, codes []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	if len(codes) == 0 {
		return nil
	}
	const q = `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, p.id FROM permissions p WHERE p.code = ANY($2)`
	tag, err := tx.Exec(ctx, q, roleID, codes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != int64(len(codes)) {
		return shared.ErrUnknownPermission
	}
	return nil
}

func mapWriteError(op string, err error) error {
	switch {
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrUnknownPermission):
		return fmt.Errorf("roles: %s: %w", op, err)
	case platformdb.IsUniqueViolation(err, constraintTenantName):
		return fmt.Errorf("roles: %s: %w", op, shared.ErrDuplicateName)
	case platformdb.IsForeignKeyViolation(err, constraintUserRole):
		return fmt.Errorf("roles: %s: %w", op, shared.ErrRoleInUse)
	case platformdb.IsSerializationFailure(err):
		return fmt.Errorf("roles: %s: %w", op, shared.ErrConflict)
	default:
		return fmt.Errorf("roles: %s: %w", op, err)
	}
}

var _ Repository = (*PGRepository)(nil)
