package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carewell-hms/carewell/internal/roles"
	"github.com/carewell-hms/carewell/internal/shared"
	"github.com/carewell-hms/carewell/internal/users"
)

// UserSource loads users by id across tenants.
type UserSource interface {
	FindByID(ctx context.Context, userID int64) (users.User, error)
}

// RoleSource loads tenant-scoped roles and their effective permissions.
type RoleSource interface {
	GetRole(ctx context.Context, tenantID, roleID int64) (roles.Role, error)
	EffectivePermissions(ctx context.Context, role roles.Role) ([]string, error)
}

// CatalogSource lists every registered permission code.
type CatalogSource interface {
	Codes(ctx context.Context) ([]string, error)
}

// Generation identifies a tenant's cache epoch. Negative values disable storing.
type Generation int64

// PrincipalCache stores resolved principals across requests.
type PrincipalCache interface {
	Load(ctx context.Context, tenantID, userID int64) (*Principal, Generation, bool)
	Store(ctx context.Context, gen Generation, p *Principal)
}

// Resolver turns verified identity claims into a Principal.
type Resolver struct {
	users   UserSource
	roles   RoleSource
	catalog CatalogSource
	cache   PrincipalCache
	logger  *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(users UserSource, roles RoleSource, catalog CatalogSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{users: users, roles: roles, catalog: catalog, logger: logger}
}

// SetCache enables the cross-request principal cache.
func (r *Resolver) SetCache(cache PrincipalCache) {
	r.cache = cache
}

// Resolve loads the user, checks it belongs to tenantID and computes its effective permissions.
func (r *Resolver) Resolve(ctx context.Context, userID, tenantID int64) (*Principal, error) {
	gen := Generation(-1)
	if r.cache != nil {
		cached, g, ok := r.cache.Load(ctx, tenantID, userID)
		if ok {
			return cached, nil
		}
		gen = g
	}
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load user %d: %w", userID, err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("rbac: user %d: %w", userID, shared.ErrUserInactive)
	}
	if user.TenantID != tenantID {
		return nil, fmt.Errorf("rbac: user %d of tenant %d requested tenant %d: %w", userID, user.TenantID, tenantID, shared.ErrTenantMismatch)
	}

	p := &Principal{TenantID: user.TenantID, UserID: user.ID, LegacyRole: user.LegacyRole}
	var base []string
	if user.RoleID != nil {
		role, err := r.roles.GetRole(ctx, user.TenantID, *user.RoleID)
		if err != nil {
			return nil, fmt.Errorf("rbac: load role %d: %w", *user.RoleID, err)
		}
		if !role.IsActive {
			return nil, fmt.Errorf("rbac: role %d: %w", role.ID, shared.ErrRoleInactive)
		}
		id := role.ID
		p.RoleID = &id
		p.RoleName = role.Name
		if base, err = r.roles.EffectivePermissions(ctx, role); err != nil {
			return nil, fmt.Errorf("rbac: role %d permissions: %w", role.ID, err)
		}
	} else {
		if base, err = r.legacyPermissions(ctx, p); err != nil {
			return nil, err
		}
	}
	p.Permissions = layer(base, user.Overrides)

	if r.cache != nil && gen >= 0 {
		r.cache.Store(ctx, gen, p)
	}
	return p, nil
}

func (r *Resolver) legacyPermissions(ctx context.Context, p *Principal) ([]string, error) {
	grant, ok := lookupLegacy(p.LegacyRole)
	if !ok {
		r.logger.Warn("unknown legacy role",
			slog.String("legacy_role", string(p.LegacyRole)),
			slog.Int64("user_id", p.UserID),
			slog.Int("mapping_version", LegacyMappingVersion))
		return nil, nil
	}
	p.RoleName = string(p.LegacyRole)
	p.SuperAdmin = grant.superAdmin
	if grant.fullCatalog {
		codes, err := r.catalog.Codes(ctx)
		if err != nil {
			return nil, fmt.Errorf("rbac: load catalog: %w", err)
		}
		return codes, nil
	}
	return grant.codes, nil
}

// layer applies overrides on top of base. Revoked codes win over granted ones.
func layer(base []string, o users.Overrides) PermissionSet {
	set := make(PermissionSet, len(base)+len(o.Granted))
	for _, c := range base {
		set[c] = struct{}{}
	}
	for _, c := range o.Granted {
		set[c] = struct{}{}
	}
	for _, c := range o.Revoked {
		delete(set, c)
	}
	return set
}
