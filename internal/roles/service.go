package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/carewell-hms/carewell/internal/shared"
)

// Catalog is the subset of the permission catalog the role store depends on.
type Catalog interface {
	Codes(ctx context.Context) ([]string, error)
	Missing(ctx context.Context, codes []string) ([]string, error)
}

// Invalidator drops cached principals of a tenant after a role mutation.
type Invalidator interface {
	InvalidateTenant(ctx context.Context, tenantID int64) error
}

// Service implements tenant-scoped role management.
type Service struct {
	repo        Repository
	catalog     Catalog
	invalidator Invalidator
}

// NewService builds Service instance.
func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// SetInvalidator registers the cross-request permission cache to invalidate on mutation.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// CreateRole creates a custom role in the tenant.
func (s *Service) CreateRole(ctx context.Context, tenantID int64, name, description string, codes []string) (Role, error) {
	name, err := validateName(name)
	if err != nil {
		return Role{}, err
	}
	if err := ensureNotReserved(name); err != nil {
		return Role{}, err
	}
	if err := s.ensureNameFree(ctx, tenantID, name, 0); err != nil {
		return Role{}, err
	}
	codes = normalizeCodes(codes)
	if err := s.ensureKnown(ctx, codes); err != nil {
		return Role{}, err
	}
	role, err := s.repo.Create(ctx, Role{
		TenantID:        tenantID,
		Name:            name,
		Description:     strings.TrimSpace(description),
		IsActive:        true,
		PermissionCodes: codes,
	})
	if err != nil {
		return Role{}, err
	}
	if err := s.invalidate(ctx, tenantID); err != nil {
		return role, err
	}
	return role, nil
}

// GetRole returns a role of the tenant. Roles of other tenants are reported as not found.
func (s *Service) GetRole(ctx context.Context, tenantID, roleID int64) (Role, error) {
	return s.repo.Get(ctx, tenantID, roleID)
}

// ListRoles returns all roles of the tenant.
func (s *Service) ListRoles(ctx context.Context, tenantID int64) ([]Role, error) {
	return s.repo.List(ctx, tenantID)
}

// UpdateRole applies patch to a role using optimistic concurrency on patch.Version.
func (s *Service) UpdateRole(ctx context.Context, tenantID, roleID int64, patch Patch) (Role, error) {
	current, err := s.repo.Get(ctx, tenantID, roleID)
	if err != nil {
		return Role{}, err
	}
	if patch.Version != current.Version {
		return Role{}, fmt.Errorf("roles: update %d: version %d is stale: %w", roleID, patch.Version, shared.ErrConflict)
	}
	next := current
	if patch.Name != nil {
		name, err := validateName(*patch.Name)
		if err != nil {
			return Role{}, err
		}
		if current.IsSystem && name != current.Name {
			return Role{}, fmt.Errorf("roles: rename %q: %w", current.Name, shared.ErrSystemRoleImmutable)
		}
		if !current.IsSystem {
			if err := ensureNotReserved(name); err != nil {
				return Role{}, err
			}
		}
		if NameKey(name) != NameKey(current.Name) {
			if err := s.ensureNameFree(ctx, tenantID, name, current.ID); err != nil {
				return Role{}, err
			}
		}
		next.Name = name
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.IsActive != nil {
		if current.IsSystem && !*patch.IsActive {
			return Role{}, fmt.Errorf("roles: deactivate %q: %w", current.Name, shared.ErrSystemRoleImmutable)
		}
		next.IsActive = *patch.IsActive
	}
	if patch.PermissionCodes != nil {
		codes := normalizeCodes(*patch.PermissionCodes)
		if err := s.ensureKnown(ctx, codes); err != nil {
			return Role{}, err
		}
		if current.IsSystem {
			all, err := s.catalog.Codes(ctx)
			if err != nil {
				return Role{}, err
			}
			if !sameCodeSet(codes, all) {
				return Role{}, fmt.Errorf("roles: change permissions of %q: %w", current.Name, shared.ErrSystemRoleImmutable)
			}
		} else {
			next.PermissionCodes = codes
		}
	}
	updated, err := s.repo.Update(ctx, next, patch.Version)
	if err != nil {
		return Role{}, err
	}
	if err := s.invalidate(ctx, tenantID); err != nil {
		return updated, err
	}
	return updated, nil
}

// DeleteRole removes a custom role that no user references.
func (s *Service) DeleteRole(ctx context.Context, tenantID, roleID int64) error {
	role, err := s.repo.Get(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("roles: delete %q: %w", role.Name, shared.ErrSystemRoleImmutable)
	}
	users, err := s.repo.CountUsers(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if users > 0 {
		return &shared.RoleInUseError{RoleID: roleID, Users: users}
	}
	if err := s.repo.Delete(ctx, tenantID, roleID); err != nil {
		if errors.Is(err, shared.ErrRoleInUse) {
			return &shared.RoleInUseError{RoleID: roleID}
		}
		return err
	}
	return s.invalidate(ctx, tenantID)
}

// EffectivePermissions returns the codes a role grants. The system role always grants the current catalog.
func (s *Service) EffectivePermissions(ctx context.Context, role Role) ([]string, error) {
	if role.IsSystem {
		return s.catalog.Codes(ctx)
	}
	out := make([]string, len(role.PermissionCodes))
	copy(out, role.PermissionCodes)
	return out, nil
}

// ProvisionTenant makes sure the tenant has its active system Admin role.
func (s *Service) ProvisionTenant(ctx context.Context, tenantID int64) (Role, error) {
	role, err := s.repo.SystemRole(ctx, tenantID)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Role{}, err
	}
	role, err = s.repo.Create(ctx, Role{
		TenantID:        tenantID,
		Name:            SystemRoleName,
		Description:     "Full access to every permission in the catalog",
		IsSystem:        true,
		IsActive:        true,
		PermissionCodes: []string{},
	})
	if errors.Is(err, shared.ErrDuplicateName) {
		// Lost a race with a concurrent provisioning of the same tenant.
		role, err = s.repo.SystemRole(ctx, tenantID)
		if errors.Is(err, shared.ErrNotFound) {
			return Role{}, fmt.Errorf("roles: provision tenant %d: custom role holds the name %q: %w", tenantID, SystemRoleName, shared.ErrDuplicateName)
		}
	}
	return role, err
}

func (s *Service) ensureNameFree(ctx context.Context, tenantID int64, name string, selfID int64) error {
	existing, err := s.repo.FindByName(ctx, tenantID, NameKey(name))
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == selfID:
		return nil
	default:
		return fmt.Errorf("roles: name %q: %w", name, shared.ErrDuplicateName)
	}
}

func (s *Service) ensureKnown(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	missing, err := s.catalog.Missing(ctx, codes)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &shared.UnknownPermissionError{Codes: missing}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, tenantID int64) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("roles: invalidate tenant %d: %w", tenantID, err)
	}
	return nil
}

// ensureNotReserved keeps the system role name free in every tenant, provisioned or not.
func ensureNotReserved(name string) error {
	if NameKey(name) == NameKey(SystemRoleName) {
		return &shared.ValidationError{Field: "name", Message: fmt.Sprintf("%q is reserved for the system role", SystemRoleName)}
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &shared.ValidationError{Field: "name", Message: "is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", &shared.ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	return name, nil
}
