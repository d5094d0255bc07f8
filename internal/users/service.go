package users

import (
	"context"
	"fmt"

	"github.com/carewell-hms/carewell/internal/roles"
	"github.com/carewell-hms/carewell/internal/shared"
)

// RoleLookup resolves tenant-scoped roles for assignment.
type RoleLookup interface {
	GetRole(ctx context.Context, tenantID, roleID int64) (roles.Role, error)
}

// Catalog validates override codes.
type Catalog interface {
	Missing(ctx context.Context, codes []string) ([]string, error)
}

// Invalidator drops cached principals of a tenant.
type Invalidator interface {
	InvalidateTenant(ctx context.Context, tenantID int64) error
}

// Service handles user authorization attributes.
type Service struct {
	repo        Repository
	roles       RoleLookup
	catalog     Catalog
	invalidator Invalidator
}

// NewService builds Service instance.
func NewService(repo Repository, roles RoleLookup, catalog Catalog) *Service {
	return &Service{repo: repo, roles: roles, catalog: catalog}
}

// SetInvalidator registers the permission cache to invalidate on mutation.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// FindByID loads a user without tenant scoping. Only the principal resolver should call it.
func (s *Service) FindByID(ctx context.Context, userID int64) (User, error) {
	return s.repo.FindByID(ctx, userID)
}

// GetUser returns a user of the tenant.
func (s *Service) GetUser(ctx context.Context, tenantID, userID int64) (User, error) {
	return s.repo.Get(ctx, tenantID, userID)
}

// ListUsers returns all users of the tenant.
func (s *Service) ListUsers(ctx context.Context, tenantID int64) ([]User, error) {
	return s.repo.List(ctx, tenantID)
}

// AssignRole points the user at a role of the same tenant. A nil roleID falls back to the legacy role.
func (s *Service) AssignRole(ctx context.Context, tenantID, userID int64, roleID *int64) error {
	if roleID != nil {
		role, err := s.roles.GetRole(ctx, tenantID, *roleID)
		if err != nil {
			return err
		}
		if !role.IsActive {
			return &shared.ValidationError{Field: "role_id", Message: "role is inactive"}
		}
	}
	if err := s.repo.SetRole(ctx, tenantID, userID, roleID); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID)
}

// SetOverrides replaces the user's grant and revoke lists.
func (s *Service) SetOverrides(ctx context.Context, tenantID, userID int64, o Overrides) error {
	o.Granted = dedupe(trimCodes(o.Granted))
	o.Revoked = dedupe(trimCodes(o.Revoked))
	if codes := o.Codes(); len(codes) > 0 {
		missing, err := s.catalog.Missing(ctx, codes)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return &shared.UnknownPermissionError{Codes: missing}
		}
	}
	if err := s.repo.SetOverrides(ctx, tenantID, userID, o); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID)
}

// SetActive enables or disables the user.
func (s *Service) SetActive(ctx context.Context, tenantID, userID int64, active bool) error {
	if err := s.repo.SetActive(ctx, tenantID, userID, active); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID)
}

func (s *Service) invalidate(ctx context.Context, tenantID int64) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("users: invalidate tenant %d: %w", tenantID, err)
	}
	return nil
}

func dedupe(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	out := codes[:0]
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
