package permissions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carewell-hms/carewell/internal/shared"
)

const (
	listAllKey = "catalog:list"
	// loadTimeout bounds a shared catalog load that no longer follows any caller's context.
	loadTimeout = 10 * time.Second
)

// Invalidator drops cached principals derived from the catalog after it changes.
type Invalidator interface {
	InvalidateCatalog(ctx context.Context) error
}

// Catalog is the single source of truth for valid permission codes.
type Catalog struct {
	repo        Repository
	loads       singleflight.Group
	invalidator Invalidator
}

// NewCatalog constructs a Catalog backed by repo.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

// SetInvalidator registers the cross-request permission cache to invalidate on catalog changes.
func (c *Catalog) SetInvalidator(inv Invalidator) {
	c.invalidator = inv
}

// Register upserts a permission. Calling it twice with the same input is a no-op.
func (c *Catalog) Register(ctx context.Context, code, category, description string, isSystem bool) (Permission, error) {
	perm, err := c.register(ctx, code, category, description, isSystem)
	if err != nil {
		return Permission{}, err
	}
	if err := c.invalidate(ctx); err != nil {
		return perm, err
	}
	return perm, nil
}

func (c *Catalog) register(ctx context.Context, code, category, description string, isSystem bool) (Permission, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return Permission{}, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = defaultCategory(code)
	}
	perm, err := c.repo.Upsert(ctx, Permission{
		Code:        code,
		Category:    category,
		Description: strings.TrimSpace(description),
		IsSystem:    isSystem,
	})
	if err != nil {
		return Permission{}, err
	}
	// Callers arriving after Register must observe the new code, so drop any in-flight load.
	c.loads.Forget(listAllKey)
	return perm, nil
}

// ListAll returns the full catalog ordered by code.
func (c *Catalog) ListAll(ctx context.Context) ([]Permission, error) {
	// The load is shared, so one caller's cancellation must not fail the others.
	detached := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(listAllKey, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(detached, loadTimeout)
		defer cancel()
		return c.repo.List(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("permissions: list catalog: %w", res.Err)
		}
		loaded := res.Val.([]Permission)
		out := make([]Permission, len(loaded))
		copy(out, loaded)
		sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
		return out, nil
	}
}

// Codes returns every registered code ordered lexically.
func (c *Catalog) Codes(ctx context.Context) ([]string, error) {
	perms, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(perms))
	for i, p := range perms {
		codes[i] = p.Code
	}
	return codes, nil
}

// Exists reports whether code is registered.
func (c *Catalog) Exists(ctx context.Context, code string) (bool, error) {
	return c.repo.Exists(ctx, NormalizeCode(code))
}

// Missing returns the subset of codes that are not registered, in input order without duplicates.
func (c *Catalog) Missing(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	known, err := c.Codes(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(known))
	for _, code := range known {
		set[code] = struct{}{}
	}
	var missing []string
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = NormalizeCode(code)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if _, ok := set[code]; !ok {
			missing = append(missing, code)
		}
	}
	return missing, nil
}

// Remove deletes a non-system permission that no role references.
func (c *Catalog) Remove(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	perm, err := c.repo.Get(ctx, code)
	if err != nil {
		return err
	}
	if perm.IsSystem {
		return fmt.Errorf("permissions: remove %s: %w", code, shared.ErrSystemPermission)
	}
	grants, err := c.repo.CountRoleGrants(ctx, code)
	if err != nil {
		return err
	}
	if grants > 0 {
		return fmt.Errorf("permissions: remove %s: %w", code, shared.ErrPermissionInUse)
	}
	if err := c.repo.Delete(ctx, code); err != nil {
		return err
	}
	c.loads.Forget(listAllKey)
	return c.invalidate(ctx)
}

// SeedDefaults registers the platform catalog. Cached principals are invalidated only when codes were added.
func (c *Catalog) SeedDefaults(ctx context.Context) error {
	entries := DefaultEntries()
	codes := make([]string, len(entries))
	for i, entry := range entries {
		codes[i] = entry.Code
	}
	missing, err := c.Missing(ctx, codes)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := c.register(ctx, entry.Code, entry.Category, entry.Description, entry.IsSystem); err != nil {
			return err
		}
	}
	// Description and category updates do not change any principal.
	if len(missing) == 0 {
		return nil
	}
	return c.invalidate(ctx)
}

func (c *Catalog) invalidate(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}
	if err := c.invalidator.InvalidateCatalog(ctx); err != nil {
		return fmt.Errorf("permissions: invalidate cache: %w", err)
	}
	return nil
}
