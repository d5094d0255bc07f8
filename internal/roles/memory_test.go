package roles

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carewell-hms/carewell/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	roles  map[int64]Role
	users  map[int64]int64
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{roles: make(map[int64]Role), users: make(map[int64]int64)}
}

func cloneRole(r Role) Role {
	r.PermissionCodes = append([]string{}, r.PermissionCodes...)
	sort.Strings(r.PermissionCodes)
	return r
}

func (m *memoryRepo) Create(ctx context.Context, role Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.TenantID == role.TenantID && NameKey(existing.Name) == NameKey(role.Name) {
			return Role{}, shared.ErrDuplicateName
		}
	}
	m.nextID++
	role.ID = m.nextID
	role.Version = 1
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	m.roles[role.ID] = cloneRole(role)
	return cloneRole(role), nil
}

func (m *memoryRepo) Get(ctx context.Context, tenantID, roleID int64) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleID]
	if !ok || role.TenantID != tenantID {
		return Role{}, shared.ErrNotFound
	}
	return cloneRole(role), nil
}

func (m *memoryRepo) FindByName(ctx context.Context, tenantID int64, nameKey string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.TenantID == tenantID && NameKey(role.Name) == nameKey {
			return cloneRole(role), nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (m *memoryRepo) List(ctx context.Context, tenantID int64) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Role
	for _, role := range m.roles {
		if role.TenantID == tenantID {
			out = append(out, cloneRole(role))
		}
	}
	sort.Slice(out, func(i, j int) bool { return NameKey(out[i].Name) < NameKey(out[j].Name) })
	return out, nil
}

func (m *memoryRepo) Update(ctx context.Context, role Role, expectedVersion int) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.roles[role.ID]
	if !ok || stored.TenantID != role.TenantID || stored.Version != expectedVersion {
		return Role{}, shared.ErrConflict
	}
	role.Version = stored.Version + 1
	role.UpdatedAt = time.Now().UTC()
	m.roles[role.ID] = cloneRole(role)
	return cloneRole(role), nil
}

func (m *memoryRepo) Delete(ctx context.Context, tenantID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[roleID]
	if !ok || role.TenantID != tenantID || role.IsSystem {
		return shared.ErrNotFound
	}
	if m.users[roleID] > 0 {
		return shared.ErrRoleInUse
	}
	delete(m.roles, roleID)
	return nil
}

func (m *memoryRepo) CountUsers(ctx context.Context, tenantID, roleID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[roleID], nil
}

func (m *memoryRepo) SystemRole(ctx context.Context, tenantID int64) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.TenantID == tenantID && role.IsSystem {
			return cloneRole(role), nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (m *memoryRepo) setUsers(roleID, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[roleID] = n
}

type stubCatalog struct {
	mu    sync.Mutex
	codes []string
}

func (c *stubCatalog) register(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, code)
}

func (c *stubCatalog) Codes(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string{}, c.codes...)
	sort.Strings(out)
	return out, nil
}

func (c *stubCatalog) Missing(ctx context.Context, codes []string) ([]string, error) {
	known, _ := c.Codes(ctx)
	set := make(map[string]struct{}, len(known))
	for _, code := range known {
		set[code] = struct{}{}
	}
	var missing []string
	for _, code := range codes {
		if _, ok := set[code]; !ok {
			missing = append(missing, code)
		}
	}
	return missing, nil
}

type countingInvalidator struct {
	mu      sync.Mutex
	tenants []int64
	err     error
}

func (c *countingInvalidator) InvalidateTenant(ctx context.Context, tenantID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenants = append(c.tenants, tenantID)
	return c.err
}
