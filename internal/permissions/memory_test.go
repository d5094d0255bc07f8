package permissions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carewell-hms/carewell/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	perms  map[string]Permission
	grants map[string]int64
	nextID int64
	lists  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{perms: make(map[string]Permission), grants: make(map[string]int64)}
}

func (r *memoryRepo) Upsert(ctx context.Context, p Permission) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.perms[p.Code]; ok {
		existing.Category = p.Category
		existing.Description = p.Description
		existing.IsSystem = existing.IsSystem || p.IsSystem
		r.perms[p.Code] = existing
		return existing, nil
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.perms[p.Code] = p
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]Permission, 0, len(r.perms))
	for _, p := range r.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, code string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.perms[code]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Exists(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.perms[code]
	return ok, nil
}

func (r *memoryRepo) CountRoleGrants(ctx context.Context, code string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants[code], nil
}

func (r *memoryRepo) Delete(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.perms[code]; !ok {
		return shared.ErrNotFound
	}
	delete(r.perms, code)
	return nil
}
