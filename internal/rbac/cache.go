package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carewell-hms/carewell/internal/users"
)

// RedisCache stores resolved principals keyed by a per-tenant generation. Bumping the
// generation orphans every entry of the tenant; the TTL only bounds their lifetime.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache instantiates the cache helper.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

type cachedPrincipal struct {
	TenantID    int64            `json:"tenant_id"`
	UserID      int64            `json:"user_id"`
	RoleID      *int64           `json:"role_id,omitempty"`
	RoleName    string           `json:"role_name,omitempty"`
	LegacyRole  users.LegacyRole `json:"legacy_role,omitempty"`
	Permissions []string         `json:"permissions"`
	SuperAdmin  bool             `json:"super_admin"`
}

// catalogGenerationKey is bumped on every catalog change. Admin and legacy full-catalog
// principals are derived from the catalog, so it is shared by all tenants.
const catalogGenerationKey = "rbac:gen:catalog"

func generationKey(tenantID int64) string {
	return fmt.Sprintf("rbac:gen:%d", tenantID)
}

func principalKey(tenantID int64, gen Generation, userID int64) string {
	return fmt.Sprintf("rbac:perm:%d:%d:%d", tenantID, gen, userID)
}

// Generation returns the tenant's current cache epoch: the tenant generation plus the catalog
// generation. Both counters only grow, so any bump yields an epoch never seen before.
// Missing counters count as zero.
func (c *RedisCache) Generation(ctx context.Context, tenantID int64) (Generation, error) {
	vals, err := c.client.MGet(ctx, generationKey(tenantID), catalogGenerationKey).Result()
	if err != nil {
		return -1, err
	}
	var total int64
	for _, v := range vals {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			return -1, fmt.Errorf("rbac: generation has type %T", v)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return -1, fmt.Errorf("rbac: parse generation: %w", err)
		}
		total += n
	}
	return Generation(total), nil
}

// Load returns a cached principal. Any Redis failure is treated as a miss that must not be stored.
func (c *RedisCache) Load(ctx context.Context, tenantID, userID int64) (*Principal, Generation, bool) {
	gen, err := c.Generation(ctx, tenantID)
	if err != nil {
		c.logger.Warn("rbac cache generation", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		return nil, -1, false
	}
	payload, err := c.client.Get(ctx, principalKey(tenantID, gen, userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("rbac cache get", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			return nil, -1, false
		}
		return nil, gen, false
	}
	var cp cachedPrincipal
	if err := json.Unmarshal(payload, &cp); err != nil {
		c.logger.Warn("rbac cache decode", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		return nil, gen, false
	}
	return &Principal{
		TenantID:    cp.TenantID,
		UserID:      cp.UserID,
		RoleID:      cp.RoleID,
		RoleName:    cp.RoleName,
		LegacyRole:  cp.LegacyRole,
		Permissions: NewPermissionSet(cp.Permissions...),
		SuperAdmin:  cp.SuperAdmin,
	}, gen, true
}

// Store writes p under the generation observed before it was resolved.
func (c *RedisCache) Store(ctx context.Context, gen Generation, p *Principal) {
	if p == nil || gen < 0 {
		return
	}
	raw, err := json.Marshal(cachedPrincipal{
		TenantID:    p.TenantID,
		UserID:      p.UserID,
		RoleID:      p.RoleID,
		RoleName:    p.RoleName,
		LegacyRole:  p.LegacyRole,
		Permissions: p.Permissions.Codes(),
		SuperAdmin:  p.SuperAdmin,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, principalKey(p.TenantID, gen, p.UserID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("rbac cache set", slog.Int64("tenant_id", p.TenantID), slog.Any("error", err))
	}
}

// InvalidateTenant bumps the tenant generation so later lookups miss.
func (c *RedisCache) InvalidateTenant(ctx context.Context, tenantID int64) error {
	if err := c.client.Incr(ctx, generationKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("rbac: invalidate tenant %d: %w", tenantID, err)
	}
	return nil
}

// InvalidateCatalog bumps the catalog generation so every tenant's later lookups miss.
func (c *RedisCache) InvalidateCatalog(ctx context.Context) error {
	if err := c.client.Incr(ctx, catalogGenerationKey).Err(); err != nil {
		return fmt.Errorf("rbac: invalidate catalog: %w", err)
	}
	return nil
}
