package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/carewell-hms/carewell/internal/shared"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute, nil), mr
}

func TestRedisCacheRoundTripAndInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	roleID := int64(5)

	_, gen, ok := cache.Load(ctx, 1, 11)
	require.False(t, ok)
	require.Equal(t, Generation(0), gen)

	cache.Store(ctx, gen, &Principal{TenantID: 1, UserID: 11, RoleID: &roleID, RoleName: "Doctor",
		Permissions: NewPermissionSet(shared.PermPatientView)})

	got, _, ok := cache.Load(ctx, 1, 11)
	require.True(t, ok)
	require.Equal(t, "Doctor", got.RoleName)
	require.True(t, got.Permissions.Has(shared.PermPatientView))
	require.Equal(t, roleID, *got.RoleID)

	require.NoError(t, cache.InvalidateTenant(ctx, 1))
	_, gen, ok = cache.Load(ctx, 1, 11)
	require.False(t, ok)
	require.Equal(t, Generation(1), gen)
}

func TestRedisCacheStaleGenerationIsNeverServed(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, before, _ := cache.Load(ctx, 2, 21)
	require.NoError(t, cache.InvalidateTenant(ctx, 2))
	cache.Store(ctx, before, &Principal{TenantID: 2, UserID: 21, Permissions: NewPermissionSet(shared.PermBillingManage)})

	_, _, ok := cache.Load(ctx, 2, 21)
	require.False(t, ok)
}

func TestRedisCacheTenantsAreIndependent(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	cache.Store(ctx, 0, &Principal{TenantID: 3, UserID: 31, Permissions: NewPermissionSet()})
	require.NoError(t, cache.InvalidateTenant(ctx, 4))

	_, _, ok := cache.Load(ctx, 3, 31)
	require.True(t, ok)
}

func TestRedisCacheOutageIsAMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	cache.Store(ctx, 0, &Principal{TenantID: 1, UserID: 1, Permissions: NewPermissionSet()})
	mr.Close()

	_, gen, ok := cache.Load(ctx, 1, 1)
	require.False(t, ok)
	require.Equal(t, Generation(-1), gen)
	require.Error(t, cache.InvalidateTenant(ctx, 1))
}

func TestRedisCacheCatalogInvalidationSpansTenants(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.InvalidateTenant(ctx, 1))
	_, gen1, _ := cache.Load(ctx, 1, 11)
	_, gen2, _ := cache.Load(ctx, 2, 21)
	cache.Store(ctx, gen1, &Principal{TenantID: 1, UserID: 11, Permissions: NewPermissionSet()})
	cache.Store(ctx, gen2, &Principal{TenantID: 2, UserID: 21, Permissions: NewPermissionSet()})

	require.NoError(t, cache.InvalidateCatalog(ctx))

	_, gen, ok := cache.Load(ctx, 1, 11)
	require.False(t, ok)
	require.Equal(t, Generation(2), gen)
	_, gen, ok = cache.Load(ctx, 2, 21)
	require.False(t, ok)
	require.Equal(t, Generation(1), gen)
}
