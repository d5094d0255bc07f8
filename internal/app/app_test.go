package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carewell-hms/carewell/internal/auth"
	"github.com/carewell-hms/carewell/internal/observability"
	"github.com/carewell-hms/carewell/internal/permissions"
	"github.com/carewell-hms/carewell/internal/rbac"
)

type defaultsChecker struct{}

func (defaultsChecker) Missing(ctx context.Context, codes []string) ([]string, error) {
	known := make(map[string]bool)
	for _, e := range permissions.DefaultEntries() {
		known[e.Code] = true
	}
	var out []string
	for _, c := range codes {
		if !known[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestDeclaredRoutesOnlyUseDefaultCatalog(t *testing.T) {
	table := rbac.NewRouteTable()
	table.Register(DeclaredRoutes()...)
	require.NoError(t, table.Validate(context.Background(), defaultsChecker{}))
}

func TestConfigValidate(t *testing.T) {
	base := Config{JWTSecret: "s", AuditSink: AuditSinkPostgres, RateLimitPerMinute: 60}
	require.NoError(t, base.Validate())

	noSecret := base
	noSecret.JWTSecret = ""
	require.Error(t, noSecret.Validate())

	prod := base
	prod.AppEnv = "production"
	require.Error(t, prod.Validate())
	prod.JWTSecret = strings.Repeat("x", 32)
	require.NoError(t, prod.Validate())

	sink := base
	sink.AuditSink = "kafka"
	require.Error(t, sink.Validate())

	ttl := base
	ttl.RBACCacheTTL = -time.Second
	require.Error(t, ttl.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("AUDIT_SINK", "queue")
	t.Setenv("RBAC_CACHE_TTL", "30s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "env-secret", cfg.JWTSecret)
	require.Equal(t, AuditSinkQueue, cfg.AuditSink)
	require.Equal(t, 30*time.Second, cfg.RBACCacheTTL)
	require.Equal(t, "X-Tenant-ID", cfg.TenantHeader)
}

func TestRouterRequiresAuthentication(t *testing.T) {
	tokens := auth.NewTokenManager("secret", "carewell", time.Hour)
	router := NewRouter(RouterParams{
		Config:        &Config{RateLimitPerMinute: 100},
		Authenticator: auth.Middleware{Verifier: tokens},
		Metrics:       observability.NewMetrics(),
		MeHandler:     rbac.NewMeHandler(nil, rbac.Middleware{}),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me/permissions", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestConfigConnectionSettingsShareRedis(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PG_MAX_CONNS", "40")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	redis := cfg.Redis()
	queue := cfg.Queue()
	require.Equal(t, redis.Addr, queue.Addr)
	require.Equal(t, redis.Password, queue.Password)
	require.Equal(t, 3, queue.DB)

	pg := cfg.Database()
	require.EqualValues(t, 40, pg.MaxConns)
	require.EqualValues(t, 2, pg.MinConns)
	require.Equal(t, 30*time.Minute, pg.MaxConnLifetime)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
	require.NotNil(t, NewLogger(nil))
}
