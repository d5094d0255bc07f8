package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/carewell-hms/carewell/internal/audit"
	audithttp "github.com/carewell-hms/carewell/internal/audit/http"
	"github.com/carewell-hms/carewell/internal/auth"
	"github.com/carewell-hms/carewell/internal/observability"
	"github.com/carewell-hms/carewell/internal/permissions"
	permissionshttp "github.com/carewell-hms/carewell/internal/permissions/http"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/internal/roles"
	roleshttp "github.com/carewell-hms/carewell/internal/roles/http"
	"github.com/carewell-hms/carewell/internal/users"
	usershttp "github.com/carewell-hms/carewell/internal/users/http"
)

// Services is the wired authorization core.
type Services struct {
	Catalog  *permissions.Catalog
	Roles    *roles.Service
	Users    *users.Service
	Resolver *rbac.Resolver
	Cache    *rbac.RedisCache
	Emitter  *audit.Emitter
	Timeline *audit.Service
	Tokens   *auth.TokenManager
	Auth     *auth.Service
	RBAC     rbac.Middleware
}

// ServiceDeps are the infrastructure handles the core is built on.
type ServiceDeps struct {
	Config   *Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Enqueuer audit.Enqueuer
	Metrics  *observability.Metrics
}

// NewServices wires repositories, services, the principal cache and the audit emitter.
func NewServices(deps ServiceDeps) (*Services, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := permissions.NewCatalog(permissions.NewRepository(deps.Pool))
	roleService := roles.NewService(roles.NewRepository(deps.Pool), catalog)
	userService := users.NewService(users.NewRepository(deps.Pool), roleService, catalog)
	resolver := rbac.NewResolver(userService, roleService, catalog, logger)

	var cache *rbac.RedisCache
	if cfg.RBACCacheTTL > 0 && deps.Redis != nil {
		cache = rbac.NewRedisCache(deps.Redis, cfg.RBACCacheTTL, logger)
		resolver.SetCache(cache)
		catalog.SetInvalidator(cache)
		roleService.SetInvalidator(cache)
		userService.SetInvalidator(cache)
	}

	sink, err := newAuditSink(cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	emitter := audit.NewEmitter(sink, logger, cfg.AuditWriteTimeout, audit.WithBuffer(cfg.AuditBufferSize, cfg.AuditWriters))
	if deps.Metrics != nil {
		emitter.OnWrite(deps.Metrics.ObserveAuditEvent)
		emitter.OnDrop(deps.Metrics.ObserveAuditDropped)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authService := auth.NewService(auth.NewRepository(deps.Pool), tokens)

	mw := rbac.Middleware{Resolver: resolver, Auditor: emitter, Logger: logger}
	if deps.Metrics != nil {
		mw.Metrics = deps.Metrics
	}

	return &Services{
		Catalog:  catalog,
		Roles:    roleService,
		Users:    userService,
		Resolver: resolver,
		Cache:    cache,
		Emitter:  emitter,
		Timeline: audit.NewService(audit.NewRepository(deps.Pool)),
		Tokens:   tokens,
		Auth:     authService,
		RBAC:     mw,
	}, nil
}

func newAuditSink(cfg *Config, deps ServiceDeps, logger *slog.Logger) (audit.Sink, error) {
	switch cfg.AuditSink {
	case AuditSinkPostgres:
		return audit.NewPGSink(deps.Pool), nil
	case AuditSinkQueue:
		if deps.Enqueuer == nil {
			return nil, fmt.Errorf("app: audit sink %q needs a queue client", cfg.AuditSink)
		}
		return audit.NewQueueSink(deps.Enqueuer), nil
	case AuditSinkLog:
		return audit.NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("app: unknown audit sink %q", cfg.AuditSink)
	}
}

// ValidateRoutes checks every declared route against the stored catalog.
func (s *Services) ValidateRoutes(ctx context.Context) error {
	table := rbac.NewRouteTable()
	table.Register(DeclaredRoutes()...)
	return table.Validate(ctx, s.Catalog)
}

// Handlers builds the HTTP handlers on top of the services.
func (s *Services) Handlers(logger *slog.Logger) RouterParams {
	return RouterParams{
		Logger:             logger,
		AuthHandler:        auth.NewHandler(logger, s.Auth),
		PermissionsHandler: permissionshttp.NewHandler(logger, s.Catalog, s.RBAC),
		RolesHandler:       roleshttp.NewHandler(logger, s.Roles, s.RBAC),
		UsersHandler:       usershttp.NewHandler(logger, s.Users, s.Resolver, s.RBAC),
		AuditHandler:       audithttp.NewHandler(logger, s.Timeline, audit.NewExporter(), s.RBAC),
		MeHandler:          rbac.NewMeHandler(logger, s.RBAC),
	}
}
