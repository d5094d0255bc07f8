package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/carewell-hms/carewell/internal/audit/http"
	"github.com/carewell-hms/carewell/internal/auth"
	"github.com/carewell-hms/carewell/internal/observability"
	permissionshttp "github.com/carewell-hms/carewell/internal/permissions/http"
	"github.com/carewell-hms/carewell/internal/platform/httpx"
	"github.com/carewell-hms/carewell/internal/rbac"
	roleshttp "github.com/carewell-hms/carewell/internal/roles/http"
	usershttp "github.com/carewell-hms/carewell/internal/users/http"
	"github.com/carewell-hms/carewell/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator auth.Middleware
	Metrics       *observability.Metrics

	AuthHandler        *auth.Handler
	PermissionsHandler *permissionshttp.Handler
	RolesHandler       *roleshttp.Handler
	UsersHandler       *usershttp.Handler
	AuditHandler       *audithttp.Handler
	MeHandler          *rbac.MeHandler
	JobHandler         *jobs.Handler
}

// DeclaredRoutes lists every guarded route of the API.
func DeclaredRoutes() []rbac.Route {
	var routes []rbac.Route
	routes = append(routes, permissionshttp.Routes()...)
	routes = append(routes, roleshttp.Routes()...)
	routes = append(routes, usershttp.Routes()...)
	routes = append(routes, audithttp.Routes()...)
	return routes
}

// NewRouter constructs the chi.Router with Carewell defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Authenticate)
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.MeHandler != nil {
			r.Route("/me", params.MeHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit/authz", params.AuditHandler.MountRoutes)
		}
	})

	return r
}
