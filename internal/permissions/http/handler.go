// Package permissionshttp exposes the read-only permission catalog.
package permissionshttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carewell-hms/carewell/internal/permissions"
	"github.com/carewell-hms/carewell/internal/platform/httpx"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/internal/shared"
)

// ListRoute guards the catalog listing.
var ListRoute = rbac.Route{Name: "permissions.list", Requirement: rbac.Single(shared.PermPermissionsView)}

// Routes returns every route declared by this package.
func Routes() []rbac.Route {
	return []rbac.Route{ListRoute}
}

// Catalog lists registered permissions.
type Catalog interface {
	ListAll(ctx context.Context) ([]permissions.Permission, error)
}

// Handler serves the permission catalog.
type Handler struct {
	logger  *slog.Logger
	catalog Catalog
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog Catalog, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, catalog: catalog, rbac: mw}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(ListRoute)).Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	category := r.URL.Query().Get("category")
	out := make([]permissions.Permission, 0, len(perms))
	for _, p := range perms {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}
