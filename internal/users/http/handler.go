// Package usershttp exposes the authorization attributes of tenant users.
package usershttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carewell-hms/carewell/internal/platform/httpx"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/internal/shared"
	"github.com/carewell-hms/carewell/internal/users"
)

// Route declarations.
var (
	ListRoute        = rbac.Route{Name: "users.list", Requirement: rbac.Single(shared.PermUsersView)}
	GetRoute         = rbac.Route{Name: "users.get", Requirement: rbac.Single(shared.PermUsersView)}
	PermissionsRoute = rbac.Route{Name: "users.permissions", Requirement: rbac.AllOf(shared.PermUsersView, shared.PermRolesView)}
	AssignRoleRoute  = rbac.Route{Name: "users.assign_role", Requirement: rbac.AllOf(shared.PermUsersManage, shared.PermRolesView), Sensitive: true}
	OverridesRoute   = rbac.Route{Name: "users.overrides", Requirement: rbac.Single(shared.PermUsersManage), Sensitive: true}
	StatusRoute      = rbac.Route{Name: "users.status", Requirement: rbac.Single(shared.PermUsersManage), Sensitive: true}
)

// Routes returns every route declared by this package.
func Routes() []rbac.Route {
	return []rbac.Route{ListRoute, GetRoute, PermissionsRoute, AssignRoleRoute, OverridesRoute, StatusRoute}
}

// Service manages user authorization attributes.
type Service interface {
	GetUser(ctx context.Context, tenantID, userID int64) (users.User, error)
	ListUsers(ctx context.Context, tenantID int64) ([]users.User, error)
	AssignRole(ctx context.Context, tenantID, userID int64, roleID *int64) error
	SetOverrides(ctx context.Context, tenantID, userID int64, o users.Overrides) error
	SetActive(ctx context.Context, tenantID, userID int64, active bool) error
}

// Handler serves /users.
type Handler struct {
	logger    *slog.Logger
	service   Service
	resolver  rbac.PrincipalResolver
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance. resolver computes the effective permissions shown by /users/{id}/permissions.
func NewHandler(logger *slog.Logger, service Service, resolver rbac.PrincipalResolver, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, resolver: resolver, rbac: mw, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(ListRoute)).Get("/", h.list)
	r.Route("/{id}", func(r chi.Router) {
		r.With(h.rbac.Require(GetRoute)).Get("/", h.get)
		r.With(h.rbac.Require(AssignRoleRoute)).Put("/role", h.assignRole)
		r.With(h.rbac.Require(PermissionsRoute)).Get("/permissions", h.permissions)
		r.With(h.rbac.Require(OverridesRoute)).Put("/permissions", h.setOverrides)
		r.With(h.rbac.Require(StatusRoute)).Put("/status", h.setStatus)
	})
}

type assignRoleRequest struct {
	RoleID *int64 `json:"role_id" validate:"omitempty,min=1"`
}

type overridesRequest struct {
	Grant  []string `json:"grant" validate:"dive,required"`
	Revoke []string `json:"revoke" validate:"dive,required"`
}

type statusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type effectiveResponse struct {
	UserID      int64    `json:"user_id"`
	RoleID      *int64   `json:"role_id,omitempty"`
	RoleName    string   `json:"role_name,omitempty"`
	SuperAdmin  bool     `json:"is_super_admin"`
	Active      bool     `json:"active"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUsers(r.Context(), tenantOf(r))
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	if items == nil {
		items = []users.User{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), tenantOf(r), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	h.mutate(w, r, &req, "assign role", func(ctx context.Context, tenantID, userID int64) error {
		return h.service.AssignRole(ctx, tenantID, userID, req.RoleID)
	})
}

func (h *Handler) setOverrides(w http.ResponseWriter, r *http.Request) {
	var req overridesRequest
	h.mutate(w, r, &req, "set overrides", func(ctx context.Context, tenantID, userID int64) error {
		return h.service.SetOverrides(ctx, tenantID, userID, users.Overrides{Granted: req.Grant, Revoked: req.Revoke})
	})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	h.mutate(w, r, &req, "set status", func(ctx context.Context, tenantID, userID int64) error {
		return h.service.SetActive(ctx, tenantID, userID, *req.IsActive)
	})
}

// mutate binds req, applies fn to the addressed user and responds with the updated user.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, req any, msg string, fn func(ctx context.Context, tenantID, userID int64) error) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Bind(r, h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID := tenantOf(r)
	if err := fn(r.Context(), tenantID, id); err != nil {
		h.fail(w, msg, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, "reload user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID := tenantOf(r)
	p, err := h.resolver.Resolve(r.Context(), id, tenantID)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, effectiveResponse{
			UserID:      p.UserID,
			RoleID:      p.RoleID,
			RoleName:    p.RoleName,
			SuperAdmin:  p.SuperAdmin,
			Active:      true,
			Permissions: p.Permissions.Codes(),
		})
	case errors.Is(err, shared.ErrUserInactive), errors.Is(err, shared.ErrRoleInactive):
		// Inactive principals hold no permissions; the caller still learns the user exists in its tenant.
		if _, gerr := h.service.GetUser(r.Context(), tenantID, id); gerr != nil {
			h.fail(w, "get user", gerr)
			return
		}
		httpx.JSON(w, http.StatusOK, effectiveResponse{UserID: id, Permissions: []string{}})
	case errors.Is(err, shared.ErrTenantMismatch):
		httpx.RespondError(w, shared.ErrNotFound)
	default:
		h.fail(w, "resolve user permissions", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func tenantOf(r *http.Request) int64 {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return p.TenantID
	}
	return 0
}
