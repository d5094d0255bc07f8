// Package roleshttp exposes tenant role administration.
package roleshttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carewell-hms/carewell/internal/platform/httpx"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/internal/roles"
	"github.com/carewell-hms/carewell/internal/shared"
)

// Route declarations. Every mutation is sensitive.
var (
	ListRoute          = rbac.Route{Name: "roles.list", Requirement: rbac.Single(shared.PermRolesView)}
	GetRoute           = rbac.Route{Name: "roles.get", Requirement: rbac.Single(shared.PermRolesView)}
	PermissionsRoute   = rbac.Route{Name: "roles.permissions", Requirement: rbac.AnyOf(shared.PermRolesView, shared.PermRolesManage)}
	CreateRoute        = rbac.Route{Name: "roles.create", Requirement: rbac.Single(shared.PermRolesManage), Sensitive: true}
	UpdateRoute        = rbac.Route{Name: "roles.update", Requirement: rbac.Single(shared.PermRolesManage), Sensitive: true}
	ReplaceGrantsRoute = rbac.Route{Name: "roles.permissions.replace", Requirement: rbac.Single(shared.PermRolesManage), Sensitive: true}
	DeleteRoute        = rbac.Route{Name: "roles.delete", Requirement: rbac.Single(shared.PermRolesManage), Sensitive: true}
)

// Routes returns every route declared by this package.
func Routes() []rbac.Route {
	return []rbac.Route{ListRoute, GetRoute, PermissionsRoute, CreateRoute, UpdateRoute, ReplaceGrantsRoute, DeleteRoute}
}

// Service is the role store used by the handler.
type Service interface {
	CreateRole(ctx context.Context, tenantID int64, name, description string, codes []string) (roles.Role, error)
	GetRole(ctx context.Context, tenantID, roleID int64) (roles.Role, error)
	ListRoles(ctx context.Context, tenantID int64) ([]roles.Role, error)
	UpdateRole(ctx context.Context, tenantID, roleID int64, patch roles.Patch) (roles.Role, error)
	DeleteRole(ctx context.Context, tenantID, roleID int64) error
	EffectivePermissions(ctx context.Context, role roles.Role) ([]string, error)
}

// Handler serves /roles.
type Handler struct {
	logger    *slog.Logger
	service   Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Service, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(ListRoute)).Get("/", h.list)
	r.With(h.rbac.Require(CreateRoute)).Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.With(h.rbac.Require(GetRoute)).Get("/", h.get)
		r.With(h.rbac.Require(UpdateRoute)).Patch("/", h.update)
		r.With(h.rbac.Require(DeleteRoute)).Delete("/", h.delete)
		r.With(h.rbac.Require(PermissionsRoute)).Get("/permissions", h.permissions)
		r.With(h.rbac.Require(ReplaceGrantsRoute)).Put("/permissions", h.replacePermissions)
	})
}

type createRequest struct {
	Name            string   `json:"name" validate:"required,max=100"`
	Description     string   `json:"description" validate:"max=500"`
	PermissionCodes []string `json:"permission_codes" validate:"dive,required"`
}

type updateRequest struct {
	Name            *string   `json:"name" validate:"omitempty,max=100"`
	Description     *string   `json:"description" validate:"omitempty,max=500"`
	PermissionCodes *[]string `json:"permission_codes"`
	IsActive        *bool     `json:"is_active"`
	Version         int       `json:"version" validate:"required,min=1"`
}

type replaceRequest struct {
	PermissionCodes []string `json:"permission_codes" validate:"required,dive,required"`
	Version         int      `json:"version" validate:"required,min=1"`
}

type permissionsResponse struct {
	RoleID      int64    `json:"role_id"`
	IsSystem    bool     `json:"is_system"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListRoles(r.Context(), tenantOf(r))
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	if items == nil {
		items = []roles.Role{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), tenantOf(r), req.Name, req.Description, req.PermissionCodes)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), tenantOf(r), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), tenantOf(r), id, roles.Patch{
		Name:            req.Name,
		Description:     req.Description,
		PermissionCodes: req.PermissionCodes,
		IsActive:        req.IsActive,
		Version:         req.Version,
	})
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), tenantOf(r), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), tenantOf(r), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	codes, err := h.service.EffectivePermissions(r.Context(), role)
	if err != nil {
		h.fail(w, "role permissions", err)
		return
	}
	if codes == nil {
		codes = []string{}
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{RoleID: role.ID, IsSystem: role.IsSystem, Permissions: codes})
}

func (h *Handler) replacePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req replaceRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), tenantOf(r), id, roles.Patch{PermissionCodes: &req.PermissionCodes, Version: req.Version})
	if err != nil {
		h.fail(w, "replace role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

// fail logs unexpected errors; domain errors only reach the response.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// tenantOf returns the tenant of the resolved principal. Routes are always guarded.
func tenantOf(r *http.Request) int64 {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return p.TenantID
	}
	return 0
}
