package roleshttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/carewell-hms/carewell/internal/auth"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/internal/roles"
	"github.com/carewell-hms/carewell/internal/shared"
)

type stubService struct {
	role       roles.Role
	err        error
	lastTenant int64
	lastPatch  roles.Patch
	deleted    int64
}

func (s *stubService) CreateRole(ctx context.Context, tenantID int64, name, description string, codes []string) (roles.Role, error) {
	s.lastTenant = tenantID
	return roles.Role{ID: 5, TenantID: tenantID, Name: name, PermissionCodes: codes, IsActive: true, Version: 1}, s.err
}

func (s *stubService) GetRole(ctx context.Context, tenantID, roleID int64) (roles.Role, error) {
	s.lastTenant = tenantID
	if s.err != nil {
		return roles.Role{}, s.err
	}
	return s.role, nil
}

func (s *stubService) ListRoles(ctx context.Context, tenantID int64) ([]roles.Role, error) {
	s.lastTenant = tenantID
	return []roles.Role{s.role}, s.err
}

func (s *stubService) UpdateRole(ctx context.Context, tenantID, roleID int64, patch roles.Patch) (roles.Role, error) {
	s.lastTenant = tenantID
	s.lastPatch = patch
	return s.role, s.err
}

func (s *stubService) DeleteRole(ctx context.Context, tenantID, roleID int64) error {
	s.lastTenant = tenantID
	s.deleted = roleID
	return s.err
}

func (s *stubService) EffectivePermissions(ctx context.Context, role roles.Role) ([]string, error) {
	return role.PermissionCodes, nil
}

type stubResolver struct{ perms []string }

func (s stubResolver) Resolve(ctx context.Context, userID, tenantID int64) (*rbac.Principal, error) {
	return &rbac.Principal{TenantID: tenantID, UserID: userID, Permissions: rbac.NewPermissionSet(s.perms...)}, nil
}

func do(t *testing.T, svc *stubService, perms []string, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(nil, svc, rbac.Middleware{Resolver: stubResolver{perms: perms}})
	r := chi.NewRouter()
	r.Route("/roles", h.MountRoutes)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), auth.Identity{UserID: 9, TenantID: 4}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

var manager = []string{shared.PermRolesView, shared.PermRolesManage}

func TestCreateRoleUsesPrincipalTenant(t *testing.T) {
	svc := &stubService{}
	rr := do(t, svc, manager, http.MethodPost, "/roles", `{"name":"Nurse","permission_codes":["patient.view"]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, int64(4), svc.lastTenant)
	var got roles.Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Nurse", got.Name)
	require.Equal(t, 1, got.Version)
}

func TestCreateRoleValidation(t *testing.T) {
	rr := do(t, &stubService{}, manager, http.MethodPost, "/roles", `{"permission_codes":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRoleRequiresManage(t *testing.T) {
	svc := &stubService{}
	rr := do(t, svc, []string{shared.PermRolesView}, http.MethodPost, "/roles", `{"name":"Nurse"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Zero(t, svc.lastTenant)
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&shared.UnknownPermissionError{Codes: []string{"x.y"}}, http.StatusBadRequest},
		{shared.ErrDuplicateName, http.StatusConflict},
		{shared.ErrSystemRoleImmutable, http.StatusConflict},
		{shared.ErrConflict, http.StatusPreconditionFailed},
		{shared.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := do(t, &stubService{err: tc.err}, manager, http.MethodPatch, "/roles/3", `{"name":"Lab","version":2}`)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
	}
}

func TestUpdateRequiresVersion(t *testing.T) {
	rr := do(t, &stubService{}, manager, http.MethodPatch, "/roles/3", `{"name":"Lab"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReplacePermissionsPatchesCodesOnly(t *testing.T) {
	svc := &stubService{role: roles.Role{ID: 3, Version: 3}}
	rr := do(t, svc, manager, http.MethodPut, "/roles/3/permissions", `{"permission_codes":["lab.orders.view"],"version":2}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, svc.lastPatch.PermissionCodes)
	require.Equal(t, []string{"lab.orders.view"}, *svc.lastPatch.PermissionCodes)
	require.Nil(t, svc.lastPatch.Name)
	require.Equal(t, 2, svc.lastPatch.Version)
}

func TestDeleteRoleInUse(t *testing.T) {
	svc := &stubService{err: &shared.RoleInUseError{RoleID: 3, Users: 2}}
	rr := do(t, svc, manager, http.MethodDelete, "/roles/3", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "2 user(s)")

	svc = &stubService{}
	rr = do(t, svc, manager, http.MethodDelete, "/roles/3", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, int64(3), svc.deleted)
}

func TestRolePermissionsListsEffectiveCodes(t *testing.T) {
	svc := &stubService{role: roles.Role{ID: 3, PermissionCodes: []string{"emr.view", "patient.view"}}}
	rr := do(t, svc, []string{shared.PermRolesView}, http.MethodGet, "/roles/3/permissions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"role_id":3,"is_system":false,"permissions":["emr.view","patient.view"]}`, rr.Body.String())
}

func TestBadRoleID(t *testing.T) {
	rr := do(t, &stubService{}, manager, http.MethodGet, "/roles/abc", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
