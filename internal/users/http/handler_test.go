package usershttp

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
	"github.com/carewell-hms/carewell/internal/shared"
	"github.com/carewell-hms/carewell/internal/users"
)

const adminID = 1

type stubService struct {
	user      users.User
	err       error
	roleID    *int64
	overrides users.Overrides
	active    *bool
}

func (s *stubService) GetUser(ctx context.Context, tenantID, userID int64) (users.User, error) {
	if tenantID != s.user.TenantID || userID != s.user.ID {
		return users.User{}, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubService) ListUsers(ctx context.Context, tenantID int64) ([]users.User, error) {
	return []users.User{s.user}, nil
}

func (s *stubService) AssignRole(ctx context.Context, tenantID, userID int64, roleID *int64) error {
	s.roleID = roleID
	return s.err
}

func (s *stubService) SetOverrides(ctx context.Context, tenantID, userID int64, o users.Overrides) error {
	s.overrides = o
	return s.err
}

func (s *stubService) SetActive(ctx context.Context, tenantID, userID int64, active bool) error {
	s.active = &active
	return s.err
}

type resolution struct {
	p   *rbac.Principal
	err error
}

type stubResolver map[int64]resolution

func (s stubResolver) Resolve(ctx context.Context, userID, tenantID int64) (*rbac.Principal, error) {
	entry, ok := s[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return entry.p, entry.err
}

func newRouter(svc *stubService, resolver stubResolver) http.Handler {
	h := NewHandler(nil, svc, resolver, rbac.Middleware{Resolver: resolver})
	r := chi.NewRouter()
	r.Route("/users", h.MountRoutes)
	return r
}

func call(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), auth.Identity{UserID: adminID, TenantID: 2}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func fixtures(adminPerms ...string) (*stubService, stubResolver) {
	svc := &stubService{user: users.User{ID: 8, TenantID: 2, Email: "nurse@t2.test", IsActive: true}}
	resolver := stubResolver{}
	resolver[adminID] = resolution{p: &rbac.Principal{TenantID: 2, UserID: adminID, Permissions: rbac.NewPermissionSet(adminPerms...)}}
	return svc, resolver
}

func TestAssignRoleRequiresUsersManageAndRolesView(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersManage)
	rr := call(newRouter(svc, resolver), http.MethodPut, "/users/8/role", `{"role_id":4}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Nil(t, svc.roleID)

	svc, resolver = fixtures(shared.PermUsersManage, shared.PermRolesView)
	rr = call(newRouter(svc, resolver), http.MethodPut, "/users/8/role", `{"role_id":4}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, svc.roleID)
	require.Equal(t, int64(4), *svc.roleID)
}

func TestAssignRoleNullFallsBackToLegacy(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersManage, shared.PermRolesView)
	rr := call(newRouter(svc, resolver), http.MethodPut, "/users/8/role", `{"role_id":null}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, svc.roleID)
}

func TestSetOverridesPassesGrantAndRevoke(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersManage)
	rr := call(newRouter(svc, resolver), http.MethodPut, "/users/8/permissions", `{"grant":["billing.view"],"revoke":["emr.update"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"billing.view"}, svc.overrides.Granted)
	require.Equal(t, []string{"emr.update"}, svc.overrides.Revoked)

	svc.err = &shared.UnknownPermissionError{Codes: []string{"nope.nope"}}
	rr = call(newRouter(svc, resolver), http.MethodPut, "/users/8/permissions", `{"grant":["nope.nope"]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetStatusRequiresFlag(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersManage)
	rr := call(newRouter(svc, resolver), http.MethodPut, "/users/8/status", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = call(newRouter(svc, resolver), http.MethodPut, "/users/8/status", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, svc.active)
	require.False(t, *svc.active)
}

func TestUserPermissionsShowsEffectiveSet(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersView, shared.PermRolesView)
	roleID := int64(4)
	resolver[8] = resolution{p: &rbac.Principal{TenantID: 2, UserID: 8, RoleID: &roleID, RoleName: "Nurse", Permissions: rbac.NewPermissionSet("patient.view", "emr.view")}}

	rr := call(newRouter(svc, resolver), http.MethodGet, "/users/8/permissions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got effectiveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Nurse", got.RoleName)
	require.True(t, got.Active)
	require.Equal(t, []string{"emr.view", "patient.view"}, got.Permissions)
}

func TestUserPermissionsHidesOtherTenants(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersView, shared.PermRolesView)
	resolver[30] = resolution{err: shared.ErrTenantMismatch}

	rr := call(newRouter(svc, resolver), http.MethodGet, "/users/30/permissions", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserPermissionsInactiveIsEmpty(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersView, shared.PermRolesView)
	resolver[8] = resolution{err: shared.ErrUserInactive}

	rr := call(newRouter(svc, resolver), http.MethodGet, "/users/8/permissions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"user_id":8,"is_super_admin":false,"active":false,"permissions":[]}`, rr.Body.String())
}

func TestGetUserOutsideTenantIsNotFound(t *testing.T) {
	svc, resolver := fixtures(shared.PermUsersView)
	rr := call(newRouter(svc, resolver), http.MethodGet, "/users/99", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
