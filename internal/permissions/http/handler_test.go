package permissionshttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/carewell-hms/carewell/internal/auth"
	"github.com/carewell-hms/carewell/internal/permissions"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/internal/shared"
)

type stubCatalog []permissions.Permission

func (s stubCatalog) ListAll(ctx context.Context) ([]permissions.Permission, error) { return s, nil }

type stubResolver struct{ perms []string }

func (s stubResolver) Resolve(ctx context.Context, userID, tenantID int64) (*rbac.Principal, error) {
	return &rbac.Principal{TenantID: tenantID, UserID: userID, Permissions: rbac.NewPermissionSet(s.perms...)}, nil
}

func serve(t *testing.T, perms []string, target string) *httptest.ResponseRecorder {
	t.Helper()
	catalog := stubCatalog{
		{Code: shared.PermPatientView, Category: "patient"},
		{Code: shared.PermRolesView, Category: "platform", IsSystem: true},
	}
	h := NewHandler(nil, catalog, rbac.Middleware{Resolver: stubResolver{perms: perms}})
	r := chi.NewRouter()
	r.Route("/permissions", h.MountRoutes)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), auth.Identity{UserID: 1, TenantID: 1}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestListPermissions(t *testing.T) {
	rr := serve(t, []string{shared.PermPermissionsView}, "/permissions?category=platform")
	require.Equal(t, http.StatusOK, rr.Code)
	var got []permissions.Permission
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, shared.PermRolesView, got[0].Code)
}

func TestListPermissionsForbidden(t *testing.T) {
	rr := serve(t, []string{shared.PermPatientView}, "/permissions")
	require.Equal(t, http.StatusForbidden, rr.Code)
}
