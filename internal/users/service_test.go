package users

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carewell-hms/carewell/internal/roles"
	"github.com/carewell-hms/carewell/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[int64]User
}

func (m *memoryRepo) FindByID(ctx context.Context, userID int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) Get(ctx context.Context, tenantID, userID int64) (User, error) {
	u, err := m.FindByID(ctx, userID)
	if err != nil || u.TenantID != tenantID {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) List(ctx context.Context, tenantID int64) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryRepo) update(tenantID, userID int64, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return shared.ErrNotFound
	}
	fn(&u)
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) SetRole(ctx context.Context, tenantID, userID int64, roleID *int64) error {
	return m.update(tenantID, userID, func(u *User) { u.RoleID = roleID })
}

func (m *memoryRepo) SetOverrides(ctx context.Context, tenantID, userID int64, o Overrides) error {
	return m.update(tenantID, userID, func(u *User) { u.Overrides = o })
}

func (m *memoryRepo) SetActive(ctx context.Context, tenantID, userID int64, active bool) error {
	return m.update(tenantID, userID, func(u *User) { u.IsActive = active })
}

type stubRoles map[int64]roles.Role

func (s stubRoles) GetRole(ctx context.Context, tenantID, roleID int64) (roles.Role, error) {
	role, ok := s[roleID]
	if !ok || role.TenantID != tenantID {
		return roles.Role{}, shared.ErrNotFound
	}
	return role, nil
}

type stubCatalog map[string]struct{}

func (s stubCatalog) Missing(ctx context.Context, codes []string) ([]string, error) {
	var missing []string
	for _, c := range codes {
		if _, ok := s[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

type recordingInvalidator struct{ tenants []int64 }

func (r *recordingInvalidator) InvalidateTenant(ctx context.Context, tenantID int64) error {
	r.tenants = append(r.tenants, tenantID)
	return nil
}

func newUserService() (*Service, *memoryRepo, *recordingInvalidator) {
	repo := &memoryRepo{users: map[int64]User{
		10: {ID: 10, TenantID: 1, Email: "doc@t1.test", IsActive: true, LegacyRole: LegacyDoctor},
		20: {ID: 20, TenantID: 2, Email: "nurse@t2.test", IsActive: true},
	}}
	rolesByID := stubRoles{
		100: {ID: 100, TenantID: 1, Name: "Doctor", IsActive: true},
		101: {ID: 101, TenantID: 1, Name: "Retired", IsActive: false},
		200: {ID: 200, TenantID: 2, Name: "Nurse", IsActive: true},
	}
	catalog := stubCatalog{shared.PermPatientView: {}, shared.PermBillingManage: {}}
	inv := &recordingInvalidator{}
	svc := NewService(repo, rolesByID, catalog)
	svc.SetInvalidator(inv)
	return svc, repo, inv
}

func TestAssignRoleScopedToTenant(t *testing.T) {
	svc, repo, inv := newUserService()
	ctx := context.Background()

	foreign := int64(200)
	require.ErrorIs(t, svc.AssignRole(ctx, 1, 10, &foreign), shared.ErrNotFound)

	retired := int64(101)
	require.ErrorIs(t, svc.AssignRole(ctx, 1, 10, &retired), shared.ErrValidation)

	doctor := int64(100)
	require.NoError(t, svc.AssignRole(ctx, 1, 10, &doctor))
	require.Equal(t, int64(100), *repo.users[10].RoleID)
	require.Equal(t, []int64{1}, inv.tenants)

	require.ErrorIs(t, svc.AssignRole(ctx, 2, 10, nil), shared.ErrNotFound)
}

func TestSetOverridesValidatesCodes(t *testing.T) {
	svc, repo, _ := newUserService()
	ctx := context.Background()

	err := svc.SetOverrides(ctx, 1, 10, Overrides{Granted: []string{"patient.fly"}})
	require.ErrorIs(t, err, shared.ErrUnknownPermission)

	err = svc.SetOverrides(ctx, 1, 10, Overrides{
		Granted: []string{" billing.manage", "billing.manage"},
		Revoked: []string{shared.PermPatientView},
	})
	require.NoError(t, err)
	require.Equal(t, []string{shared.PermBillingManage}, repo.users[10].Overrides.Granted)
	require.Equal(t, []string{shared.PermPatientView}, repo.users[10].Overrides.Revoked)
}

func TestSetActiveInvalidates(t *testing.T) {
	svc, repo, inv := newUserService()
	require.NoError(t, svc.SetActive(context.Background(), 2, 20, false))
	require.False(t, repo.users[20].IsActive)
	require.Equal(t, []int64{2}, inv.tenants)
}

func TestParseOverrides(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Overrides
	}{
		{name: "empty", raw: "", want: Overrides{}},
		{name: "null", raw: "null", want: Overrides{}},
		{name: "object", raw: `{"grant":["billing.view"],"revoke":["patient.delete"]}`, want: Overrides{Granted: []string{"billing.view"}, Revoked: []string{"patient.delete"}}},
		{name: "bare array grants", raw: `["lab.results.view", " "]`, want: Overrides{Granted: []string{"lab.results.view"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOverrides([]byte(tc.raw))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := ParseOverrides([]byte(`{"grant":`))
	require.Error(t, err)
}
