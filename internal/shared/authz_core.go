package shared

// Core platform permissions.
const (
	PermUsersView   = "users.view"
	PermUsersManage = "users.manage"

	PermRolesView   = "roles.view"
	PermRolesManage = "roles.manage"

	PermPermissionsView = "permissions.view"

	PermAuditView   = "audit.view"
	PermAuditExport = "audit.export"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersManage,
		PermRolesView,
		PermRolesManage,
		PermPermissionsView,
		PermAuditView,
		PermAuditExport,
	}
}
