package shared

// Finance and back-office permissions declared for RBAC.
const (
	PermBillingView   = "billing.view"
	PermBillingManage = "billing.manage"

	PermInsuranceView   = "insurance.view"
	PermInsuranceManage = "insurance.manage"

	PermInventoryView   = "inventory.view"
	PermInventoryManage = "inventory.manage"

	PermFinanceReportsView = "finance.reports.view"
	PermFinanceExport      = "finance.data_export"
)

// FinanceScopes lists all permissions related to billing, insurance, inventory and finance.
func FinanceScopes() []string {
	return []string{
		PermBillingView,
		PermBillingManage,
		PermInsuranceView,
		PermInsuranceManage,
		PermInventoryView,
		PermInventoryManage,
		PermFinanceReportsView,
		PermFinanceExport,
	}
}

// AllScopes returns every permission code known to the platform.
func AllScopes() []string {
	scopes := make([]string, 0, 40)
	scopes = append(scopes, CoreScopes()...)
	scopes = append(scopes, ClinicalScopes()...)
	scopes = append(scopes, FinanceScopes()...)
	return scopes
}
