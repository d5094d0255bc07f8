package permissions

import "github.com/carewell-hms/carewell/internal/shared"

// Entry describes a catalog seed row.
type Entry struct {
	Code        string
	Category    string
	Description string
	IsSystem    bool
}

var descriptions = map[string]string{
	shared.PermUsersView:       "View tenant users and their role assignments",
	shared.PermUsersManage:     "Assign roles, overrides and status to users",
	shared.PermRolesView:       "View roles and their permissions",
	shared.PermRolesManage:     "Create, update and delete custom roles",
	shared.PermPermissionsView: "View the permission catalog",
	shared.PermAuditView:       "Review authorization audit records",
	shared.PermAuditExport:     "Export authorization audit records",

	shared.PermPatientView:        "View patient demographics",
	shared.PermPatientCreate:      "Register patients",
	shared.PermPatientUpdate:      "Update patient records",
	shared.PermPatientDelete:      "Archive patient records",
	shared.PermAppointmentView:    "View appointments",
	shared.PermAppointmentManage:  "Book, reschedule and cancel appointments",
	shared.PermEMRView:            "Read electronic medical records",
	shared.PermEMRUpdate:          "Write clinical notes and EMR entries",
	shared.PermOPDView:            "View outpatient queue",
	shared.PermOPDManage:          "Manage outpatient visits",
	shared.PermLabOrdersView:      "View laboratory orders",
	shared.PermLabOrdersCreate:    "Order laboratory tests",
	shared.PermLabResultsView:     "View laboratory results",
	shared.PermLabResultsUpdate:   "Enter and correct laboratory results",
	shared.PermPharmacyView:       "View pharmacy stock and prescriptions",
	shared.PermPharmacyDispense:   "Dispense medication",
	shared.PermTelemedicineView:   "Join telemedicine sessions",
	shared.PermTelemedicineManage: "Schedule telemedicine sessions",

	shared.PermBillingView:        "View invoices and payments",
	shared.PermBillingManage:      "Issue invoices and record payments",
	shared.PermInsuranceView:      "View insurance policies and claims",
	shared.PermInsuranceManage:    "Submit and adjudicate insurance claims",
	shared.PermInventoryView:      "View inventory",
	shared.PermInventoryManage:    "Adjust inventory and purchase orders",
	shared.PermFinanceReportsView: "View financial reports",
	shared.PermFinanceExport:      "Export financial data",
}

// DefaultEntries returns the platform permission catalog. Core permissions are system entries.
func DefaultEntries() []Entry {
	entries := make([]Entry, 0, len(descriptions))
	for _, code := range shared.CoreScopes() {
		entries = append(entries, Entry{Code: code, Category: "platform", Description: descriptions[code], IsSystem: true})
	}
	for _, code := range shared.ClinicalScopes() {
		entries = append(entries, Entry{Code: code, Category: defaultCategory(code), Description: descriptions[code]})
	}
	for _, code := range shared.FinanceScopes() {
		entries = append(entries, Entry{Code: code, Category: defaultCategory(code), Description: descriptions[code]})
	}
	return entries
}
