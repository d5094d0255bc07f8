package shared

// Clinical permissions declared for RBAC.
const (
	PermPatientView   = "patient.view"
	PermPatientCreate = "patient.create"
	PermPatientUpdate = "patient.update"
	PermPatientDelete = "patient.delete"

	PermAppointmentView   = "appointment.view"
	PermAppointmentManage = "appointment.manage"

	PermEMRView   = "emr.view"
	PermEMRUpdate = "emr.update"

	PermOPDView   = "opd.view"
	PermOPDManage = "opd.manage"

	PermLabOrdersView    = "lab.orders.view"
	PermLabOrdersCreate  = "lab.orders.create"
	PermLabResultsView   = "lab.results.view"
	PermLabResultsUpdate = "lab.results.update"

	PermPharmacyView     = "pharmacy.view"
	PermPharmacyDispense = "pharmacy.dispense"

	PermTelemedicineView   = "telemedicine.view"
	PermTelemedicineManage = "telemedicine.manage"
)

// ClinicalScopes lists all permissions related to clinical modules.
func ClinicalScopes() []string {
	return []string{
		PermPatientView,
		PermPatientCreate,
		PermPatientUpdate,
		PermPatientDelete,
		PermAppointmentView,
		PermAppointmentManage,
		PermEMRView,
		PermEMRUpdate,
		PermOPDView,
		PermOPDManage,
		PermLabOrdersView,
		PermLabOrdersCreate,
		PermLabResultsView,
		PermLabResultsUpdate,
		PermPharmacyView,
		PermPharmacyDispense,
		PermTelemedicineView,
		PermTelemedicineManage,
	}
}
