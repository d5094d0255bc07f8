package rbac

import (
	"github.com/carewell-hms/carewell/internal/shared"
	"github.com/carewell-hms/carewell/internal/users"
)

// LegacyMappingVersion identifies the compiled-in legacy role table. Bump it whenever an entry changes.
const LegacyMappingVersion = 1

type legacyGrant struct {
	superAdmin  bool
	fullCatalog bool
	codes       []string
}

// legacyTable maps the pre-RBAC role enum onto permission sets for users without role_id.
var legacyTable = map[users.LegacyRole]legacyGrant{
	users.LegacySuperAdmin:    {superAdmin: true},
	users.LegacyAdmin:         {fullCatalog: true},
	users.LegacyHospitalAdmin: {fullCatalog: true},
	users.LegacyDoctor: {codes: []string{
		shared.PermPatientView, shared.PermPatientUpdate,
		shared.PermAppointmentView, shared.PermAppointmentManage,
		shared.PermEMRView, shared.PermEMRUpdate,
		shared.PermOPDView, shared.PermOPDManage,
		shared.PermLabOrdersView, shared.PermLabOrdersCreate, shared.PermLabResultsView,
		shared.PermPharmacyView,
		shared.PermTelemedicineView, shared.PermTelemedicineManage,
	}},
	users.LegacyNurse: {codes: []string{
		shared.PermPatientView, shared.PermPatientUpdate,
		shared.PermAppointmentView,
		shared.PermEMRView,
		shared.PermOPDView, shared.PermOPDManage,
		shared.PermLabOrdersView, shared.PermLabResultsView,
		shared.PermPharmacyView,
	}},
	users.LegacyReceptionist: {codes: []string{
		shared.PermPatientView, shared.PermPatientCreate, shared.PermPatientUpdate,
		shared.PermAppointmentView, shared.PermAppointmentManage,
		shared.PermOPDView,
		shared.PermBillingView,
	}},
	users.LegacyPharmacist: {codes: []string{
		shared.PermPatientView,
		shared.PermPharmacyView, shared.PermPharmacyDispense,
		shared.PermInventoryView, shared.PermInventoryManage,
	}},
	users.LegacyLabTechnician: {codes: []string{
		shared.PermPatientView,
		shared.PermLabOrdersView, shared.PermLabResultsView, shared.PermLabResultsUpdate,
	}},
	users.LegacyAccountant: {codes: []string{
		shared.PermBillingView, shared.PermBillingManage,
		shared.PermInsuranceView, shared.PermInsuranceManage,
		shared.PermInventoryView,
		shared.PermFinanceReportsView, shared.PermFinanceExport,
	}},
	users.LegacyPatient: {codes: []string{
		shared.PermAppointmentView,
		shared.PermTelemedicineView,
	}},
}

func lookupLegacy(role users.LegacyRole) (legacyGrant, bool) {
	grant, ok := legacyTable[role]
	return grant, ok
}
