package rbac

import (
	"errors"

	"github.com/carewell-hms/carewell/internal/shared"
)

// Evaluate decides whether p satisfies req. It performs no I/O and never panics.
func Evaluate(p *Principal, req Requirement) Decision {
	if p == nil {
		return Decision{Reason: ReasonMissingPermission}
	}
	if p.SuperAdmin {
		d := Decision{Allowed: true, Reason: ReasonGranted}
		if len(req.Codes) > 0 {
			d.MatchedPermission = req.Codes[0]
		}
		return d
	}
	switch req.Mode {
	case ModeSingle:
		if len(req.Codes) != 1 {
			return Decision{Reason: ReasonMissingPermission}
		}
		code := req.Codes[0]
		if p.Permissions.Has(code) {
			return Decision{Allowed: true, Reason: ReasonGranted, MatchedPermission: code}
		}
		return Decision{Reason: ReasonMissingPermission, MatchedPermission: code}
	case ModeAnyOf:
		for _, code := range req.Codes {
			if p.Permissions.Has(code) {
				return Decision{Allowed: true, Reason: ReasonGranted, MatchedPermission: code}
			}
		}
		return Decision{Reason: ReasonMissingPermission}
	case ModeAllOf:
		for _, code := range req.Codes {
			if !p.Permissions.Has(code) {
				return Decision{Reason: ReasonMissingPermission, MatchedPermission: code}
			}
		}
		return Decision{Allowed: true, Reason: ReasonGranted}
	default:
		return Decision{Reason: ReasonMissingPermission}
	}
}

// DenyFromError converts a resolver failure into a deny Decision. Unrecognised errors
// are reported as a missing permission.
func DenyFromError(err error) Decision {
	switch {
	case errors.Is(err, shared.ErrUserInactive):
		return Decision{Reason: ReasonUserInactive}
	case errors.Is(err, shared.ErrTenantMismatch):
		return Decision{Reason: ReasonTenantMismatch}
	case errors.Is(err, shared.ErrRoleInactive):
		return Decision{Reason: ReasonRoleInactive}
	default:
		return Decision{Reason: ReasonMissingPermission}
	}
}
