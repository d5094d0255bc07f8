package rbac

import (
	"context"
	"sort"
	"strings"

	"github.com/carewell-hms/carewell/internal/users"
)

// Mode selects how a Requirement combines its codes.
type Mode int

// Requirement modes.
const (
	ModeSingle Mode = iota
	ModeAnyOf
	ModeAllOf
)

// Requirement is the permission expression a route demands.
type Requirement struct {
	Mode  Mode
	Codes []string
}

// Single requires exactly one permission.
func Single(code string) Requirement {
	return Requirement{Mode: ModeSingle, Codes: []string{code}}
}

// AnyOf requires at least one of codes. Codes are checked in declaration order.
func AnyOf(codes ...string) Requirement {
	return Requirement{Mode: ModeAnyOf, Codes: append([]string(nil), codes...)}
}

// AllOf requires every one of codes.
func AllOf(codes ...string) Requirement {
	return Requirement{Mode: ModeAllOf, Codes: append([]string(nil), codes...)}
}

func (r Requirement) String() string {
	switch r.Mode {
	case ModeSingle:
		if len(r.Codes) == 0 {
			return ""
		}
		return r.Codes[0]
	case ModeAnyOf:
		return "any(" + strings.Join(r.Codes, ",") + ")"
	case ModeAllOf:
		return "all(" + strings.Join(r.Codes, ",") + ")"
	default:
		return "unknown"
	}
}

// Reason explains a Decision.
type Reason string

// Decision reasons.
const (
	ReasonGranted           Reason = "GRANTED"
	ReasonMissingPermission Reason = "MISSING_PERMISSION"
	ReasonRoleInactive      Reason = "ROLE_INACTIVE"
	ReasonTenantMismatch    Reason = "TENANT_MISMATCH"
	ReasonUserInactive      Reason = "USER_INACTIVE"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed           bool
	Reason            Reason
	MatchedPermission string
}

// PermissionSet is an immutable set of permission codes.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from codes.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the members in lexical order.
func (s PermissionSet) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Principal is the resolved authorization context of one request.
type Principal struct {
	TenantID    int64            `json:"tenant_id"`
	UserID      int64            `json:"user_id"`
	RoleID      *int64           `json:"role_id,omitempty"`
	RoleName    string           `json:"role_name,omitempty"`
	LegacyRole  users.LegacyRole `json:"legacy_role,omitempty"`
	Permissions PermissionSet    `json:"-"`
	SuperAdmin  bool             `json:"is_super_admin"`
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the resolved principal to ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal resolved earlier in this request, if any.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
