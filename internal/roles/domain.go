package roles

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// SystemRoleName is the protected role provisioned in every tenant.
const SystemRoleName = "Admin"

const maxNameLength = 100

// Role is a tenant-owned named set of permission codes.
type Role struct {
	ID              int64     `json:"id"`
	TenantID        int64     `json:"tenant_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IsSystem        bool      `json:"is_system"`
	IsActive        bool      `json:"is_active"`
	PermissionCodes []string  `json:"permission_codes"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Patch carries a partial role update. Nil fields are left unchanged.
// Version must equal the version the caller last read.
type Patch struct {
	Name            *string   `json:"name,omitempty"`
	Description     *string   `json:"description,omitempty"`
	PermissionCodes *[]string `json:"permission_codes,omitempty"`
	IsActive        *bool     `json:"is_active,omitempty"`
	Version         int       `json:"version"`
}

// NameKey folds a role name for case-insensitive uniqueness checks.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func normalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func sameCodeSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, code := range a {
		set[code] = struct{}{}
	}
	for _, code := range b {
		if _, ok := set[code]; !ok {
			return false
		}
	}
	return true
}
