package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LegacyRole is the fixed role enum carried by accounts created before tenant roles existed.
type LegacyRole string

// Legacy role values stored in users.role.
const (
	LegacySuperAdmin    LegacyRole = "SUPER_ADMIN"
	LegacyAdmin         LegacyRole = "ADMIN"
	LegacyHospitalAdmin LegacyRole = "HOSPITAL_ADMIN"
	LegacyDoctor        LegacyRole = "DOCTOR"
	LegacyNurse         LegacyRole = "NURSE"
	LegacyReceptionist  LegacyRole = "RECEPTIONIST"
	LegacyPharmacist    LegacyRole = "PHARMACIST"
	LegacyLabTechnician LegacyRole = "LAB_TECHNICIAN"
	LegacyAccountant    LegacyRole = "ACCOUNTANT"
	LegacyPatient       LegacyRole = "PATIENT"
)

// Overrides adjusts a user's role permissions. Revoked codes win over granted ones.
type Overrides struct {
	Granted []string `json:"grant"`
	Revoked []string `json:"revoke"`
}

// IsZero reports whether no override is present.
func (o Overrides) IsZero() bool {
	return len(o.Granted) == 0 && len(o.Revoked) == 0
}

// Codes returns every code referenced by the overrides.
func (o Overrides) Codes() []string {
	out := make([]string, 0, len(o.Granted)+len(o.Revoked))
	out = append(out, o.Granted...)
	return append(out, o.Revoked...)
}

// ParseOverrides decodes the stored custom_permissions document. A bare JSON array
// is read as a list of grants.
func ParseOverrides(raw []byte) (Overrides, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Overrides{}, nil
	}
	var o Overrides
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &o.Granted); err != nil {
			return Overrides{}, fmt.Errorf("users: parse overrides: %w", err)
		}
	} else if err := json.Unmarshal(raw, &o); err != nil {
		return Overrides{}, fmt.Errorf("users: parse overrides: %w", err)
	}
	o.Granted = trimCodes(o.Granted)
	o.Revoked = trimCodes(o.Revoked)
	return o, nil
}

func trimCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// User is a tenant-owned account as seen by authorization.
type User struct {
	ID         int64      `json:"id"`
	TenantID   int64      `json:"tenant_id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	RoleID     *int64     `json:"role_id"`
	LegacyRole LegacyRole `json:"legacy_role"`
	Overrides  Overrides  `json:"custom_permissions"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
