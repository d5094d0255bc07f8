package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found within the requesting tenant.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation indicates malformed permission or role input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateName occurs when a role name already exists in the tenant.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownPermission occurs when a permission code is not in the catalog.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrSystemRoleImmutable occurs when a protected system role would be changed.
	ErrSystemRoleImmutable = errors.New("system role is immutable")
	// ErrRoleInUse occurs when deleting a role that users still reference.
	ErrRoleInUse = errors.New("role in use")
	// ErrConflict indicates an optimistic concurrency failure; safe to retry.
	ErrConflict = errors.New("conflict")
	// ErrUserInactive occurs when resolving a disabled user.
	ErrUserInactive = errors.New("user inactive")
	// ErrTenantMismatch occurs when the request tenant differs from the user's tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrRoleInactive occurs when the user's role has been disabled.
	ErrRoleInactive = errors.New("role inactive")
	// ErrSystemPermission occurs when removing a system permission.
	ErrSystemPermission = errors.New("system permission cannot be removed")
	// ErrPermissionInUse occurs when removing a permission still granted by a role.
	ErrPermissionInUse = errors.New("permission in use")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Is reports ErrValidation equivalence.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnknownPermissionError lists codes missing from the catalog.
type UnknownPermissionError struct {
	Codes []string
}

func (e *UnknownPermissionError) Error() string {
	return "unknown permission: " + strings.Join(e.Codes, ", ")
}

// Is reports ErrUnknownPermission equivalence.
func (e *UnknownPermissionError) Is(target error) bool { return target == ErrUnknownPermission }

// RoleInUseError reports how many users still reference a role.
type RoleInUseError struct {
	RoleID int64
	Users  int64
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("role %d in use by %d user(s)", e.RoleID, e.Users)
}

// Is reports ErrRoleInUse equivalence.
func (e *RoleInUseError) Is(target error) bool { return target == ErrRoleInUse }

// IsClientError reports whether err is caused by the request rather than the server.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrValidation, ErrDuplicateName, ErrUnknownPermission, ErrSystemRoleImmutable,
		ErrRoleInUse, ErrConflict, ErrSystemPermission, ErrPermissionInUse, ErrInvalidCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserSafeMessage returns an error message that can be shown to an administrator.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrUnknownPermission),
		errors.Is(err, ErrSystemRoleImmutable),
		errors.Is(err, ErrRoleInUse),
		errors.Is(err, ErrSystemPermission),
		errors.Is(err, ErrPermissionInUse):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrConflict):
		return "resource was modified concurrently, reload and retry"
	default:
		return "internal error"
	}
}
