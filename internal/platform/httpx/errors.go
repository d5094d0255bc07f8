// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/carewell-hms/carewell/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrUnknownPermission):
		Problem(w, http.StatusBadRequest, "Unknown Permission", err.Error())
	case errors.Is(err, shared.ErrDuplicateName):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrSystemRoleImmutable),
		errors.Is(err, shared.ErrSystemPermission):
		Problem(w, http.StatusConflict, "Protected Resource", err.Error())
	case errors.Is(err, shared.ErrRoleInUse),
		errors.Is(err, shared.ErrPermissionInUse):
		Problem(w, http.StatusConflict, "In Use", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusPreconditionFailed, "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, ErrForbidden):
		Forbidden(w)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Forbidden writes the generic 403 body used by every authorization failure.
func Forbidden(w http.ResponseWriter) {
	Problem(w, http.StatusForbidden, "Forbidden", "")
}
