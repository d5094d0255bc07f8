package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carewell-hms/carewell/internal/shared"
)

// Bind decodes the JSON body into target and validates it. Errors are shared.ValidationError.
func Bind(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return &shared.ValidationError{Field: "body", Message: "malformed JSON body"}
	}
	if err := v.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &shared.ValidationError{Field: fieldErrs[0].Field(), Message: fieldErrs[0].Tag()}
		}
		return &shared.ValidationError{Message: err.Error()}
	}
	return nil
}

// IDParam parses a positive int64 URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &shared.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}
