package permissions

import (
	"regexp"
	"strings"
	"time"

	"github.com/carewell-hms/carewell/internal/shared"
)

// codePattern is the dotted namespace every permission code follows, e.g. lab.results.update.
var codePattern = regexp.MustCompile(`^[a-z]+(\.[a-z_]+)+$`)

// Permission is an immutable catalog entry.
type Permission struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValidateCode checks the dotted namespace format.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return &shared.ValidationError{Field: "code", Message: "must match " + codePattern.String()}
	}
	return nil
}

// NormalizeCode trims surrounding whitespace. Codes are case-sensitive lowercase by format.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

func defaultCategory(code string) string {
	if idx := strings.IndexByte(code, '.'); idx > 0 {
		return code[:idx]
	}
	return code
}
