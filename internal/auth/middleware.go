package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/carewell-hms/carewell/internal/platform/httpx"
)

// DefaultTenantHeader names the header that selects the request tenant.
const DefaultTenantHeader = "X-Tenant-ID"

// Verifier validates bearer tokens.
type Verifier interface {
	Verify(raw string) (Identity, error)
}

// Middleware authenticates bearer tokens and stores the Identity in the request context.
type Middleware struct {
	Verifier     Verifier
	TenantHeader string
	Logger       *slog.Logger
}

// Authenticate rejects requests without a valid bearer token.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	header := m.TenantHeader
	if header == "" {
		header = DefaultTenantHeader
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		id, err := m.Verifier.Verify(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("reject token", slog.Any("error", err))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			tenantID, err := strconv.ParseInt(v, 10, 64)
			if err != nil || tenantID <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant header")
				return
			}
			id.TenantID = tenantID
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	value := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
