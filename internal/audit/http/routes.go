package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/carewell-hms/carewell/internal/platform/httpx"
	"github.com/carewell-hms/carewell/internal/rbac"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes mendaftarkan endpoint audit timeline dan ekspor CSV.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.With(h.rbac.Require(TimelineRoute)).Get("/", h.handleTimeline)
	r.Group(func(gr chi.Router) {
		gr.Use(h.rbac.Require(ExportRoute))
		gr.Use(limiter)
		gr.Get("/export.csv", h.handleExport)
	})
}

// rateLimitKey membatasi per user principal; fallback ke IP.
func rateLimitKey(r *http.Request) (string, error) {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return "user:" + strconv.FormatInt(p.TenantID, 10) + ":" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
