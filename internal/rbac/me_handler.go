package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carewell-hms/carewell/internal/platform/httpx"
)

// MeRouteName names the self-inspection endpoint in logs, metrics and audit.
const MeRouteName = "me.permissions"

// MeHandler lets the caller inspect its own effective permissions.
type MeHandler struct {
	logger *slog.Logger
	rbac   Middleware
}

// NewMeHandler builds MeHandler instance.
func NewMeHandler(logger *slog.Logger, rbac Middleware) *MeHandler {
	return &MeHandler{logger: logger, rbac: rbac}
}

// MountRoutes registers /me routes.
func (h *MeHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Resolved(MeRouteName)).Get("/permissions", h.permissions)
}

type meResponse struct {
	*Principal
	Permissions []string `json:"permissions"`
}

func (h *MeHandler) permissions(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		httpx.Forbidden(w)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{Principal: p, Permissions: p.Permissions.Codes()})
}
