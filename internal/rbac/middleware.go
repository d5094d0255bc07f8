package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/carewell-hms/carewell/internal/audit"
	"github.com/carewell-hms/carewell/internal/auth"
	"github.com/carewell-hms/carewell/internal/platform/httpx"
	"github.com/carewell-hms/carewell/internal/shared"
)

// PrincipalResolver builds the Principal for a verified identity.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID, tenantID int64) (*Principal, error)
}

// Auditor receives authorization outcomes.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event, sensitive bool)
}

// DecisionObserver counts decisions per route and reason.
type DecisionObserver interface {
	ObserveDecision(route, reason string)
}

// Middleware enforces route requirements. Every failure path is a generic 403.
type Middleware struct {
	Resolver PrincipalResolver
	Auditor  Auditor
	Metrics  DecisionObserver
	Logger   *slog.Logger
}

// Require guards next with route's requirement.
func (m Middleware) Require(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, decision := m.authorize(r, route)
			m.observe(route, decision)
			if !decision.Allowed {
				m.logger().Warn("authorization denied",
					slog.String("route", route.Name),
					slog.String("requirement", route.Requirement.String()),
					slog.String("reason", string(decision.Reason)),
					slog.String("request_id", middleware.GetReqID(r.Context())))
				m.record(r, route, principal, decision)
				httpx.Forbidden(w)
				return
			}
			if route.Sensitive {
				m.record(r, route, principal, decision)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAny is shorthand for Require with an AnyOf requirement.
func (m Middleware) RequireAny(name string, codes ...string) func(http.Handler) http.Handler {
	return m.Require(Route{Name: name, Requirement: AnyOf(codes...)})
}

// RequireAll is shorthand for Require with an AllOf requirement.
func (m Middleware) RequireAll(name string, codes ...string) func(http.Handler) http.Handler {
	return m.Require(Route{Name: name, Requirement: AllOf(codes...)})
}

// Resolved only requires a resolvable principal.
func (m Middleware) Resolved(name string) func(http.Handler) http.Handler {
	return m.Require(Route{Name: name, Requirement: AllOf()})
}

func (m Middleware) authorize(r *http.Request, route Route) (principal *Principal, decision Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger().Error("authorization panic", slog.String("route", route.Name), slog.Any("panic", rec))
			principal = nil
			decision = Decision{Reason: ReasonMissingPermission}
		}
	}()
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		m.logger().Error("authorization without identity", slog.String("route", route.Name))
		return nil, Decision{Reason: ReasonMissingPermission}
	}
	if p := PrincipalFromContext(ctx); p != nil && p.UserID == identity.UserID && p.TenantID == identity.TenantID {
		return p, Evaluate(p, route.Requirement)
	}
	if m.Resolver == nil {
		return nil, Decision{Reason: ReasonMissingPermission}
	}
	p, err := m.Resolver.Resolve(ctx, identity.UserID, identity.TenantID)
	if err != nil {
		level := slog.LevelError
		if isPrincipalError(err) {
			level = slog.LevelWarn
		}
		m.logger().Log(ctx, level, "resolve principal",
			slog.Int64("user_id", identity.UserID),
			slog.Int64("tenant_id", identity.TenantID),
			slog.Any("error", err))
		return nil, DenyFromError(err)
	}
	return p, Evaluate(p, route.Requirement)
}

func isPrincipalError(err error) bool {
	return errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrUserInactive) ||
		errors.Is(err, shared.ErrTenantMismatch) ||
		errors.Is(err, shared.ErrRoleInactive)
}

func (m Middleware) record(r *http.Request, route Route, p *Principal, d Decision) {
	if m.Auditor == nil {
		return
	}
	ev := audit.Event{
		Route:             route.Name,
		Method:            r.Method,
		Path:              r.URL.Path,
		Requirement:       route.Requirement.String(),
		Allowed:           d.Allowed,
		Reason:            string(d.Reason),
		MatchedPermission: d.MatchedPermission,
		RequestID:         middleware.GetReqID(r.Context()),
		RemoteAddr:        r.RemoteAddr,
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		ev.UserID = identity.UserID
		ev.TenantID = identity.TenantID
	}
	if p != nil {
		ev.RoleID = p.RoleID
		ev.RoleName = p.RoleName
		ev.SuperAdmin = p.SuperAdmin
	}
	m.Auditor.Record(r.Context(), ev, route.Sensitive)
}

func (m Middleware) observe(route Route, d Decision) {
	if m.Metrics != nil {
		m.Metrics.ObserveDecision(route.Name, string(d.Reason))
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
