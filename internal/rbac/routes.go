package rbac

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/carewell-hms/carewell/internal/shared"
)

// Route declares the permission requirement of one endpoint. Handler packages keep them as
// package-level values so the full table can be checked before the server starts.
type Route struct {
	Name        string
	Requirement Requirement
	// Sensitive routes are audited on allow as well as on deny.
	Sensitive bool
}

// CatalogChecker reports which codes are not registered.
type CatalogChecker interface {
	Missing(ctx context.Context, codes []string) ([]string, error)
}

// RouteTable collects every declared Route.
type RouteTable struct {
	mu     sync.Mutex
	routes []Route
}

// NewRouteTable constructs an empty table.
func NewRouteTable() *RouteTable {
	return &RouteTable{}
}

// Register adds routes to the table.
func (t *RouteTable) Register(routes ...Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, routes...)
}

// Routes returns the registered routes sorted by name.
func (t *RouteTable) Routes() []Route {
	t.mu.Lock()
	out := append([]Route(nil), t.routes...)
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate rejects unnamed, duplicate or empty declarations and any code unknown to catalog.
func (t *RouteTable) Validate(ctx context.Context, catalog CatalogChecker) error {
	routes := t.Routes()
	seen := make(map[string]struct{}, len(routes))
	owners := make(map[string][]string)
	var codes []string
	for _, route := range routes {
		if strings.TrimSpace(route.Name) == "" {
			return &shared.ValidationError{Field: "route", Message: "name required for " + route.Requirement.String()}
		}
		if _, dup := seen[route.Name]; dup {
			return &shared.ValidationError{Field: "route", Message: "duplicate route " + route.Name}
		}
		seen[route.Name] = struct{}{}
		if err := checkRequirement(route); err != nil {
			return err
		}
		for _, code := range route.Requirement.Codes {
			if _, ok := owners[code]; !ok {
				codes = append(codes, code)
			}
			owners[code] = append(owners[code], route.Name)
		}
	}
	if len(codes) == 0 {
		return nil
	}
	missing, err := catalog.Missing(ctx, codes)
	if err != nil {
		return fmt.Errorf("rbac: validate routes: %w", err)
	}
	if len(missing) > 0 {
		parts := make([]string, 0, len(missing))
		for _, code := range missing {
			parts = append(parts, fmt.Sprintf("%s (%s)", code, strings.Join(owners[code], ",")))
		}
		return fmt.Errorf("rbac: routes reference %s: %w", strings.Join(parts, "; "), &shared.UnknownPermissionError{Codes: missing})
	}
	return nil
}

func checkRequirement(route Route) error {
	req := route.Requirement
	switch req.Mode {
	case ModeSingle:
		if len(req.Codes) != 1 {
			return &shared.ValidationError{Field: route.Name, Message: "single requirement needs exactly one code"}
		}
	case ModeAnyOf, ModeAllOf:
		if len(req.Codes) == 0 {
			return &shared.ValidationError{Field: route.Name, Message: "requirement has no codes"}
		}
	default:
		return &shared.ValidationError{Field: route.Name, Message: "unknown requirement mode"}
	}
	for _, code := range req.Codes {
		if strings.TrimSpace(code) == "" {
			return &shared.ValidationError{Field: route.Name, Message: "empty permission code"}
		}
	}
	return nil
}
