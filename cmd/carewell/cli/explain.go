package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carewell-hms/carewell/internal/rbac"
)

// ExplainOptions defines available flags for the authz explain command.
type ExplainOptions struct {
	UserID     int64
	TenantID   int64
	Codes      []string
	Mode       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ExplainSummary describes the JSON response for authz explain.
type ExplainSummary struct {
	Allowed           bool     `json:"allowed"`
	Reason            string   `json:"reason"`
	MatchedPermission string   `json:"matched_permission,omitempty"`
	Requirement       string   `json:"requirement"`
	RoleName          string   `json:"role_name,omitempty"`
	SuperAdmin        bool     `json:"is_super_admin"`
	Permissions       []string `json:"permissions"`
	Error             string   `json:"error,omitempty"`
}

// ExplainCLI shows how a user's request would be decided.
type ExplainCLI struct {
	resolver rbac.PrincipalResolver
}

// NewExplainCLI constructs the helper.
func NewExplainCLI(resolver rbac.PrincipalResolver) *ExplainCLI {
	return &ExplainCLI{resolver: resolver}
}

// Command resolves the principal, evaluates the requirement and prints the decision.
// Exit codes: 0 allowed, 10 denied, 1 usage or infrastructure error.
func (c *ExplainCLI) Command(ctx context.Context, opts ExplainOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.UserID <= 0 || opts.TenantID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "authz explain: --user and --tenant are required and must be positive")
		return 1
	}
	req, err := buildRequirement(opts.Mode, opts.Codes)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "authz explain: %v\n", err)
		return 1
	}

	summary := ExplainSummary{Requirement: req.String(), Permissions: []string{}}
	principal, err := c.resolver.Resolve(ctx, opts.UserID, opts.TenantID)
	var decision rbac.Decision
	if err != nil {
		decision = rbac.DenyFromError(err)
		summary.Error = err.Error()
	} else {
		decision = rbac.Evaluate(principal, req)
		summary.RoleName = principal.RoleName
		summary.SuperAdmin = principal.SuperAdmin
		summary.Permissions = principal.Permissions.Codes()
	}
	summary.Allowed = decision.Allowed
	summary.Reason = string(decision.Reason)
	summary.MatchedPermission = decision.MatchedPermission

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "authz explain: encode json: %v\n", err)
			return 1
		}
	} else {
		renderExplainHuman(opts.Stdout, summary)
	}
	if !summary.Allowed {
		return 10
	}
	return 0
}

func buildRequirement(mode string, codes []string) (rbac.Requirement, error) {
	cleaned := make([]string, 0, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			cleaned = append(cleaned, code)
		}
	}
	if len(cleaned) == 0 {
		return rbac.Requirement{}, fmt.Errorf("--require needs at least one permission code")
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "single":
		if len(cleaned) != 1 {
			return rbac.Requirement{}, fmt.Errorf("single mode takes exactly one code, use --mode any or all")
		}
		return rbac.Single(cleaned[0]), nil
	case "any":
		return rbac.AnyOf(cleaned...), nil
	case "all":
		return rbac.AllOf(cleaned...), nil
	default:
		return rbac.Requirement{}, fmt.Errorf("unknown mode %q (expected single, any or all)", mode)
	}
}

func renderExplainHuman(w io.Writer, s ExplainSummary) {
	verdict := "DENY"
	if s.Allowed {
		verdict = "ALLOW"
	}
	_, _ = fmt.Fprintf(w, "%s %s (%s)\n", verdict, s.Requirement, s.Reason)
	if s.MatchedPermission != "" {
		_, _ = fmt.Fprintf(w, "  matched: %s\n", s.MatchedPermission)
	}
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "  error: %s\n", s.Error)
		return
	}
	role := s.RoleName
	if s.SuperAdmin {
		role += " (super admin)"
	}
	_, _ = fmt.Fprintf(w, "  role: %s\n", role)
	_, _ = fmt.Fprintf(w, "  permissions: %s\n", strings.Join(s.Permissions, ", "))
}
