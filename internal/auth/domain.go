package auth

import (
	"context"
	"time"
)

// User represents an account that can obtain tokens.
type User struct {
	ID           int64
	TenantID     int64
	Email        string
	PasswordHash string
	LegacyRole   string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the verified caller of a request. TenantID is the tenant the request targets,
// which may differ from the tenant the token was issued for.
type Identity struct {
	UserID        int64
	TenantID      int64
	TokenTenantID int64
	RoleClaim     string
}

type identityContextKey struct{}

// ContextWithIdentity stores the verified identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the verified identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
