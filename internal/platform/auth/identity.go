package auth

import (
	"context"
	"strings"
)

// Identity captures the authenticated principal details extracted from a Firebase ID
// token. Profile fields mirror the member document maintained by the identity provider.
type Identity struct {
	UID   string
	Email string
	Name  string
	Admin bool
}

// Authenticated reports whether the identity belongs to a signed-in member.
func (i *Identity) Authenticated() bool {
	return i != nil && strings.TrimSpace(i.UID) != ""
}

type contextKey string

const identityContextKey contextKey = "github.com/butchers-select/api/internal/platform/auth/identity"

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity from the context when present.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
