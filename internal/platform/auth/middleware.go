package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/butchers-select/api/internal/platform/httpx"
)

const (
	adminClaim = "admin"
	nameClaim  = "name"
	emailClaim = "email"
)

var (
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator wires Firebase token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Middleware attaches the identity to the request context when a valid bearer token is
// presented. Requests without a token continue anonymously; protected handlers decide
// whether an identity is required.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" || a == nil || a.verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			decoded, err := a.verifier.VerifyIDToken(ctx, token)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "invalid credentials", http.StatusUnauthorized))
				return
			}

			identity := identityFromToken(decoded)
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

// RequireAuth rejects requests without an authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.Authenticated() {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose identity does not carry the admin claim.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.Authenticated() {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		if !identity.Admin {
			httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "admin privileges required", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromToken(token *firebaseauth.Token) *Identity {
	if token == nil {
		return nil
	}

	identity := &Identity{UID: token.UID}
	if value, ok := token.Claims[emailClaim].(string); ok {
		identity.Email = value
	}
	if value, ok := token.Claims[nameClaim].(string); ok {
		identity.Name = value
	}
	if value, ok := token.Claims[adminClaim].(bool); ok {
		identity.Admin = value
	}
	return identity
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
