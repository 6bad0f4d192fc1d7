// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
	"slices"

	"github.com/2389/assistant-core/internal/store"
)

// AuthContext holds the authenticated identity information extracted from a request.
type AuthContext struct {
	UserID string
	Email  string
	Roles  []string
}

// IsAdmin returns true if the user holds the System Manager role.
func (a *AuthContext) IsAdmin() bool {
	return slices.Contains(a.Roles, store.RoleSystemManager)
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
