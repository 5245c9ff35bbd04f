// ABOUTME: Authentication context for tracking the caller through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating the owner id via context

package auth

import (
	"context"
)

// AuthContext holds the authenticated identity extracted from a request.
// UserID is the owner every conversation and task is scoped to.
type AuthContext struct {
	UserID string
	// Method records how the caller was identified: "jwt" or "header".
	Method string
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	auth, ok := val.(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// UserID returns the authenticated owner id, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	if a := FromContext(ctx); a != nil {
		return a.UserID
	}
	return ""
}
