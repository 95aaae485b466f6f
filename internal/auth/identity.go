// Package auth carries the acting user through a request context.
//
// Authentication itself happens before the engine is reached; this package
// only transports the already-authenticated user id.
package auth

import (
	"context"
	"strings"
)

type userKey struct{}

// WithUser returns a copy of ctx that carries userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user id stored by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	if !ok || strings.TrimSpace(userID) == "" {
		return "", false
	}
	return userID, true
}

// ContextIdentity resolves the acting user from the request context.
type ContextIdentity struct{}

// UserID implements planner.Identity.
func (ContextIdentity) UserID(ctx context.Context) (string, bool) {
	return UserFromContext(ctx)
}

// Static always resolves to the same user, unless the context carries one.
// Operator tooling acting on behalf of a single user uses it.
type Static string

// UserID implements planner.Identity.
func (s Static) UserID(ctx context.Context) (string, bool) {
	if userID, ok := UserFromContext(ctx); ok {
		return userID, true
	}
	if strings.TrimSpace(string(s)) == "" {
		return "", false
	}
	return string(s), true
}
