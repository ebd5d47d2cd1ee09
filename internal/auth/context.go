// Package auth carries the author identity through request contexts.
//
// Authors are authenticated upstream; middleware.RequireAuthor resolves the
// forwarded identity and stores it here for handlers.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/constat/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// UserIDHeader carries the authenticated author id set by the gateway.
const UserIDHeader = "X-User-Id"

// GetUser returns the author stored in ctx, or nil.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest is GetUser on the request context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores a user in the context.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
