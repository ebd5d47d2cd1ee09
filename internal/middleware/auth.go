// Package middleware contains HTTP middleware for the constat service.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/constat/internal/auth"
	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/handler"
	"github.com/google/uuid"
)

// UserLoader resolves a user id. A nil user with a nil error means the
// account does not exist.
type UserLoader interface {
	User(ctx context.Context, id *uuid.UUID) (*domain.User, error)
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware identifies authors. Authentication itself happens at the
// gateway, which forwards the author id in auth.UserIDHeader.
type AuthMiddleware struct {
	users  UserLoader
	logger *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(users UserLoader, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		users:  users,
		logger: logger,
	}
}

// RequireAuthor loads the forwarded author into the request context and
// rejects requests without a known author with 401.
//
//	Request -> RequireAuthor -> Handler
//	           |
//	           +-> Read X-User-Id
//	           +-> Load user
//	           +-> auth.SetUser
func (m *AuthMiddleware) RequireAuthor(next http.Handler) http.Handler {
	const op = "middleware.require_author"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(auth.UserIDHeader))
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, domain.Unauthorized(op, "Authentification requise"))
			return
		}

		user, err := m.users.User(r.Context(), &id)
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}
		if user == nil {
			m.logger.Warn("unknown author id", "user_id", id)
			handler.ErrorResponse(w, r, m.logger, domain.Unauthorized(op, "Authentification requise"))
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes middleware; the first one is the outermost.
//
//	stack := Stack(loggingMw.Handler, authMw.RequireAuthor)
//	mux.Handle("POST /api/state-reports/{id}/send", stack(sendHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var _ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAuthor
