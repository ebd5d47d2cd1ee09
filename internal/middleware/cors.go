package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/constat/internal/auth"
	"github.com/rs/cors"
)

// NewCORS allows the frontend origins to call the API. An empty list
// disables cross-origin access.
func NewCORS(origins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	var allowed []string
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		logger.Info("cors disabled")
		return func(next http.Handler) http.Handler { return next }
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", auth.UserIDHeader},
		MaxAge:         600,
	})
	logger.Info("cors enabled", "origins", allowed)
	return c.Handler
}
