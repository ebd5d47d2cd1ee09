package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// quietPrefixes are polled or bulk paths that are not logged.
var quietPrefixes = []string{"/health", "/metrics", "/files/"}

// sensitiveParams are query parameters whose values never reach the logs.
var sensitiveParams = map[string]bool{
	"token":        true,
	"link":         true,
	"key":          true,
	"secret":       true,
	"password":     true,
	"api_key":      true,
	"access_token": true,
}

const (
	// validationPrefix is followed by the validation token, a bearer
	// credential for the supervisor.
	validationPrefix = "/api/validation/"

	// tokenPrefixLen is how much of a token is kept in logs.
	tokenPrefixLen = 8
)

// RequestLoggingMiddleware writes one line per request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
	ips    *ClientIP
}

// NewRequestLoggingMiddleware creates a request logger. ips decides which
// forwarding headers are believed for the logged client address.
func NewRequestLoggingMiddleware(logger *slog.Logger, ips *ClientIP) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{logger: logger, ips: ips}
}

// Handler logs method, redacted path, matched route, status and latency.
// 5xx responses are logged at warn level.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isQuiet(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", redactToken(r.URL.Path) + sanitizeQuery(r.URL.RawQuery),
			"route", r.Pattern,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", m.ips.From(r),
			"user_agent", r.UserAgent(),
		}

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		m.logger.Log(r.Context(), level, "request", attrs...)
	})
}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// statusWriter records the status code passed to WriteHeader.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// redactToken shortens the validation token in path to its first
// characters.
func redactToken(path string) string {
	rest, ok := strings.CutPrefix(path, validationPrefix)
	if !ok {
		return path
	}
	token, tail, hasTail := strings.Cut(rest, "/")
	if len(token) > tokenPrefixLen {
		token = token[:tokenPrefixLen] + "…"
	}
	if hasTail {
		return validationPrefix + token + "/" + tail
	}
	return validationPrefix + token
}

// sanitizeQuery returns rawQuery with a leading "?" and sensitive values
// replaced, or "" when there is no query.
func sanitizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if sensitiveParams[strings.ToLower(key)] {
			parts[i] = key + "=[REDACTED]"
		}
	}
	return "?" + strings.Join(parts, "&")
}
