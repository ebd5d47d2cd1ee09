package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
)

// =============================================================================
// Limiter
// =============================================================================

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	// Allow records a request for key. When the request is over the limit
	// it returns false and the time until the window resets.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// =============================================================================
// In-memory Limiter
// =============================================================================

// MemoryLimiter is a Limiter for a single instance.
type MemoryLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	stop    chan struct{}
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a limiter allowing maxRequests per window. Call
// Close to stop its cleanup goroutine.
func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	rl := &MemoryLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		entries:     make(map[string]*rateLimitEntry),
		stop:        make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow implements Limiter.
func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.entries[key]
	if !exists || now.Sub(entry.windowStart) >= rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true, 0, nil
	}

	if entry.count < rl.maxRequests {
		entry.count++
		return true, 0, nil
	}
	return false, rl.window - now.Sub(entry.windowStart), nil
}

// Close stops the cleanup goroutine.
func (rl *MemoryLimiter) Close() {
	close(rl.stop)
}

// cleanup periodically drops expired windows.
func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		now := rl.now()
		for key, entry := range rl.entries {
			if now.Sub(entry.windowStart) >= rl.window {
				delete(rl.entries, key)
			}
		}
		rl.mu.Unlock()
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimit rejects clients over the limit with 429, keyed by the address
// ips resolves. Limiter errors let the request through.
func RateLimit(limiter Limiter, ips *ClientIP, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ips.From(r)

			allowed, retryAfter, err := limiter.Allow(r.Context(), clientIP)
			if err != nil {
				logger.Warn("rate limiter unavailable, request allowed", "ip", clientIP, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"route", r.Pattern,
				"method", r.Method,
			)

			seconds := max(int(retryAfter.Round(time.Second).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(seconds))

			rlErr := domain.RateLimit("middleware.rate_limit")
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": domain.ErrorMessage(rlErr),
				"code":  domain.ERATELIMIT,
			})
		})
	}
}
