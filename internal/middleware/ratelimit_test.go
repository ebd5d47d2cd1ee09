package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// MemoryLimiter
// =============================================================================

func TestMemoryLimiter(t *testing.T) {
	rl := NewMemoryLimiter(3, time.Minute)
	t.Cleanup(rl.Close)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := t.Context()

	for i := range 3 {
		ok, _, err := rl.Allow(ctx, "192.168.1.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	now = now.Add(20 * time.Second)
	ok, retry, err := rl.Allow(ctx, "192.168.1.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retry)

	ok, _, _ = rl.Allow(ctx, "192.168.1.2")
	assert.True(t, ok, "other clients have their own window")

	now = now.Add(40 * time.Second)
	ok, _, _ = rl.Allow(ctx, "192.168.1.1")
	assert.True(t, ok, "window reset")
}

// =============================================================================
// RedisLimiter
// =============================================================================

func newTestRedisLimiter(t *testing.T, maxRequests int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := ConnectRedis(t.Context(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, maxRequests, window), s
}

func TestRedisLimiter(t *testing.T) {
	rl, s := newTestRedisLimiter(t, 2, time.Minute)
	ctx := t.Context()

	for range 2 {
		ok, _, err := rl.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := rl.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, time.Minute.Seconds(), retry.Seconds(), 1)
	assert.True(t, s.Exists("constat:ratelimit:203.0.113.7"))

	s.FastForward(time.Minute + time.Second)

	ok, _, err = rl.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterUnavailable(t *testing.T) {
	rl, s := newTestRedisLimiter(t, 2, time.Minute)
	s.Close()

	_, _, err := rl.Allow(t.Context(), "203.0.113.7")
	assert.Error(t, err)
}

func TestConnectRedisBadURL(t *testing.T) {
	_, err := ConnectRedis(t.Context(), "http://nope")
	assert.Error(t, err)
}

// =============================================================================
// RateLimit middleware
// =============================================================================

type limiterFunc func(ctx context.Context, key string) (bool, time.Duration, error)

func (f limiterFunc) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return f(ctx, key)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewMemoryLimiter(2, time.Minute)
	t.Cleanup(rl.Close)
	ips, err := NewClientIP([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	handler := RateLimit(rl, ips, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/validation/abc", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, send("198.51.100.1").Code)

	rec := send("198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit", body["code"])
	assert.Equal(t, "Trop de requêtes. Veuillez réessayer plus tard.", body["error"])

	assert.Equal(t, http.StatusOK, send("198.51.100.2").Code)
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	broken := limiterFunc(func(context.Context, string) (bool, time.Duration, error) {
		return false, 0, errors.New("dial tcp: connection refused")
	})
	handler := RateLimit(broken, &ClientIP{}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/validation/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareIgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewMemoryLimiter(2, time.Minute)
	t.Cleanup(rl.Close)
	ips, err := NewClientIP([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	handler := RateLimit(rl, ips, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A direct client rotating X-Forwarded-For still shares one bucket.
	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest("GET", "/api/validation/abc", nil)
		req.RemoteAddr = "203.0.113.50:40000"
		req.Header.Set("X-Forwarded-For", spoofed)
		req.Header.Set("X-Real-IP", spoofed)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
