package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		handler := NewCORS([]string{"https://constat.example.fr/"}, logger)(ok)
		req := httptest.NewRequest("GET", "/api/validation/abc", nil)
		req.Header.Set("Origin", "https://constat.example.fr")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "https://constat.example.fr", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		handler := NewCORS([]string{"https://constat.example.fr"}, logger)(ok)
		req := httptest.NewRequest("GET", "/api/validation/abc", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		handler := NewCORS([]string{"https://constat.example.fr"}, logger)(ok)
		req := httptest.NewRequest("OPTIONS", "/api/validation/abc/decision", nil)
		req.Header.Set("Origin", "https://constat.example.fr")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "https://constat.example.fr", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("disabled", func(t *testing.T) {
		handler := NewCORS(nil, logger)(ok)
		req := httptest.NewRequest("GET", "/api/validation/abc", nil)
		req.Header.Set("Origin", "https://constat.example.fr")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
