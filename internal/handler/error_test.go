package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.EGONE, http.StatusGone},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.status, ErrorCodeToHTTPStatus(tc.code))
		})
	}
}

func TestErrorResponse_DoesNotExposeInternals(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"plain error", errors.New("pq: connection refused"), "Une erreur interne est survenue. Veuillez réessayer plus tard."},
		{"internal without message", domain.Internal(errors.New("pq: deadlock"), "validation.decide", ""), "Une erreur interne est survenue. Veuillez réessayer plus tard."},
		{"internal with message", domain.Internal(errors.New("smtp: 421"), "validation.decide", "Le courriel n'a pas pu être envoyé"), "Le courriel n'a pas pu être envoyé"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, httptest.NewRequest("GET", "/api/validation/abc", nil), testLogger(), tc.err)

			body := rec.Body.String()
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, body, "pq:")
			assert.NotContains(t, body, "smtp:")
			assert.NotContains(t, body, "validation.decide")
			assert.JSONEq(t, `{"error": "`+tc.message+`", "code": "internal"}`, body)
		})
	}
}
