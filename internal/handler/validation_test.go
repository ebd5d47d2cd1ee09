package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noLimit(next http.Handler) http.Handler { return next }

func serveValidation(stub *stubValidations, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	NewValidationHandler(stub, testLogger()).RegisterRoutes(mux, noLimit)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestValidationShow(t *testing.T) {
	title, commune := "Église Saint-Pierre", "Bordeaux"
	visit := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	stub := &stubValidations{view: &service.ValidationView{
		Request: &domain.ValidationRequest{
			ID:              uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			StateReportID:   uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			SupervisorEmail: "chef@culture.gouv.fr",
			Status:          domain.ValidationPending,
			CreatedAt:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		Report: &domain.StateReport{Title: &title, Commune: &commune, VisitDate: &visit},
		Author: &domain.User{Name: "Camille Martin"},
	}}

	rec := serveValidation(stub, httptest.NewRequest("GET", "/api/validation/abc123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", stub.link)
	assert.JSONEq(t, `{
		"id": "11111111-1111-1111-1111-111111111111",
		"stateReportId": "22222222-2222-2222-2222-222222222222",
		"supervisorEmail": "chef@culture.gouv.fr",
		"status": "pending",
		"createdAt": "2025-06-01T10:00:00Z",
		"stateReport": {"titre_edifice": "Église Saint-Pierre", "commune": "Bordeaux", "date_visite": "2025-03-14T00:00:00Z"},
		"user": {"name": "Camille Martin"}
	}`, rec.Body.String())
}

func TestValidationShowWithoutAuthor(t *testing.T) {
	stub := &stubValidations{view: &service.ValidationView{
		Request: &domain.ValidationRequest{Status: domain.ValidationPending},
	}}

	rec := serveValidation(stub, httptest.NewRequest("GET", "/api/validation/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["user"])
	assert.Nil(t, body["stateReport"])
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", domain.NotFound("validation.get", domain.MsgValidationNotFound), http.StatusNotFound, "Lien de validation introuvable"},
		{"expired", domain.Gone("validation.get", domain.MsgValidationExpired), http.StatusGone, "Ce lien de validation a expiré"},
		{"processed", domain.Gone("validation.get", domain.MsgValidationProcessed), http.StatusGone, "Cette demande de validation a déjà été traitée"},
		{"rate limited", domain.RateLimit("validation.get"), http.StatusTooManyRequests, "Trop de requêtes. Veuillez réessayer plus tard."},
	}

	for _, tc := range tests {
		for _, req := range []*http.Request{
			httptest.NewRequest("GET", "/api/validation/abc", nil),
			httptest.NewRequest("GET", "/api/validation/abc/pdf", nil),
			httptest.NewRequest("POST", "/api/validation/abc/decision", strings.NewReader(`{"approved":true}`)),
		} {
			t.Run(tc.name+" "+req.Method+" "+req.URL.Path, func(t *testing.T) {
				rec := serveValidation(&stubValidations{err: tc.err}, req)
				assert.Equal(t, tc.status, rec.Code)
				assert.Equal(t, tc.message, decodeError(t, rec).Error)
				assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			})
		}
	}
}

func TestValidationInternalErrorHidesDetails(t *testing.T) {
	err := domain.Internal(assert.AnError, "validation.get", "")
	rec := serveValidation(&stubValidations{err: err}, httptest.NewRequest("GET", "/api/validation/abc", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "validation.get")
	assert.NotContains(t, body, assert.AnError.Error())
}

func TestValidationPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	rec := serveValidation(&stubValidations{pdf: pdf}, httptest.NewRequest("GET", "/api/validation/abc/pdf", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	decoded, err := base64.StdEncoding.DecodeString(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, pdf, decoded)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestValidationDecide(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		stub := &stubValidations{result: &domain.DecisionResult{Status: domain.ValidationApproved, Message: domain.MsgValidationApproved}}
		rec := serveValidation(stub, httptest.NewRequest("POST", "/api/validation/tok/decision", strings.NewReader(`{"approved": true}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success": true, "message": "Le constat a été validé et envoyé aux destinataires"}`, rec.Body.String())
		assert.Equal(t, "tok", stub.link)
		assert.True(t, stub.approved)
		assert.Nil(t, stub.comment)
	})

	t.Run("reject with comment", func(t *testing.T) {
		stub := &stubValidations{result: &domain.DecisionResult{Status: domain.ValidationRejected, Message: domain.MsgValidationRejected}}
		rec := serveValidation(stub, httptest.NewRequest("POST", "/api/validation/tok/decision", strings.NewReader(`{"approved": false, "comment": "  Photos manquantes "}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, stub.approved)
		require.NotNil(t, stub.comment)
		assert.Equal(t, "Photos manquantes", *stub.comment)
	})

	badBodies := map[string]string{
		"missing approved": `{"comment": "x"}`,
		"not json":         `approved=true`,
		"wrong type":       `{"approved": "yes"}`,
	}
	for name, body := range badBodies {
		t.Run(name, func(t *testing.T) {
			stub := &stubValidations{}
			rec := serveValidation(stub, httptest.NewRequest("POST", "/api/validation/tok/decision", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, stub.link)
		})
	}
}

func TestValidationRoutesRequireMethod(t *testing.T) {
	rec := serveValidation(&stubValidations{}, httptest.NewRequest("GET", "/api/validation/tok/decision", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
