package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/constat/internal/auth"
	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = &domain.User{ID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Name: "Camille Martin"}

func withAuthor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), testAuthor)))
	})
}

func serveStateReport(delivery *stubDelivery, validations *stubValidations, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	NewStateReportHandler(delivery, validations, testLogger()).RegisterRoutes(mux, withAuthor)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSend(t *testing.T) {
	reportID := uuid.New()
	delivery := &stubDelivery{}
	body := `{"recipients": ["mairie@bordeaux.fr", "proprietaire@example.com"]}`

	rec := serveStateReport(delivery, &stubValidations{}, httptest.NewRequest("POST", "/api/state-reports/"+reportID.String()+"/send", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reportID, delivery.reportID)
	assert.Same(t, testAuthor, delivery.user)
	assert.Equal(t, []string{"mairie@bordeaux.fr", "proprietaire@example.com"}, delivery.recipients)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"bad id", "/api/state-reports/nope/send", `{}`, nil, http.StatusNotFound},
		{"bad body", "/api/state-reports/" + uuid.NewString() + "/send", `[`, nil, http.StatusBadRequest},
		{"draft", "/api/state-reports/" + uuid.NewString() + "/send", `{"recipients":["a@b.fr"]}`, domain.Invalid("delivery.send_report", service.MsgReportNotFinalized), http.StatusBadRequest},
		{"mail down", "/api/state-reports/" + uuid.NewString() + "/send", `{"recipients":["a@b.fr"]}`, domain.Internal(assert.AnError, "delivery.send_report", "Le constat n'a pas pu être envoyé"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveStateReport(&stubDelivery{err: tc.err}, &stubValidations{}, httptest.NewRequest("POST", tc.path, strings.NewReader(tc.body)))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequestValidation(t *testing.T) {
	reportID := uuid.New()
	expires := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	delivery := &stubDelivery{created: &domain.ValidationRequest{
		ID:        uuid.MustParse("44444444-4444-4444-4444-444444444444"),
		Link:      "secret-token",
		ExpiresAt: expires,
	}}
	body := `{"supervisorEmail": "chef@culture.gouv.fr", "recipients": ["mairie@bordeaux.fr"]}`

	rec := serveStateReport(delivery, &stubValidations{}, httptest.NewRequest("POST", "/api/state-reports/"+reportID.String()+"/validation", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id": "44444444-4444-4444-4444-444444444444", "expiresAt": "2025-07-01T12:00:00Z"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret-token")
	assert.Equal(t, "chef@culture.gouv.fr", delivery.supervisor)
	assert.Equal(t, reportID, delivery.reportID)
}

func TestListValidations(t *testing.T) {
	comment := "Photos manquantes"
	validations := &stubValidations{list: []domain.ValidationRequest{{
		ID:                uuid.New(),
		Link:              "secret-token",
		HTML:              "<html>frozen</html>",
		Status:            domain.ValidationRejected,
		SupervisorComment: &comment,
	}}}

	rec := serveStateReport(&stubDelivery{}, validations, httptest.NewRequest("GET", "/api/state-reports/"+uuid.NewString()+"/validations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-token")
	assert.NotContains(t, rec.Body.String(), "frozen")

	var out []ValidationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "rejected", out[0].Status)
	assert.Equal(t, []string{}, out[0].OriginalRecipients)
}
