// This file implements the author endpoints for delivering a finalized
// report. Routes are wrapped in middleware.RequireAuthor.
//
// Routes:
//   - POST /api/state-reports/{id}/send        -> Send
//   - POST /api/state-reports/{id}/validation  -> RequestValidation
//   - GET  /api/state-reports/{id}/validations -> ListValidations
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/constat/internal/auth"
	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/service"
	"github.com/google/uuid"
)

// StateReportHandler serves the author side of report delivery.
type StateReportHandler struct {
	delivery    service.DeliveryService
	validations service.ValidationService
	logger      *slog.Logger
}

// NewStateReportHandler creates a new StateReportHandler.
func NewStateReportHandler(
	delivery service.DeliveryService,
	validations service.ValidationService,
	logger *slog.Logger,
) *StateReportHandler {
	return &StateReportHandler{
		delivery:    delivery,
		validations: validations,
		logger:      logger,
	}
}

// RegisterRoutes registers the author routes behind requireAuthor.
func (h *StateReportHandler) RegisterRoutes(mux *http.ServeMux, requireAuthor func(http.Handler) http.Handler) {
	mux.Handle("POST /api/state-reports/{id}/send", requireAuthor(http.HandlerFunc(h.Send)))
	mux.Handle("POST /api/state-reports/{id}/validation", requireAuthor(http.HandlerFunc(h.RequestValidation)))
	mux.Handle("GET /api/state-reports/{id}/validations", requireAuthor(http.HandlerFunc(h.ListValidations)))
}

// =============================================================================
// Request / Response Types
// =============================================================================

// SendRequest is the body of a direct delivery.
type SendRequest struct {
	Recipients []string `json:"recipients"`
}

// ValidationRequestBody is the body of a validation request.
type ValidationRequestBody struct {
	SupervisorEmail string   `json:"supervisorEmail"`
	Recipients      []string `json:"recipients"`
}

// ValidationCreatedResponse identifies a new validation request. The token
// only goes to the supervisor.
type ValidationCreatedResponse struct {
	ID        uuid.UUID `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidationSummary is one entry of a report's validation history.
type ValidationSummary struct {
	ID                 uuid.UUID  `json:"id"`
	SupervisorEmail    string     `json:"supervisorEmail"`
	Status             string     `json:"status"`
	SupervisorComment  *string    `json:"supervisorComment"`
	ValidatedAt        *time.Time `json:"validatedAt"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	OriginalRecipients []string   `json:"originalRecipients"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// =============================================================================
// Handlers
// =============================================================================

// Send renders the report and emails it to the recipients.
// POST /api/state-reports/{id}/send
func (h *StateReportHandler) Send(w http.ResponseWriter, r *http.Request) {
	const op = "state_report.send"

	id, ok := h.reportID(w, r, op)
	if !ok {
		return
	}
	var req SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		InvalidRequestResponse(w, r, h.logger, op, "Requête invalide")
		return
	}

	user := auth.GetUserFromRequest(r)
	if err := h.delivery.SendReport(r.Context(), id, user, req.Recipients); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, DecisionResponse{Success: true, Message: "Le constat a été envoyé aux destinataires"})
}

// RequestValidation sends the report to a supervisor for approval.
// POST /api/state-reports/{id}/validation
func (h *StateReportHandler) RequestValidation(w http.ResponseWriter, r *http.Request) {
	const op = "state_report.request_validation"

	id, ok := h.reportID(w, r, op)
	if !ok {
		return
	}
	var req ValidationRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		InvalidRequestResponse(w, r, h.logger, op, "Requête invalide")
		return
	}

	user := auth.GetUserFromRequest(r)
	created, err := h.delivery.RequestValidation(r.Context(), id, user, req.SupervisorEmail, req.Recipients)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, ValidationCreatedResponse{ID: created.ID, ExpiresAt: created.ExpiresAt})
}

// ListValidations returns the validation history of a report.
// GET /api/state-reports/{id}/validations
func (h *StateReportHandler) ListValidations(w http.ResponseWriter, r *http.Request) {
	const op = "state_report.list_validations"

	id, ok := h.reportID(w, r, op)
	if !ok {
		return
	}

	list, err := h.validations.ListByReport(r.Context(), id, auth.GetUserFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]ValidationSummary, len(list))
	for i, v := range list {
		out[i] = toValidationSummary(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StateReportHandler) reportID(w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, service.MsgReportNotFound))
		return uuid.Nil, false
	}
	return id, true
}

func toValidationSummary(v domain.ValidationRequest) ValidationSummary {
	recipients := v.OriginalRecipients
	if recipients == nil {
		recipients = []string{}
	}
	return ValidationSummary{
		ID:                 v.ID,
		SupervisorEmail:    v.SupervisorEmail,
		Status:             string(v.Status),
		SupervisorComment:  v.SupervisorComment,
		ValidatedAt:        v.ValidatedAt,
		ExpiresAt:          v.ExpiresAt,
		OriginalRecipients: recipients,
		CreatedAt:          v.CreatedAt,
	}
}
