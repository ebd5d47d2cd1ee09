// Package handler contains the HTTP handlers of the constat service.
//
// This file implements the public validation endpoints used by supervisors.
// They carry no session: the token in the path is the credential.
//
// Routes:
//   - GET  /api/validation/{link}          -> Show
//   - GET  /api/validation/{link}/pdf      -> PDF
//   - POST /api/validation/{link}/decision -> Decide
package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/constat/internal/service"
	"github.com/google/uuid"
)

// ValidationHandler serves the supervisor validation page API.
type ValidationHandler struct {
	validations service.ValidationService
	logger      *slog.Logger
}

// NewValidationHandler creates a new ValidationHandler.
func NewValidationHandler(validations service.ValidationService, logger *slog.Logger) *ValidationHandler {
	return &ValidationHandler{
		validations: validations,
		logger:      logger,
	}
}

// RegisterRoutes registers the public validation routes. limit wraps every
// route, typically with the rate limiter.
func (h *ValidationHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /api/validation/{link}", limit(http.HandlerFunc(h.Show)))
	mux.Handle("GET /api/validation/{link}/pdf", limit(http.HandlerFunc(h.PDF)))
	mux.Handle("POST /api/validation/{link}/decision", limit(http.HandlerFunc(h.Decide)))
}

// =============================================================================
// Response Types
// =============================================================================

// ValidationResponse is what the validation page displays.
type ValidationResponse struct {
	ID              uuid.UUID           `json:"id"`
	StateReportID   uuid.UUID           `json:"stateReportId"`
	SupervisorEmail string              `json:"supervisorEmail"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	StateReport     *StateReportSummary `json:"stateReport"`
	User            *ValidationAuthor   `json:"user"`
}

// StateReportSummary identifies the report under review.
type StateReportSummary struct {
	TitreEdifice *string    `json:"titre_edifice"`
	Commune      *string    `json:"commune"`
	DateVisite   *time.Time `json:"date_visite"`
}

// ValidationAuthor names the author of the report.
type ValidationAuthor struct {
	Name string `json:"name"`
}

// DecisionRequest is the body of a decision.
type DecisionRequest struct {
	Approved *bool   `json:"approved"`
	Comment  *string `json:"comment,omitempty"`
}

// DecisionResponse confirms a recorded decision.
type DecisionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// =============================================================================
// Handlers
// =============================================================================

// Show returns a pending request with its report summary.
// GET /api/validation/{link}
func (h *ValidationHandler) Show(w http.ResponseWriter, r *http.Request) {
	view, err := h.validations.Get(r.Context(), r.PathValue("link"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := ValidationResponse{
		ID:              view.Request.ID,
		StateReportID:   view.Request.StateReportID,
		SupervisorEmail: view.Request.SupervisorEmail,
		Status:          string(view.Request.Status),
		CreatedAt:       view.Request.CreatedAt,
	}
	if view.Report != nil {
		resp.StateReport = &StateReportSummary{
			TitreEdifice: view.Report.Title,
			Commune:      view.Report.Commune,
			DateVisite:   view.Report.VisitDate,
		}
	}
	if view.Author != nil {
		resp.User = &ValidationAuthor{Name: view.Author.DisplayName()}
	}

	writeJSON(w, http.StatusOK, resp)
}

// PDF returns the document under review as base64 text.
// GET /api/validation/{link}/pdf
func (h *ValidationHandler) PDF(w http.ResponseWriter, r *http.Request) {
	pdf, err := h.validations.PDF(r.Context(), r.PathValue("link"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	enc := base64.NewEncoder(base64.StdEncoding, w)
	if _, err := enc.Write(pdf); err != nil {
		h.logger.Warn("failed to write pdf", "error", err)
		return
	}
	_ = enc.Close()
}

// Decide records the supervisor's decision.
// POST /api/validation/{link}/decision
func (h *ValidationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	const op = "validation.decide"

	var req DecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		InvalidRequestResponse(w, r, h.logger, op, "Requête invalide")
		return
	}
	if req.Approved == nil {
		InvalidRequestResponse(w, r, h.logger, op, "Le champ approved est requis")
		return
	}
	if req.Comment != nil {
		c := strings.TrimSpace(*req.Comment)
		req.Comment = &c
	}

	res, err := h.validations.SubmitDecision(r.Context(), r.PathValue("link"), *req.Approved, req.Comment)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, DecisionResponse{Success: true, Message: res.Message})
}
