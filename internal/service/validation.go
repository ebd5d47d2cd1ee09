package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/email"
	"github.com/DukeRupert/constat/internal/metrics"
	"github.com/DukeRupert/constat/internal/report"
	"github.com/DukeRupert/constat/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ValidationService runs the supervisor validation workflow.
//
// A request is created pending with a random token and a frozen copy of the
// report HTML and recipients. The token is the only credential the
// supervisor needs. A request is decided at most once, and never after it
// has expired.
type ValidationService interface {
	// Create stores a pending request for a finalized report and emails
	// the supervisor a link to it.
	Create(ctx context.Context, params CreateValidationParams) (*domain.ValidationRequest, error)

	// Get returns a request still awaiting a decision, with its report and
	// author. ENOTFOUND for unknown tokens, EGONE for expired or decided
	// requests, checked in that order.
	Get(ctx context.Context, link string) (*ValidationView, error)

	// PDF renders the frozen HTML of a request. Decided requests stay
	// downloadable until they expire.
	PDF(ctx context.Context, link string) ([]byte, error)

	// SubmitDecision approves or rejects a request. The decision is
	// committed before any email is sent.
	SubmitDecision(ctx context.Context, link string, approved bool, comment *string) (*domain.DecisionResult, error)

	// ListByReport returns the requests made for a report, newest first.
	ListByReport(ctx context.Context, reportID uuid.UUID, author *domain.User) ([]domain.ValidationRequest, error)
}

// CreateValidationParams holds the inputs of ValidationService.Create.
type CreateValidationParams struct {
	Bundle          *domain.ReportBundle
	Author          *domain.User
	Service         *domain.Service
	SupervisorEmail string
	Recipients      []string
}

// ValidationView is what the supervisor sees before deciding.
type ValidationView struct {
	Request *domain.ValidationRequest
	Report  *domain.StateReport // nil if the report was deleted
	Author  *domain.User        // nil if the account was deleted
}

// =============================================================================
// Implementation
// =============================================================================

type validationService struct {
	queries   repository.Querier
	reports   ReportService
	documents DocumentService
	notifier  email.Notifier
	now       func() time.Time
	logger    *slog.Logger
}

// NewValidationService creates a ValidationService. now is the clock used
// for expiry; nil means time.Now.
func NewValidationService(
	queries repository.Querier,
	reports ReportService,
	documents DocumentService,
	notifier email.Notifier,
	now func() time.Time,
	logger *slog.Logger,
) ValidationService {
	if now == nil {
		now = time.Now
	}
	return &validationService{
		queries:   queries,
		reports:   reports,
		documents: documents,
		notifier:  notifier,
		now:       now,
		logger:    logger,
	}
}

// =============================================================================
// Create
// =============================================================================

// Create freezes the report HTML and recipients and emails the supervisor.
func (s *validationService) Create(ctx context.Context, params CreateValidationParams) (*domain.ValidationRequest, error) {
	const op = "validation.create"

	supervisor, err := parseEmail(params.SupervisorEmail)
	if err != nil {
		return nil, domain.Invalid(op, "Adresse électronique du superviseur invalide")
	}
	recipients, err := parseRecipients(params.Recipients)
	if err != nil {
		return nil, domain.Invalid(op, err.Error())
	}
	if params.Bundle == nil || !params.Bundle.Report.IsFinalized() {
		return nil, domain.Invalid(op, MsgReportNotFinalized)
	}
	if params.Author == nil {
		return nil, domain.Unauthorized(op, MsgAuthorRequired)
	}

	htmlDoc, err := report.RenderReportHTML(params.Bundle)
	if err != nil {
		return nil, domain.Internal(err, op, "Échec de la génération du constat")
	}

	token, err := newValidationToken()
	if err != nil {
		return nil, domain.Internal(err, op, "")
	}

	now := s.now()
	var serviceID *uuid.UUID
	if params.Service != nil {
		serviceID = &params.Service.ID
	}

	row, err := s.queries.CreateValidation(ctx, repository.CreateValidationParams{
		ID:                      uuid.New(),
		StateReportID:           params.Bundle.Report.ID,
		UserID:                  uuid.NullUUID{UUID: params.Author.ID, Valid: true},
		ServiceID:               domain.ToNullUUID(serviceID),
		SupervisorEmail:         supervisor,
		ValidationLink:          token,
		ValidationLinkExpiresAt: now.Add(domain.ValidationLinkDuration),
		HtmlString:              htmlDoc,
		OriginalRecipients:      recipients,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible d'enregistrer la demande de validation")
	}
	req := toValidation(row)
	metrics.ValidationRequestsCreated.Inc()

	s.logger.Info("validation request created",
		"validation_id", req.ID,
		"state_report_id", req.StateReportID,
		"user_id", params.Author.ID,
		"recipients", len(recipients),
		"expires_at", req.ExpiresAt,
	)

	stateReport := params.Bundle.Report
	err = s.notifier.SendValidationRequested(ctx, email.ValidationRequested{
		SupervisorEmail: supervisor,
		Author:          params.Author,
		Report:          &stateReport,
		Token:           token,
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		s.logger.Error("failed to email supervisor", "validation_id", req.ID, "error", err)
		return req, domain.Internal(err, op, "La demande a été enregistrée mais le courriel au superviseur n'a pas pu être envoyé")
	}
	return req, nil
}

// =============================================================================
// Get / PDF
// =============================================================================

// Get checks the token and loads the report summary and author.
func (s *validationService) Get(ctx context.Context, link string) (*ValidationView, error) {
	const op = "validation.get"

	req, err := s.lookup(ctx, op, link)
	if err != nil {
		return nil, err
	}
	if err := req.CheckUsable(op, s.now()); err != nil {
		return nil, err
	}

	view := &ValidationView{Request: req}
	row, err := s.queries.GetStateReport(ctx, req.StateReportID)
	switch {
	case err == nil:
		r := toStateReport(row)
		view.Report = &r
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Warn("validation request references a missing report", "validation_id", req.ID, "state_report_id", req.StateReportID)
	default:
		return nil, domain.Internal(err, op, "Impossible de charger le constat")
	}

	view.Author, err = s.reports.User(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// PDF renders the frozen HTML with freshly resolved photos.
func (s *validationService) PDF(ctx context.Context, link string) ([]byte, error) {
	const op = "validation.pdf"

	req, err := s.lookup(ctx, op, link)
	if err != nil {
		return nil, err
	}
	if err := req.CheckViewable(op, s.now()); err != nil {
		return nil, err
	}
	return s.render(ctx, req)
}

// =============================================================================
// SubmitDecision
// =============================================================================

// SubmitDecision records the decision with a conditional update, then sends
// the emails. A client disconnect does not abort a decision once started.
func (s *validationService) SubmitDecision(ctx context.Context, link string, approved bool, comment *string) (*domain.DecisionResult, error) {
	const op = "validation.decide"
	ctx = context.WithoutCancel(ctx)

	req, err := s.lookup(ctx, op, link)
	if err != nil {
		metrics.Decision("not_found")
		return nil, err
	}
	now := s.now()
	if err := req.CheckUsable(op, now); err != nil {
		metrics.Decision(outcomeOf(req, now))
		return nil, err
	}

	status := domain.DecisionStatus(approved)
	params := repository.DecideValidationParams{
		ValidationLink: link,
		Status:         string(status),
		ValidatedAt:    sql.NullTime{Time: now, Valid: true},
	}
	if !approved && comment != nil {
		params.SupervisorComment = domain.ToNullString(*comment)
	}

	err = repository.DecideOnce(ctx, s.queries, params)
	if errors.Is(err, repository.ErrNotDecidable) {
		return nil, s.notDecidable(ctx, op, link, now)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible d'enregistrer la décision")
	}

	metrics.Decision(string(status))
	s.logger.Info("validation decided",
		"validation_id", req.ID,
		"state_report_id", req.StateReportID,
		"status", status,
	)

	req.Status = status
	req.ValidatedAt = &now
	req.SupervisorComment = domain.NullStringPtr(params.SupervisorComment)

	// Everything below runs after the decision is committed.
	stateReport := s.loadReport(ctx, req)
	author, err := s.reports.User(ctx, req.UserID)
	if err != nil {
		s.logger.Error("failed to load author", "validation_id", req.ID, "error", err)
		author = nil
	}

	if !approved {
		s.notifyAuthor(ctx, req, author, stateReport)
		return &domain.DecisionResult{Status: status, Message: domain.MsgValidationRejected}, nil
	}

	sendErr := s.deliver(ctx, req, author, stateReport)
	s.notifyAuthor(ctx, req, author, stateReport)
	if sendErr != nil {
		return nil, domain.Internal(sendErr, op, "Le constat a été validé mais n'a pas pu être envoyé aux destinataires")
	}
	return &domain.DecisionResult{Status: status, Message: domain.MsgValidationApproved}, nil
}

// deliver renders the frozen HTML and sends it to the original recipients.
func (s *validationService) deliver(ctx context.Context, req *domain.ValidationRequest, author *domain.User, stateReport *domain.StateReport) error {
	pdf, err := s.render(ctx, req)
	if err != nil {
		s.logger.Error("failed to render approved report", "validation_id", req.ID, "error", err)
		return err
	}

	err = s.notifier.SendFinalReport(ctx, email.FinalReport{
		Recipients: req.OriginalRecipients,
		Author:     author,
		Report:     stateReport,
		PDF:        pdf,
	})
	if err != nil {
		s.logger.Error("failed to send approved report", "validation_id", req.ID, "error", err)
		return err
	}

	metrics.ReportsDelivered.Inc()
	s.documents.Archive(ctx, req.StateReportID, pdf)
	return nil
}

// notifyAuthor tells the author about the decision. Failures are logged
// only; a deleted author is skipped.
func (s *validationService) notifyAuthor(ctx context.Context, req *domain.ValidationRequest, author *domain.User, stateReport *domain.StateReport) {
	if author == nil {
		s.logger.Warn("author not found, decision notification skipped", "validation_id", req.ID)
		return
	}

	n := email.ValidationDecided{
		Author:          author,
		Report:          stateReport,
		SupervisorEmail: req.SupervisorEmail,
		Comment:         req.SupervisorComment,
	}
	var err error
	if req.Status == domain.ValidationApproved {
		err = s.notifier.SendValidationApproved(ctx, n)
	} else {
		err = s.notifier.SendValidationRejected(ctx, n)
	}
	if err != nil {
		s.logger.Error("failed to notify author", "validation_id", req.ID, "user_id", author.ID, "error", err)
	}
}

// =============================================================================
// ListByReport
// =============================================================================

// ListByReport returns the validation history of a report.
func (s *validationService) ListByReport(ctx context.Context, reportID uuid.UUID, author *domain.User) ([]domain.ValidationRequest, error) {
	const op = "validation.list"

	row, err := s.queries.GetStateReport(ctx, reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, MsgReportNotFound)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger le constat")
	}
	stateReport := toStateReport(row)
	if err := authorize(op, author, &stateReport); err != nil {
		return nil, err
	}

	rows, err := s.queries.ListValidationsByReport(ctx, reportID)
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger les demandes de validation")
	}
	out := make([]domain.ValidationRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, *toValidation(r))
	}
	return out, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *validationService) lookup(ctx context.Context, op, link string) (*domain.ValidationRequest, error) {
	if link == "" {
		return nil, domain.NotFound(op, domain.MsgValidationNotFound)
	}
	row, err := s.queries.GetValidationByLink(ctx, link)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, domain.MsgValidationNotFound)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger la demande de validation")
	}
	return toValidation(row), nil
}

func (s *validationService) render(ctx context.Context, req *domain.ValidationRequest) ([]byte, error) {
	svc, err := s.reports.Service(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	return s.documents.RenderPDF(ctx, req.HTML, Letterhead(svc))
}

// loadReport returns the live report for email fields, or nil.
func (s *validationService) loadReport(ctx context.Context, req *domain.ValidationRequest) *domain.StateReport {
	row, err := s.queries.GetStateReport(ctx, req.StateReportID)
	if err != nil {
		s.logger.Warn("failed to load report for notification", "validation_id", req.ID, "error", err)
		return nil
	}
	r := toStateReport(row)
	return &r
}

// notDecidable re-reads a request the conditional update skipped, to tell
// the supervisor whether it expired or was decided meanwhile.
func (s *validationService) notDecidable(ctx context.Context, op, link string, now time.Time) error {
	req, err := s.lookup(ctx, op, link)
	if err != nil {
		metrics.Decision("not_found")
		return err
	}
	if err := req.CheckUsable(op, now); err != nil {
		metrics.Decision(outcomeOf(req, now))
		return err
	}
	metrics.Decision("already_processed")
	return domain.Gone(op, domain.MsgValidationProcessed)
}

func outcomeOf(req *domain.ValidationRequest, now time.Time) string {
	if req.IsExpired(now) {
		return "expired"
	}
	return "already_processed"
}

// newValidationToken returns 32 random bytes, hex-encoded.
func newValidationToken() (string, error) {
	b := make([]byte, domain.ValidationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate validation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
