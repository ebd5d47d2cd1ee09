package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/email"
	"github.com/DukeRupert/constat/internal/report"
	"github.com/DukeRupert/constat/internal/repository"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// In-memory Querier
// =============================================================================

// memQueries is a Querier backed by maps. DecideValidation is a conditional
// update under a mutex on status and expiry, matching the database statement.
type memQueries struct {
	mu          sync.Mutex
	reports     map[uuid.UUID]repository.StateReport
	sections    map[uuid.UUID][]repository.VisitedSection
	alerts      map[uuid.UUID][]repository.ReportAlert
	attachments map[uuid.UUID][]repository.ReportAttachment
	services    map[uuid.UUID]repository.Service
	users       map[uuid.UUID]repository.User
	validations map[string]repository.StateReportValidation
	decideCalls int
}

var _ repository.Querier = (*memQueries)(nil)

func newMemQueries() *memQueries {
	return &memQueries{
		reports:     make(map[uuid.UUID]repository.StateReport),
		sections:    make(map[uuid.UUID][]repository.VisitedSection),
		alerts:      make(map[uuid.UUID][]repository.ReportAlert),
		attachments: make(map[uuid.UUID][]repository.ReportAttachment),
		services:    make(map[uuid.UUID]repository.Service),
		users:       make(map[uuid.UUID]repository.User),
		validations: make(map[string]repository.StateReportValidation),
	}
}

func (q *memQueries) CreateValidation(_ context.Context, arg repository.CreateValidationParams) (repository.StateReportValidation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.validations[arg.ValidationLink]; ok {
		return repository.StateReportValidation{}, errors.New("duplicate validation_link")
	}
	row := repository.StateReportValidation{
		ID:                      arg.ID,
		StateReportID:           arg.StateReportID,
		UserID:                  arg.UserID,
		ServiceID:               arg.ServiceID,
		SupervisorEmail:         arg.SupervisorEmail,
		ValidationLink:          arg.ValidationLink,
		ValidationLinkExpiresAt: arg.ValidationLinkExpiresAt,
		Status:                  string(domain.ValidationPending),
		HtmlString:              arg.HtmlString,
		OriginalRecipients:      arg.OriginalRecipients,
		CreatedAt:               time.Now(),
	}
	q.validations[arg.ValidationLink] = row
	return row, nil
}

func (q *memQueries) DecideValidation(_ context.Context, arg repository.DecideValidationParams) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.decideCalls++
	row, ok := q.validations[arg.ValidationLink]
	if !ok || row.Status != string(domain.ValidationPending) {
		return 0, nil
	}
	if row.ValidationLinkExpiresAt.Before(arg.ValidatedAt.Time) {
		return 0, nil
	}
	row.Status = arg.Status
	row.SupervisorComment = arg.SupervisorComment
	row.ValidatedAt = arg.ValidatedAt
	q.validations[arg.ValidationLink] = row
	return 1, nil
}

func (q *memQueries) GetServiceByID(_ context.Context, id uuid.UUID) (repository.Service, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	row, ok := q.services[id]
	if !ok {
		return repository.Service{}, sql.ErrNoRows
	}
	return row, nil
}

func (q *memQueries) GetStateReport(_ context.Context, id uuid.UUID) (repository.StateReport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	row, ok := q.reports[id]
	if !ok {
		return repository.StateReport{}, sql.ErrNoRows
	}
	return row, nil
}

func (q *memQueries) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	row, ok := q.users[id]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return row, nil
}

func (q *memQueries) GetValidationByLink(_ context.Context, link string) (repository.StateReportValidation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	row, ok := q.validations[link]
	if !ok {
		return repository.StateReportValidation{}, sql.ErrNoRows
	}
	return row, nil
}

func (q *memQueries) ListAlertsByReport(_ context.Context, id uuid.UUID) ([]repository.ReportAlert, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.alerts[id], nil
}

func (q *memQueries) ListAttachmentsByReport(_ context.Context, id uuid.UUID) ([]repository.ReportAttachment, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attachments[id], nil
}

func (q *memQueries) ListValidationsByReport(_ context.Context, id uuid.UUID) ([]repository.StateReportValidation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []repository.StateReportValidation
	for _, v := range q.validations {
		if v.StateReportID == id {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *memQueries) ListVisitedSectionsByReport(_ context.Context, id uuid.UUID) ([]repository.VisitedSection, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sections[id], nil
}

func (q *memQueries) validation(link string) repository.StateReportValidation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.validations[link]
}

// =============================================================================
// Fixtures
// =============================================================================

type fixture struct {
	queries   *memQueries
	notifier  *fakeNotifier
	documents *fakeDocuments
	now       time.Time
	author    repository.User
	service   repository.Service
	report    repository.StateReport
}

func newFixture() *fixture {
	q := newMemQueries()
	svc := repository.Service{
		ID:           uuid.New(),
		Name:         "UDAP de la Gironde",
		CourrielUdap: sql.NullString{String: "udap33@culture.gouv.fr", Valid: true},
		CourrielCrmh: sql.NullString{String: "crmh@culture.gouv.fr", Valid: true},
	}
	author := repository.User{
		ID:        uuid.New(),
		Name:      "Camille Martin",
		Email:     "camille.martin@culture.gouv.fr",
		ServiceID: uuid.NullUUID{UUID: svc.ID, Valid: true},
	}
	rep := repository.StateReport{
		ID:           uuid.New(),
		TitreEdifice: sql.NullString{String: "Église Saint-Pierre", Valid: true},
		Commune:      sql.NullString{String: "Bordeaux", Valid: true},
		DateVisite:   sql.NullTime{Time: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), Valid: true},
		AttachmentID: sql.NullString{String: "reports/final.pdf", Valid: true},
		ServiceID:    uuid.NullUUID{UUID: svc.ID, Valid: true},
		CreatedBy:    author.ID,
	}
	q.services[svc.ID] = svc
	q.users[author.ID] = author
	q.reports[rep.ID] = rep

	return &fixture{
		queries:   q,
		notifier:  &fakeNotifier{},
		documents: &fakeDocuments{pdf: []byte("%PDF-1.4 test")},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		author:    author,
		service:   svc,
		report:    rep,
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) reportService() ReportService {
	return NewReportService(f.queries, testLogger())
}

func (f *fixture) validationService() ValidationService {
	return NewValidationService(f.queries, f.reportService(), f.documents, f.notifier, f.clock, testLogger())
}

func (f *fixture) authorUser() *domain.User {
	return toUser(f.author)
}

// pending inserts a pending request expiring at expiresAt and returns its
// token.
func (f *fixture) pending(expiresAt time.Time) string {
	token := uuid.NewString()
	f.queries.validations[token] = repository.StateReportValidation{
		ID:                      uuid.New(),
		StateReportID:           f.report.ID,
		UserID:                  uuid.NullUUID{UUID: f.author.ID, Valid: true},
		ServiceID:               uuid.NullUUID{UUID: f.service.ID, Valid: true},
		SupervisorEmail:         "chef@culture.gouv.fr",
		ValidationLink:          token,
		ValidationLinkExpiresAt: expiresAt,
		Status:                  string(domain.ValidationPending),
		HtmlString:              "<html><body><h1>Constat</h1></body></html>",
		OriginalRecipients:      []string{"mairie@bordeaux.fr", "proprietaire@example.com"},
		CreatedAt:               f.now.Add(-time.Hour),
	}
	return token
}

// =============================================================================
// Notifier / documents / photos
// =============================================================================

type fakeNotifier struct {
	mu         sync.Mutex
	requested  []email.ValidationRequested
	approved   []email.ValidationDecided
	rejected   []email.ValidationDecided
	finals     []email.FinalReport
	alerts     []email.AlertRaised
	requestErr error
	finalErr   error
	decidedErr error
	alertErr   error
}

var _ email.Notifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) SendValidationRequested(_ context.Context, v email.ValidationRequested) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, v)
	return n.requestErr
}

func (n *fakeNotifier) SendValidationApproved(_ context.Context, v email.ValidationDecided) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, v)
	return n.decidedErr
}

func (n *fakeNotifier) SendValidationRejected(_ context.Context, v email.ValidationDecided) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, v)
	return n.decidedErr
}

func (n *fakeNotifier) SendFinalReport(_ context.Context, v email.FinalReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finals = append(n.finals, v)
	return n.finalErr
}

func (n *fakeNotifier) SendAlert(_ context.Context, v email.AlertRaised) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, v)
	return n.alertErr
}

// recordingSender is an email.Sender that keeps messages, for tests that
// run the real Dispatcher.
type recordingSender struct {
	mu   sync.Mutex
	msgs []email.Message
}

var _ email.Sender = (*recordingSender)(nil)

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) Close() error { return nil }

func (s *recordingSender) sent() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.msgs...)
}

type fakeDocuments struct {
	mu       sync.Mutex
	pdf      []byte
	err      error
	rendered []string
	archived []uuid.UUID
}

var _ DocumentService = (*fakeDocuments)(nil)

func (d *fakeDocuments) RenderPDF(_ context.Context, htmlDoc string, _ domain.Letterhead) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rendered = append(d.rendered, htmlDoc)
	if d.err != nil {
		return nil, d.err
	}
	return d.pdf, nil
}

func (d *fakeDocuments) Archive(_ context.Context, reportID uuid.UUID, _ []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.archived = append(d.archived, reportID)
}

type fakePhotos map[string]report.ImageData

func (p fakePhotos) Images(_ context.Context, ids []string) map[string]report.ImageData {
	out := make(map[string]report.ImageData)
	for _, id := range ids {
		if img, ok := p[id]; ok {
			out[id] = img
		}
	}
	return out
}
