package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/service"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubValidations struct {
	view     *service.ValidationView
	pdf      []byte
	result   *domain.DecisionResult
	list     []domain.ValidationRequest
	err      error
	link     string
	approved bool
	comment  *string
}

var _ service.ValidationService = (*stubValidations)(nil)

func (s *stubValidations) Create(context.Context, service.CreateValidationParams) (*domain.ValidationRequest, error) {
	panic("not used by handlers")
}

func (s *stubValidations) Get(_ context.Context, link string) (*service.ValidationView, error) {
	s.link = link
	return s.view, s.err
}

func (s *stubValidations) PDF(_ context.Context, link string) ([]byte, error) {
	s.link = link
	return s.pdf, s.err
}

func (s *stubValidations) SubmitDecision(_ context.Context, link string, approved bool, comment *string) (*domain.DecisionResult, error) {
	s.link = link
	s.approved = approved
	s.comment = comment
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubValidations) ListByReport(context.Context, uuid.UUID, *domain.User) ([]domain.ValidationRequest, error) {
	return s.list, s.err
}

type stubDelivery struct {
	created    *domain.ValidationRequest
	err        error
	reportID   uuid.UUID
	user       *domain.User
	supervisor string
	recipients []string
}

var _ service.DeliveryService = (*stubDelivery)(nil)

func (s *stubDelivery) SendReport(_ context.Context, reportID uuid.UUID, author *domain.User, recipients []string) error {
	s.reportID, s.user, s.recipients = reportID, author, recipients
	return s.err
}

func (s *stubDelivery) RequestValidation(_ context.Context, reportID uuid.UUID, author *domain.User, supervisorEmail string, recipients []string) (*domain.ValidationRequest, error) {
	s.reportID, s.user, s.supervisor, s.recipients = reportID, author, supervisorEmail, recipients
	return s.created, s.err
}
