package repository

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	CreateValidation(ctx context.Context, arg CreateValidationParams) (StateReportValidation, error)
	DecideValidation(ctx context.Context, arg DecideValidationParams) (int64, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (Service, error)
	GetStateReport(ctx context.Context, id uuid.UUID) (StateReport, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetValidationByLink(ctx context.Context, validationLink string) (StateReportValidation, error)
	ListAlertsByReport(ctx context.Context, stateReportID uuid.UUID) ([]ReportAlert, error)
	ListAttachmentsByReport(ctx context.Context, stateReportID uuid.UUID) ([]ReportAttachment, error)
	ListValidationsByReport(ctx context.Context, stateReportID uuid.UUID) ([]StateReportValidation, error)
	ListVisitedSectionsByReport(ctx context.Context, stateReportID uuid.UUID) ([]VisitedSection, error)
}

var _ Querier = (*Queries)(nil)
