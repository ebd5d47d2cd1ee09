// Package service contains the business logic layer.
//
// This file loads state reports and their related records and converts them
// from repository rows to domain types.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ReportService loads reports and the records needed to render and send
// them.
type ReportService interface {
	// LoadBundle loads a report with its sections, alerts and live
	// attachments. Returns ENOTFOUND for unknown or disabled reports.
	LoadBundle(ctx context.Context, reportID uuid.UUID) (*domain.ReportBundle, error)

	// Service returns the service with the given id, or nil when id is nil
	// or the service no longer exists.
	Service(ctx context.Context, id *uuid.UUID) (*domain.Service, error)

	// User returns the user with the given id, or nil when id is nil or the
	// account has been deleted.
	User(ctx context.Context, id *uuid.UUID) (*domain.User, error)
}

// =============================================================================
// Implementation
// =============================================================================

type reportService struct {
	queries repository.Querier
	logger  *slog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(queries repository.Querier, logger *slog.Logger) ReportService {
	return &reportService{
		queries: queries,
		logger:  logger,
	}
}

// LoadBundle loads a report and everything attached to it.
func (s *reportService) LoadBundle(ctx context.Context, reportID uuid.UUID) (*domain.ReportBundle, error) {
	const op = "report.load_bundle"

	row, err := s.queries.GetStateReport(ctx, reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, MsgReportNotFound)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger le constat")
	}
	if row.Disabled {
		return nil, domain.NotFound(op, MsgReportNotFound)
	}

	sections, err := s.queries.ListVisitedSectionsByReport(ctx, reportID)
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger les parties visitées")
	}
	alerts, err := s.queries.ListAlertsByReport(ctx, reportID)
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger les alertes")
	}
	attachments, err := s.queries.ListAttachmentsByReport(ctx, reportID)
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger les pièces jointes")
	}

	domainSections := make([]domain.VisitedSection, 0, len(sections))
	for _, sec := range sections {
		domainSections = append(domainSections, toVisitedSection(sec))
	}
	domainAlerts := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		domainAlerts = append(domainAlerts, toAlert(a))
	}
	domainAttachments := make([]domain.Attachment, 0, len(attachments))
	for _, a := range attachments {
		domainAttachments = append(domainAttachments, toAttachment(a))
	}

	return domain.NewReportBundle(toStateReport(row), domainSections, domainAlerts, domainAttachments), nil
}

// Service loads a service and decodes its letterhead.
func (s *reportService) Service(ctx context.Context, id *uuid.UUID) (*domain.Service, error) {
	const op = "report.service"

	if id == nil {
		return nil, nil
	}
	row, err := s.queries.GetServiceByID(ctx, *id)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("service not found", "service_id", *id)
		return nil, nil
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger le service")
	}

	svc := toService(row)
	if row.Letterhead.Valid {
		if err := json.Unmarshal(row.Letterhead.RawMessage, &svc.Letterhead); err != nil {
			s.logger.Warn("invalid letterhead, using defaults", "service_id", row.ID, "error", err)
			svc.Letterhead = domain.Letterhead{}
		}
	}
	svc.Letterhead = svc.Letterhead.WithDefaults(svc.Name)
	return svc, nil
}

// User loads a user. Deleted accounts are not an error.
func (s *reportService) User(ctx context.Context, id *uuid.UUID) (*domain.User, error) {
	const op = "report.user"

	if id == nil {
		return nil, nil
	}
	row, err := s.queries.GetUserByID(ctx, *id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Internal(err, op, "Impossible de charger l'utilisateur")
	}
	return toUser(row), nil
}

// Letterhead returns the letterhead of svc, or the default one.
func Letterhead(svc *domain.Service) domain.Letterhead {
	if svc == nil {
		return domain.Letterhead{}.WithDefaults("")
	}
	return svc.Letterhead
}

// =============================================================================
// Row Conversion
// =============================================================================

func toStateReport(row repository.StateReport) domain.StateReport {
	return domain.StateReport{
		ID:               row.ID,
		Title:            domain.NullStringPtr(row.TitreEdifice),
		Address:          domain.NullStringPtr(row.Adresse),
		Commune:          domain.NullStringPtr(row.Commune),
		PostalCode:       domain.NullStringPtr(row.CodePostal),
		VisitDate:        domain.NullTimeValue(row.DateVisite),
		VisitNature:      domain.NullStringPtr(row.NatureVisite),
		RedactedBy:       domain.NullStringPtr(row.RedactedBy),
		OwnerName:        domain.NullStringPtr(row.Proprietaire),
		OwnerEmail:       domain.NullStringPtr(row.ProprietaireEmail),
		Contacts:         domain.NullStringPtr(row.PersonnesPresentes),
		Protection:       domain.NullStringPtr(row.NatureProtection),
		EtatGeneral:      domain.NullStringPtr(row.EtatGeneral),
		Proportion:       domain.NullStringPtr(row.ProportionDansCetEtat),
		Preconisations:   domain.NullStringPtr(row.Preconisations),
		Commentaires:     domain.NullStringPtr(row.Commentaires),
		AttachmentID:     domain.NullStringPtr(row.AttachmentID),
		PlanAttachmentID: domain.NullStringPtr(row.PlanSituation),
		ServiceID:        domain.NullUUIDValue(row.ServiceID),
		CreatedBy:        row.CreatedBy,
		Disabled:         row.Disabled,
		CreatedAt:        row.CreatedAt,
	}
}

func toVisitedSection(row repository.VisitedSection) domain.VisitedSection {
	return domain.VisitedSection{
		ID:            row.ID,
		StateReportID: row.StateReportID,
		Name:          domain.NullStringPtr(row.Section),
		EtatGeneral:   domain.NullStringPtr(row.EtatGeneral),
		Proportion:    domain.NullStringPtr(row.ProportionDansCetEtat),
		Commentaires:  domain.NullStringPtr(row.Commentaires),
	}
}

func toAlert(row repository.ReportAlert) domain.Alert {
	return domain.Alert{
		ID:               row.ID,
		StateReportID:    row.StateReportID,
		Category:         domain.AlertCategory(row.Alert),
		Nature:           domain.NullStringPtr(row.Nature),
		Commentaires:     domain.NullStringPtr(row.Commentaires),
		MandatoryEmails:  row.MandatoryEmails,
		AdditionalEmails: row.AdditionalEmails,
		ShowInReport:     row.ShowInReport,
	}
}

func toAttachment(row repository.ReportAttachment) domain.Attachment {
	return domain.Attachment{
		ID:               row.ID,
		StateReportID:    row.StateReportID,
		VisitedSectionID: domain.NullUUIDValue(row.VisitedSectionID),
		AlertID:          domain.NullUUIDValue(row.AlertID),
		Label:            domain.NullStringPtr(row.Label),
		IsDeprecated:     row.IsDeprecated,
		CreatedAt:        row.CreatedAt,
	}
}

func toService(row repository.Service) *domain.Service {
	return &domain.Service{
		ID:         row.ID,
		Name:       row.Name,
		Department: domain.NullStringValue(row.Department),
		Recipients: map[domain.ServiceKey]string{
			domain.ServiceUDAP:   domain.NullStringValue(row.CourrielUdap),
			domain.ServiceCRMH:   domain.NullStringValue(row.CourrielCrmh),
			domain.ServiceSRA:    domain.NullStringValue(row.CourrielSra),
			domain.ServiceCAOA:   domain.NullStringValue(row.CourrielCaoa),
			domain.ServiceMairie: domain.NullStringValue(row.CourrielMairie),
			domain.ServiceDDT:    domain.NullStringValue(row.CourrielDdt),
		},
	}
}

func toUser(row repository.User) *domain.User {
	return &domain.User{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		ServiceID: domain.NullUUIDValue(row.ServiceID),
		CreatedAt: row.CreatedAt,
	}
}

func toValidation(row repository.StateReportValidation) *domain.ValidationRequest {
	return &domain.ValidationRequest{
		ID:                 row.ID,
		StateReportID:      row.StateReportID,
		UserID:             domain.NullUUIDValue(row.UserID),
		ServiceID:          domain.NullUUIDValue(row.ServiceID),
		SupervisorEmail:    row.SupervisorEmail,
		Link:               row.ValidationLink,
		ExpiresAt:          row.ValidationLinkExpiresAt,
		Status:             domain.ValidationStatus(row.Status),
		SupervisorComment:  domain.NullStringPtr(row.SupervisorComment),
		ValidatedAt:        domain.NullTimeValue(row.ValidatedAt),
		HTML:               row.HtmlString,
		OriginalRecipients: row.OriginalRecipients,
		CreatedAt:          row.CreatedAt,
	}
}
