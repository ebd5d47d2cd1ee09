package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/email"
	"github.com/DukeRupert/constat/internal/metrics"
	"github.com/DukeRupert/constat/internal/report"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// DeliveryService is the author side of report delivery: sending a
// finalized report directly or through a supervisor, and raising the
// alerts it contains.
type DeliveryService interface {
	// SendReport renders the report and emails it to recipients now.
	SendReport(ctx context.Context, reportID uuid.UUID, author *domain.User, recipients []string) error

	// RequestValidation asks supervisorEmail to approve the report before
	// it is sent to recipients.
	RequestValidation(ctx context.Context, reportID uuid.UUID, author *domain.User, supervisorEmail string, recipients []string) (*domain.ValidationRequest, error)
}

// PhotoSource downloads attachment bytes keyed by attachment id.
type PhotoSource interface {
	Images(ctx context.Context, ids []string) map[string]report.ImageData
}

var _ PhotoSource = (*AttachmentResolver)(nil)

// =============================================================================
// Implementation
// =============================================================================

type deliveryService struct {
	reports     ReportService
	documents   DocumentService
	validations ValidationService
	photos      PhotoSource
	notifier    email.Notifier
	logger      *slog.Logger
}

// NewDeliveryService creates a DeliveryService.
func NewDeliveryService(
	reports ReportService,
	documents DocumentService,
	validations ValidationService,
	photos PhotoSource,
	notifier email.Notifier,
	logger *slog.Logger,
) DeliveryService {
	return &deliveryService{
		reports:     reports,
		documents:   documents,
		validations: validations,
		photos:      photos,
		notifier:    notifier,
		logger:      logger,
	}
}

// SendReport delivers a finalized report without validation.
func (s *deliveryService) SendReport(ctx context.Context, reportID uuid.UUID, author *domain.User, recipients []string) error {
	const op = "delivery.send_report"

	bundle, svc, err := s.load(ctx, op, reportID, author)
	if err != nil {
		return err
	}
	to, err := parseRecipients(recipients)
	if err != nil {
		return domain.Invalid(op, err.Error())
	}

	htmlDoc, err := report.RenderReportHTML(bundle)
	if err != nil {
		return domain.Internal(err, op, "Échec de la génération du constat")
	}
	pdf, err := s.documents.RenderPDF(ctx, htmlDoc, Letterhead(svc))
	if err != nil {
		return err
	}

	err = s.notifier.SendFinalReport(ctx, email.FinalReport{
		Recipients: to,
		Author:     author,
		Report:     &bundle.Report,
		PDF:        pdf,
	})
	if err != nil {
		s.logger.Error("failed to send report", "error", err, "op", op, "state_report_id", reportID)
		return domain.Internal(err, op, "Le constat n'a pas pu être envoyé")
	}
	metrics.ReportsDelivered.Inc()
	s.documents.Archive(ctx, reportID, pdf)

	s.logger.Info("report delivered",
		"state_report_id", reportID,
		"user_id", author.ID,
		"recipients", len(to),
	)

	if err := s.sendAlerts(ctx, bundle, svc, author); err != nil {
		return domain.Internal(err, op, "Le constat a été envoyé mais certaines alertes n'ont pas pu l'être")
	}
	return nil
}

// RequestValidation creates a validation request and raises the alerts.
func (s *deliveryService) RequestValidation(ctx context.Context, reportID uuid.UUID, author *domain.User, supervisorEmail string, recipients []string) (*domain.ValidationRequest, error) {
	const op = "delivery.request_validation"

	bundle, svc, err := s.load(ctx, op, reportID, author)
	if err != nil {
		return nil, err
	}

	req, err := s.validations.Create(ctx, CreateValidationParams{
		Bundle:          bundle,
		Author:          author,
		Service:         svc,
		SupervisorEmail: supervisorEmail,
		Recipients:      recipients,
	})
	if err != nil {
		return req, err
	}

	if err := s.sendAlerts(ctx, bundle, svc, author); err != nil {
		return req, domain.Internal(err, op, "La demande a été envoyée mais certaines alertes n'ont pas pu l'être")
	}
	return req, nil
}

// load fetches an authorized, finalized report and its service.
func (s *deliveryService) load(ctx context.Context, op string, reportID uuid.UUID, author *domain.User) (*domain.ReportBundle, *domain.Service, error) {
	if author == nil {
		return nil, nil, domain.Unauthorized(op, MsgAuthorRequired)
	}
	bundle, err := s.reports.LoadBundle(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(op, author, &bundle.Report); err != nil {
		return nil, nil, err
	}
	if !bundle.Report.IsFinalized() {
		return nil, nil, domain.Invalid(op, MsgReportNotFinalized)
	}

	serviceID := bundle.Report.ServiceID
	if serviceID == nil {
		serviceID = author.ServiceID
	}
	svc, err := s.reports.Service(ctx, serviceID)
	if err != nil {
		return nil, nil, err
	}
	return bundle, svc, nil
}

// =============================================================================
// Alerts
// =============================================================================

// sendAlerts emails each alert to the services its category maps to.
// Every alert is attempted; the failures are joined.
func (s *deliveryService) sendAlerts(ctx context.Context, bundle *domain.ReportBundle, svc *domain.Service, author *domain.User) error {
	var errs []error
	for i := range bundle.Alerts {
		alert := &bundle.Alerts[i]

		recipients := domain.AlertRecipients(alert, svc)
		if len(recipients) == 0 {
			s.logger.Warn("alert has no recipients, skipped",
				"alert_id", alert.ID,
				"category", alert.Category,
			)
			continue
		}

		err := s.notifier.SendAlert(ctx, email.AlertRaised{
			Recipients: recipients,
			Author:     author,
			Report:     &bundle.Report,
			Alert:      alert,
			Photos:     s.alertPhotos(ctx, alert),
		})
		if err != nil {
			s.logger.Error("failed to send alert", "error", err, "alert_id", alert.ID)
			errs = append(errs, fmt.Errorf("alert %s: %w", alert.ID, err))
		}
	}
	return errors.Join(errs...)
}

// alertPhotos downloads the photos of an alert. Photos that cannot be read
// are omitted.
func (s *deliveryService) alertPhotos(ctx context.Context, alert *domain.Alert) []email.Photo {
	if len(alert.Attachments) == 0 {
		return nil
	}
	ids := make([]string, len(alert.Attachments))
	for i, a := range alert.Attachments {
		ids[i] = a.ID
	}
	images := s.photos.Images(ctx, ids)

	var photos []email.Photo
	for _, a := range alert.Attachments {
		img, ok := images[a.ID]
		if !ok {
			continue
		}
		photos = append(photos, email.Photo{
			AttachmentID: a.ID,
			Caption:      domain.StringValue(a.Label),
			ContentType:  img.ContentType,
			Data:         img.Data,
		})
	}
	return photos
}
