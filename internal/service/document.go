package service

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/metrics"
	"github.com/DukeRupert/constat/internal/report"
	"github.com/DukeRupert/constat/internal/storage"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// DocumentService turns stored report HTML into PDFs.
type DocumentService interface {
	// RenderPDF resolves the photos referenced by htmlDoc and renders it
	// under letterhead. Photos that cannot be fetched are drawn as
	// placeholders.
	RenderPDF(ctx context.Context, htmlDoc string, letterhead domain.Letterhead) ([]byte, error)

	// Archive stores a delivered PDF. Failures are logged only.
	Archive(ctx context.Context, reportID uuid.UUID, pdf []byte)
}

// =============================================================================
// Implementation
// =============================================================================

type documentService struct {
	renderer    report.Renderer
	attachments *AttachmentResolver
	storage     storage.Storage
	now         func() time.Time
	logger      *slog.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(
	renderer report.Renderer,
	attachments *AttachmentResolver,
	store storage.Storage,
	logger *slog.Logger,
) DocumentService {
	return &documentService{
		renderer:    renderer,
		attachments: attachments,
		storage:     store,
		now:         time.Now,
		logger:      logger,
	}
}

// RenderPDF re-resolves attachment URLs and bytes, then renders.
func (s *documentService) RenderPDF(ctx context.Context, htmlDoc string, letterhead domain.Letterhead) ([]byte, error) {
	const op = "document.render_pdf"

	ids := report.AttachmentIDs(htmlDoc)
	// Fresh URLs let the browser engine fetch photos the download step missed.
	resolved := report.ResolveImagePlaceholders(htmlDoc, report.URLMap(s.attachments.URLs(ctx, ids)))
	images := s.attachments.Images(ctx, ids)

	start := time.Now()
	pdf, err := s.renderer.Render(ctx, resolved, letterhead, images)
	metrics.PDFRendered(s.renderer.Engine(), time.Since(start), err)
	if err != nil {
		return nil, domain.Internal(err, op, "Échec de la génération du PDF")
	}

	s.logger.Debug("pdf rendered",
		"engine", s.renderer.Engine(),
		"attachments", len(ids),
		"images", len(images),
		"bytes", len(pdf),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pdf, nil
}

// Archive stores the PDF under the report's delivered prefix.
func (s *documentService) Archive(ctx context.Context, reportID uuid.UUID, pdf []byte) {
	key := storage.DeliveredReportKey(reportID, s.now())
	err := s.storage.Put(ctx, key, bytes.NewReader(pdf), storage.PutOptions{
		ContentType: "application/pdf",
		Size:        int64(len(pdf)),
	})
	if err != nil {
		s.logger.Warn("failed to archive delivered pdf", "state_report_id", reportID, "key", key, "error", err)
		return
	}
	s.logger.Info("delivered pdf archived", "state_report_id", reportID, "key", key)
}
