package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/constat/internal/metrics"
	"github.com/DukeRupert/constat/internal/report"
	"github.com/DukeRupert/constat/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// attachmentConcurrency bounds parallel storage calls per render.
	attachmentConcurrency = 8

	// attachmentURLExpiry is the validity of presigned image URLs.
	attachmentURLExpiry = time.Hour

	// maxAttachmentBytes caps a single downloaded photo.
	maxAttachmentBytes = 25 << 20
)

// AttachmentResolver turns attachment ids into URLs or image bytes. A
// failure on one attachment is logged and that id is left out of the
// result; it never fails the whole resolution.
type AttachmentResolver struct {
	storage storage.Storage
	images  ImageProcessor
	logger  *slog.Logger
}

// NewAttachmentResolver creates a resolver reading from store.
func NewAttachmentResolver(store storage.Storage, images ImageProcessor, logger *slog.Logger) *AttachmentResolver {
	return &AttachmentResolver{storage: store, images: images, logger: logger}
}

// URLs returns a fresh URL for every id that can be resolved.
func (r *AttachmentResolver) URLs(ctx context.Context, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	var mu sync.Mutex

	r.each(ctx, ids, func(ctx context.Context, id string) {
		u, err := r.storage.URL(ctx, id, attachmentURLExpiry)
		if err != nil {
			metrics.AttachmentFetchFailures.WithLabelValues("url").Inc()
			r.logger.Warn("failed to resolve attachment url", "attachment_id", id, "error", err)
			return
		}
		mu.Lock()
		out[id] = u
		mu.Unlock()
	})
	return out
}

// Images downloads and downscales every id that can be read. Photos that
// cannot be decoded are kept as stored.
func (r *AttachmentResolver) Images(ctx context.Context, ids []string) map[string]report.ImageData {
	out := make(map[string]report.ImageData, len(ids))
	var mu sync.Mutex

	r.each(ctx, ids, func(ctx context.Context, id string) {
		img, err := r.fetch(ctx, id)
		if err != nil {
			metrics.AttachmentFetchFailures.WithLabelValues("image").Inc()
			r.logger.Warn("failed to fetch attachment", "attachment_id", id, "error", err)
			return
		}
		mu.Lock()
		out[id] = img
		mu.Unlock()
	})
	return out
}

func (r *AttachmentResolver) fetch(ctx context.Context, id string) (report.ImageData, error) {
	rc, info, err := r.storage.Get(ctx, id)
	if err != nil {
		return report.ImageData{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxAttachmentBytes))
	if err != nil {
		return report.ImageData{}, err
	}

	contentType := storage.DetectContentType(info.ContentType, id)
	if r.images != nil && (storage.IsImage(contentType) || contentType == "application/octet-stream") {
		prepared, err := r.images.Prepare(data, EmbeddedImageMaxSize)
		if err == nil {
			return report.ImageData{Data: prepared, ContentType: "image/jpeg"}, nil
		}
		r.logger.Debug("image not downscaled", "attachment_id", id, "error", err)
	}
	return report.ImageData{Data: data, ContentType: contentType}, nil
}

// each runs fn for every distinct id with bounded concurrency.
func (r *AttachmentResolver) each(ctx context.Context, ids []string, fn func(ctx context.Context, id string)) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(attachmentConcurrency)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			fn(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
}
