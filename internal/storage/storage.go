// Package storage provides access to the object storage holding report
// attachments.
//
// Photos are uploaded by the sync engine; this service reads them to embed
// in PDFs and emails, presigns URLs for them, and archives the PDFs it sends.
// Implementations:
// - LocalStorage: File system storage for development
// - R2Storage: Cloudflare R2 through the S3 API
// - MinIOStorage: self-hosted MinIO
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the object storage operations used by the service.
// Keys are the attachment identifiers stored in report_attachment.id.
type Storage interface {
	// Get retrieves the object at key. The caller must close the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// URL returns a URL for the object, presigned for expires when the
	// provider supports it.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Put stores data at key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is detected from the key extension when empty.
	ContentType string
	// Size of the data in bytes, or 0 when unknown.
	Size int64
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
	ProviderMinIO = "minio"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	Local    LocalConfig
	R2       R2Config
	MinIO    MinIOConfig
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string // "auto" when empty
}

// MinIOConfig holds configuration for a MinIO server.
type MinIOConfig struct {
	Endpoint        string // host:port, no scheme
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	Region          string
}

// New builds the Storage selected by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	case ProviderMinIO:
		return NewMinIOStorage(ctx, cfg.MinIO, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// =============================================================================
// Key Generation Helpers
// =============================================================================

// DeliveredReportKey is where the PDF sent to recipients is archived.
// Format: state-reports/{reportID}/delivered/{timestamp}.pdf
func DeliveredReportKey(reportID uuid.UUID, sentAt time.Time) string {
	return fmt.Sprintf("state-reports/%s/delivered/%s.pdf", reportID, sentAt.UTC().Format("20060102T150405Z"))
}
