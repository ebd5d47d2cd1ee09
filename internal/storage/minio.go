package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage implements Storage on a MinIO server, for deployments that
// keep attachments on premises.
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	logger     *slog.Logger
}

// NewMinIOStorage connects to MinIO and checks that the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig, logger *slog.Logger) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ok, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.BucketName, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.BucketName)
	}

	logger.Info("initialized minio storage", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName)

	return &MinIOStorage{client: client, bucketName: cfg.BucketName, logger: logger}, nil
}

// Get retrieves the object at key. The object is stat'ed first so a missing
// key surfaces as ErrNotFound here rather than on the first Read.
func (s *MinIOStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: wrapMinIOError(err)}
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: wrapMinIOError(err)}
	}

	return obj, ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  DetectContentType(stat.ContentType, key),
		LastModified: stat.LastModified,
		ETag:         stat.ETag,
	}, nil
}

// URL returns a presigned GET URL.
func (s *MinIOStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}
	if expires <= 0 {
		expires = defaultPresignExpiry
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, expires, url.Values{})
	if err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: wrapMinIOError(err)}
	}
	return u.String(), nil
}

// Put uploads data to key.
func (s *MinIOStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	size := opts.Size
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, s.bucketName, key, data, size, minio.PutObjectOptions{
		ContentType: DetectContentType(opts.ContentType, key),
	})
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: wrapMinIOError(err)}
	}

	s.logger.Debug("stored object in minio", "key", key, "size", info.Size, "etag", info.ETag)
	return nil
}

func wrapMinIOError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
		return ErrAccessDenied
	}
	return fmt.Errorf("minio: %w", err)
}
