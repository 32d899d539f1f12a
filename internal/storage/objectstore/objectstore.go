// Package objectstore uploads, links and deletes review media in an
// S3-compatible bucket or, for local development, on disk.
package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/config"
	"github.com/romariotrain/truetestify/internal/metrics"
)

type Backend interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) error
}

// New picks the backend named by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Backend, error) {
	if cfg.IsLocalStorage() {
		return NewLocalStorage(cfg.LocalStoragePath, cfg.LocalStorageBaseURL, log)
	}
	return NewS3Storage(ctx, S3Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		AccessKeyID:  cfg.S3AccessKeyID,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
	}, log)
}

func observe(backend, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStorageOperation(backend, op, status, time.Since(start).Seconds())
}
