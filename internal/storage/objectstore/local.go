package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var errKeyOutsideRoot = errors.New("object key escapes storage root")

// LocalStorage keeps objects under a directory. Links are either
// baseURL/key or file:// paths; ttl is ignored.
type LocalStorage struct {
	basePath string
	baseURL  string
	log      zerolog.Logger
}

func NewLocalStorage(basePath, baseURL string, log zerolog.Logger) (*LocalStorage, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, fmt.Errorf("local storage path is required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve local storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}

	logger := log.With().Str("component", "local-storage").Logger()
	logger.Info().Str("path", abs).Str("base_url", baseURL).Msg("local storage initialized")

	return &LocalStorage{
		basePath: abs,
		baseURL:  strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		log:      logger,
	}, nil
}

func (l *LocalStorage) path(key string) (string, error) {
	full := filepath.Join(l.basePath, filepath.FromSlash(key))
	if full != l.basePath && !strings.HasPrefix(full, l.basePath+string(filepath.Separator)) {
		return "", errKeyOutsideRoot
	}
	return full, nil
}

func (l *LocalStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := l.write(key, body)
	observe("local", "put", start, err)
	return err
}

func (l *LocalStorage) write(key string, body io.Reader) error {
	full, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	written, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return fmt.Errorf("write file: %w", err)
	}

	l.log.Debug().Str("key", key).Int64("bytes", written).Msg("object stored")
	return nil
}

func (l *LocalStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	full, err := l.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("stat %s: %w", key, err)
	}
	if l.baseURL != "" {
		return l.baseURL + "/" + strings.TrimPrefix(filepath.ToSlash(key), "/"), nil
	}
	return "file://" + full, nil
}

// Delete treats a missing object as already deleted.
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	full, err := l.path(key)
	if err == nil {
		err = os.Remove(full)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	}
	observe("local", "delete", start, err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (l *LocalStorage) Health(ctx context.Context) error {
	probe := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(probe)
	return nil
}
