package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/truetestify/internal/review/repository"
)

type ObjectStorageMock struct {
	mock.Mock
}

func (m *ObjectStorageMock) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, body, size, contentType)
	return args.Error(0)
}

func (m *ObjectStorageMock) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *ObjectStorageMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

var errDatabaseDown = errors.New("database down")

// brokenTxStore reads from memory but fails every transaction.
type brokenTxStore struct {
	*repository.MemoryRepository
}

func (brokenTxStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return errDatabaseDown
}
