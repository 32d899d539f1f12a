package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/review/repository"
)

// ObjectStorage is the subset of the object store the review use cases need.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

const discardTimeout = 10 * time.Second

type Options struct {
	TranscodeTarget string
	MaxUploadBytes  int64
	SignedURLTTL    time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

func (o Options) withDefaults() Options {
	if o.TranscodeTarget == "" {
		o.TranscodeTarget = "h264-720p"
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 200 << 20
	}
	if o.SignedURLTTL <= 0 {
		o.SignedURLTTL = 15 * time.Minute
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 12
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 50
	}
	return o
}

type Service struct {
	store   repository.Store
	objects ObjectStorage
	opts    Options
	log     zerolog.Logger
	clock   func() time.Time
	idGen   func() uuid.UUID
}

func New(store repository.Store, objects ObjectStorage, opts Options, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		objects: objects,
		opts:    opts.withDefaults(),
		log:     log.With().Str("component", "review-service").Logger(),
		clock:   func() time.Time { return time.Now().UTC() },
		idGen:   uuid.New,
	}
}
