package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/models"
)

type BusinessRepository interface {
	CreateBusiness(ctx context.Context, b *models.Business) error
	GetBusinessByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	GetBusinessBySlug(ctx context.Context, slug string) (*models.Business, error)
	UpdateBusiness(ctx context.Context, b *models.Business) error
}

type ReviewReader interface {
	GetReview(ctx context.Context, businessID, reviewID uuid.UUID) (*models.Review, error)
	// ListReviews returns one page plus the total count for the filter.
	// Approved-only listings are ordered by published_at desc, the rest by
	// submitted_at desc.
	ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error)
	ListMediaAssets(ctx context.Context, reviewIDs []uuid.UUID) ([]models.MediaAsset, error)
	GetMediaAsset(ctx context.Context, businessID, assetID uuid.UUID) (*models.MediaAsset, error)
	ReviewStats(ctx context.Context, businessID uuid.UUID) (*models.ReviewStats, error)
}

// Tx groups the writes of one use case. Everything done through a Tx is
// committed or discarded together.
type Tx interface {
	CreateReview(ctx context.Context, r *models.Review) error
	CreateConsentLog(ctx context.Context, c *models.ConsentLog) error
	CreateMediaAsset(ctx context.Context, a *models.MediaAsset) error
	CreateTranscodeJob(ctx context.Context, j *models.TranscodeJob) error
	UpdateReviewStatus(ctx context.Context, id uuid.UUID, status models.Status, publishedAt *time.Time) (*models.Review, error)
	// DeleteReview removes the review and its media asset rows.
	DeleteReview(ctx context.Context, id uuid.UUID) error
	AddOutbox(ctx context.Context, event models.DomainEvent) error
}

type ReviewRepository interface {
	ReviewReader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Store interface {
	BusinessRepository
	ReviewRepository
}
