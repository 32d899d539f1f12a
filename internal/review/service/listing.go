package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/domain"
	"github.com/romariotrain/truetestify/internal/review/models"
)

type Page struct {
	Page  int
	Limit int
}

type ReviewWithMedia struct {
	models.Review
	Media []models.MediaAsset
}

type ReviewPage struct {
	Total   int
	Page    int
	Limit   int
	Reviews []ReviewWithMedia
}

// normalize applies the default page size and caps the limit. Values
// below 1 fall back to the defaults. Page is clamped so the offset cannot
// overflow.
func (s *Service) normalize(p Page) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = s.opts.DefaultPageSize
	}
	if p.Limit > s.opts.MaxPageSize {
		p.Limit = s.opts.MaxPageSize
	}
	if maxPage := math.MaxInt / p.Limit; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// ListPublic returns approved reviews of the business, newest published
// first, with their audio and video assets attached.
func (s *Service) ListPublic(ctx context.Context, slug string, p Page) (*ReviewPage, error) {
	biz, err := s.ResolveBusiness(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, biz.ID, models.ApprovedStatus, s.normalize(p))
}

// ListForOwner is the moderation inbox. An empty status lists everything.
func (s *Service) ListForOwner(ctx context.Context, ownerID string, businessID uuid.UUID, status models.Status, p Page) (*ReviewPage, error) {
	if status != "" && !domain.Known(status) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidArgument, status)
	}
	if _, err := s.GetBusiness(ctx, ownerID, businessID); err != nil {
		return nil, err
	}
	return s.list(ctx, businessID, status, s.normalize(p))
}

func (s *Service) list(ctx context.Context, businessID uuid.UUID, status models.Status, p Page) (*ReviewPage, error) {
	reviews, total, err := s.store.ListReviews(ctx, models.ReviewFilter{
		BusinessID: businessID,
		Status:     status,
		Limit:      p.Limit,
		Offset:     (p.Page - 1) * p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	out := &ReviewPage{Total: total, Page: p.Page, Limit: p.Limit, Reviews: make([]ReviewWithMedia, 0, len(reviews))}
	if len(reviews) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ID
	}
	assets, err := s.store.ListMediaAssets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	byReview := make(map[uuid.UUID][]models.MediaAsset, len(assets))
	for _, a := range assets {
		if !a.AssetType.HasMedia() {
			continue
		}
		byReview[a.ReviewID] = append(byReview[a.ReviewID], a)
	}

	for _, r := range reviews {
		media := byReview[r.ID]
		if media == nil {
			media = []models.MediaAsset{}
		}
		out.Reviews = append(out.Reviews, ReviewWithMedia{Review: r, Media: media})
	}
	return out, nil
}

// MediaURL signs a link to an asset of an approved review.
func (s *Service) MediaURL(ctx context.Context, slug string, assetID uuid.UUID) (string, error) {
	biz, err := s.ResolveBusiness(ctx, slug)
	if err != nil {
		return "", err
	}
	asset, err := s.store.GetMediaAsset(ctx, biz.ID, assetID)
	if err != nil {
		return "", err
	}
	review, err := s.store.GetReview(ctx, biz.ID, asset.ReviewID)
	if err != nil {
		return "", err
	}
	if review.Status != models.ApprovedStatus {
		return "", models.ErrNotFound
	}

	url, err := s.objects.PresignGet(ctx, asset.S3Key, s.opts.SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign media url: %w", err)
	}
	return url, nil
}

func (s *Service) Stats(ctx context.Context, ownerID string, businessID uuid.UUID) (*models.ReviewStats, error) {
	if _, err := s.GetBusiness(ctx, ownerID, businessID); err != nil {
		return nil, err
	}
	return s.store.ReviewStats(ctx, businessID)
}
