package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/billing"
	"github.com/romariotrain/truetestify/internal/review/models"
	"github.com/romariotrain/truetestify/internal/review/service"
)

type submittedReview struct {
	ID         uuid.UUID         `json:"id"`
	BusinessID uuid.UUID         `json:"businessId"`
	Type       models.ReviewType `json:"type"`
	Status     models.Status     `json:"status"`
}

type submittedAsset struct {
	ID    uuid.UUID `json:"id"`
	S3Key string    `json:"s3Key"`
}

type SubmitResponse struct {
	Review     submittedReview `json:"review"`
	MediaAsset *submittedAsset `json:"mediaAsset"`
}

type MediaRef struct {
	ID    uuid.UUID         `json:"id"`
	Type  models.ReviewType `json:"type"`
	S3Key string            `json:"s3Key"`
}

type PublicReview struct {
	ID           uuid.UUID         `json:"id"`
	Type         models.ReviewType `json:"type"`
	Title        string            `json:"title"`
	BodyText     string            `json:"bodyText"`
	Rating       int               `json:"rating"`
	ReviewerName string            `json:"reviewerName"`
	PublishedAt  *time.Time        `json:"publishedAt"`
	Media        []MediaRef        `json:"media"`
}

type PublicReviewsResponse struct {
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Reviews []PublicReview `json:"reviews"`
}

type OwnerReview struct {
	PublicReview
	Status      models.Status `json:"status"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

type OwnerReviewsResponse struct {
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Reviews []OwnerReview `json:"reviews"`
}

type SettingsDTO struct {
	TextReviewsEnabled   bool `json:"textReviewsEnabled"`
	GoogleReviewsEnabled bool `json:"googleReviewsEnabled"`
}

type BusinessResponse struct {
	ID           uuid.UUID   `json:"id"`
	Slug         string      `json:"slug"`
	Name         string      `json:"name"`
	LogoURL      string      `json:"logoUrl"`
	BrandColor   string      `json:"brandColor"`
	ContactEmail string      `json:"contactEmail"`
	Website      string      `json:"website"`
	Settings     SettingsDTO `json:"settings"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type PublicProfileResponse struct {
	Slug       string      `json:"slug"`
	Name       string      `json:"name"`
	LogoURL    string      `json:"logoUrl"`
	BrandColor string      `json:"brandColor"`
	Website    string      `json:"website"`
	Settings   SettingsDTO `json:"settings"`
}

type CreateBusinessRequest struct {
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	LogoURL      string          `json:"logoUrl"`
	BrandColor   string          `json:"brandColor"`
	ContactEmail string          `json:"contactEmail"`
	Website      string          `json:"website"`
	Settings     models.Settings `json:"settings"`
}

type UpdateBusinessRequest struct {
	Slug         *string          `json:"slug"`
	Name         *string          `json:"name"`
	LogoURL      *string          `json:"logoUrl"`
	BrandColor   *string          `json:"brandColor"`
	ContactEmail *string          `json:"contactEmail"`
	Website      *string          `json:"website"`
	Settings     *models.Settings `json:"settings"`
}

type StatusRequest struct {
	Status models.Status `json:"status"`
}

type DeleteResponse struct {
	ReviewID   uuid.UUID `json:"reviewId"`
	Cleanup    string    `json:"cleanup"`
	FailedKeys []string  `json:"failedKeys"`
}

type StatsResponse struct {
	Pending       int     `json:"pending"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	AverageRating float64 `json:"averageRating"`
}

type MediaURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

type CheckoutRequest struct {
	BusinessID  uuid.UUID    `json:"businessId"`
	PricingTier billing.Tier `json:"pricingTier"`
}

type PortalRequest struct {
	BusinessID uuid.UUID `json:"businessId"`
}

type SubscriptionResponse struct {
	BusinessID       uuid.UUID                  `json:"businessId"`
	Provider         string                     `json:"provider"`
	PricingTier      billing.Tier               `json:"pricingTier"`
	Status           billing.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd *time.Time                 `json:"currentPeriodEnd"`
	UpdatedAt        time.Time                  `json:"updatedAt"`
}

func toSubmitResponse(res *service.SubmitResult) SubmitResponse {
	out := SubmitResponse{Review: submittedReview{
		ID:         res.Review.ID,
		BusinessID: res.Review.BusinessID,
		Type:       res.Review.Type,
		Status:     res.Review.Status,
	}}
	if res.MediaAsset != nil {
		out.MediaAsset = &submittedAsset{ID: res.MediaAsset.ID, S3Key: res.MediaAsset.S3Key}
	}
	return out
}

func toPublicReview(r service.ReviewWithMedia) PublicReview {
	media := make([]MediaRef, 0, len(r.Media))
	for _, a := range r.Media {
		media = append(media, MediaRef{ID: a.ID, Type: a.AssetType, S3Key: a.S3Key})
	}
	return PublicReview{
		ID:           r.ID,
		Type:         r.Type,
		Title:        r.Title,
		BodyText:     r.BodyText,
		Rating:       r.Rating,
		ReviewerName: r.ReviewerName,
		PublishedAt:  r.PublishedAt,
		Media:        media,
	}
}

func toPublicReviews(p *service.ReviewPage) PublicReviewsResponse {
	out := PublicReviewsResponse{Total: p.Total, Page: p.Page, Limit: p.Limit, Reviews: make([]PublicReview, 0, len(p.Reviews))}
	for _, r := range p.Reviews {
		out.Reviews = append(out.Reviews, toPublicReview(r))
	}
	return out
}

func toOwnerReviews(p *service.ReviewPage) OwnerReviewsResponse {
	out := OwnerReviewsResponse{Total: p.Total, Page: p.Page, Limit: p.Limit, Reviews: make([]OwnerReview, 0, len(p.Reviews))}
	for _, r := range p.Reviews {
		out.Reviews = append(out.Reviews, OwnerReview{
			PublicReview: toPublicReview(r),
			Status:       r.Status,
			SubmittedAt:  r.SubmittedAt,
		})
	}
	return out
}

func toSettings(s models.Settings) SettingsDTO {
	return SettingsDTO{TextReviewsEnabled: s.TextReviews(), GoogleReviewsEnabled: s.GoogleReviews()}
}

func toBusinessResponse(b *models.Business) BusinessResponse {
	return BusinessResponse{
		ID:           b.ID,
		Slug:         b.Slug,
		Name:         b.Name,
		LogoURL:      b.LogoURL,
		BrandColor:   b.BrandColor,
		ContactEmail: b.ContactEmail,
		Website:      b.Website,
		Settings:     toSettings(b.Settings),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func toSubscriptionResponse(s *billing.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		BusinessID:       s.BusinessID,
		Provider:         s.Provider,
		PricingTier:      s.Tier,
		Status:           s.Status,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		UpdatedAt:        s.UpdatedAt,
	}
}
