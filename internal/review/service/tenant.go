package service

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/models"
)

var brandColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type BusinessInput struct {
	Slug         string
	Name         string
	LogoURL      string
	BrandColor   string
	ContactEmail string
	Website      string
	Settings     models.Settings
}

// BusinessPatch carries optional updates. Nil fields are left untouched.
type BusinessPatch struct {
	Slug         *string
	Name         *string
	LogoURL      *string
	BrandColor   *string
	ContactEmail *string
	Website      *string
	Settings     *models.Settings
}

// PublicProfile is what an anonymous visitor may see about a business.
type PublicProfile struct {
	Slug                 string
	Name                 string
	LogoURL              string
	BrandColor           string
	Website              string
	TextReviewsEnabled   bool
	GoogleReviewsEnabled bool
}

func (s *Service) ResolveBusiness(ctx context.Context, slug string) (*models.Business, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, models.ErrNotFound
	}
	return s.store.GetBusinessBySlug(ctx, slug)
}

func (s *Service) PublicProfile(ctx context.Context, slug string) (*PublicProfile, error) {
	b, err := s.ResolveBusiness(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{
		Slug:                 b.Slug,
		Name:                 b.Name,
		LogoURL:              b.LogoURL,
		BrandColor:           b.BrandColor,
		Website:              b.Website,
		TextReviewsEnabled:   b.Settings.TextReviews(),
		GoogleReviewsEnabled: b.Settings.GoogleReviews(),
	}, nil
}

func (s *Service) CreateBusiness(ctx context.Context, ownerID string, in BusinessInput) (*models.Business, error) {
	if ownerID == "" {
		return nil, models.ErrForbidden
	}
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.Name = strings.TrimSpace(in.Name)
	if !models.ValidSlug(in.Slug) {
		return nil, fmt.Errorf("%w: slug must be 3-64 lowercase letters, digits or dashes", models.ErrInvalidArgument)
	}

	now := s.clock()
	b := &models.Business{
		ID:           s.idGen(),
		OwnerID:      ownerID,
		Slug:         in.Slug,
		Name:         in.Name,
		LogoURL:      strings.TrimSpace(in.LogoURL),
		BrandColor:   strings.TrimSpace(in.BrandColor),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		Website:      strings.TrimSpace(in.Website),
		Settings:     in.Settings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := validateBusiness(b); err != nil {
		return nil, err
	}

	if err := s.store.CreateBusiness(ctx, b); err != nil {
		return nil, err
	}
	s.log.Info().Str("business_id", b.ID.String()).Str("slug", b.Slug).Msg("business created")
	return b, nil
}

// GetBusiness returns the business when ownerID owns it.
func (s *Service) GetBusiness(ctx context.Context, ownerID string, businessID uuid.UUID) (*models.Business, error) {
	if businessID == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	b, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}
	return b, nil
}

func (s *Service) UpdateBusiness(ctx context.Context, ownerID string, businessID uuid.UUID, p BusinessPatch) (*models.Business, error) {
	b, err := s.GetBusiness(ctx, ownerID, businessID)
	if err != nil {
		return nil, err
	}

	if p.Slug != nil && strings.TrimSpace(*p.Slug) != b.Slug {
		return nil, fmt.Errorf("%w: slug cannot be changed", models.ErrInvalidArgument)
	}
	if p.Name != nil {
		b.Name = strings.TrimSpace(*p.Name)
	}
	if p.LogoURL != nil {
		b.LogoURL = strings.TrimSpace(*p.LogoURL)
	}
	if p.BrandColor != nil {
		b.BrandColor = strings.TrimSpace(*p.BrandColor)
	}
	if p.ContactEmail != nil {
		b.ContactEmail = strings.TrimSpace(*p.ContactEmail)
	}
	if p.Website != nil {
		b.Website = strings.TrimSpace(*p.Website)
	}
	if p.Settings != nil {
		b.Settings = b.Settings.Merge(*p.Settings)
	}
	if err := validateBusiness(b); err != nil {
		return nil, err
	}

	b.UpdatedAt = s.clock()
	if err := s.store.UpdateBusiness(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func validateBusiness(b *models.Business) error {
	if b.Name == "" || len([]rune(b.Name)) > 200 {
		return fmt.Errorf("%w: name must be 1-200 characters", models.ErrInvalidArgument)
	}
	if b.BrandColor != "" && !brandColorPattern.MatchString(b.BrandColor) {
		return fmt.Errorf("%w: brand color must be a hex color", models.ErrInvalidArgument)
	}
	if b.ContactEmail != "" {
		if _, err := mail.ParseAddress(b.ContactEmail); err != nil {
			return fmt.Errorf("%w: contact email is invalid", models.ErrInvalidArgument)
		}
	}
	return nil
}
