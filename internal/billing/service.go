// Package billing sells subscription plans to businesses through a
// payment provider and keeps the resulting subscription state.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/metrics"
	"github.com/romariotrain/truetestify/internal/review/models"
)

// BusinessLookup resolves a business on behalf of its owner.
type BusinessLookup interface {
	GetBusiness(ctx context.Context, ownerID string, businessID uuid.UUID) (*models.Business, error)
}

type URLs struct {
	Success string
	Cancel  string
	Return  string
}

type Service struct {
	catalog    *Catalog
	provider   Provider
	repo       Repository
	businesses BusinessLookup
	urls       URLs
	log        zerolog.Logger
	clock      func() time.Time
}

func NewService(catalog *Catalog, provider Provider, repo Repository, businesses BusinessLookup, urls URLs, log zerolog.Logger) *Service {
	return &Service{
		catalog:    catalog,
		provider:   provider,
		repo:       repo,
		businesses: businesses,
		urls:       urls,
		log:        log.With().Str("component", "billing").Str("provider", provider.Name()).Logger(),
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) PricingPlans() []Plan {
	return s.catalog.Plans()
}

func (s *Service) Checkout(ctx context.Context, ownerID string, businessID uuid.UUID, tier Tier) (*CheckoutSession, error) {
	plan, ok := s.catalog.Plan(tier)
	if !ok {
		return nil, fmt.Errorf("%w: unknown pricing tier %q", models.ErrInvalidArgument, tier)
	}
	biz, err := s.businesses.GetBusiness(ctx, ownerID, businessID)
	if err != nil {
		return nil, err
	}
	if _, dev := s.provider.(DevProvider); !dev && plan.PriceID == "" {
		return nil, fmt.Errorf("%w: no price configured for tier %s", ErrUnavailable, tier)
	}

	session, err := s.provider.CreateCheckout(ctx, CheckoutRequest{
		BusinessID:    biz.ID,
		Tier:          tier,
		PriceID:       plan.PriceID,
		CustomerEmail: biz.ContactEmail,
		SuccessURL:    s.urls.Success,
		CancelURL:     s.urls.Cancel,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout: %v", ErrUnavailable, err)
	}

	s.log.Info().Str("business_id", biz.ID.String()).Str("tier", string(tier)).Msg("checkout session created")
	return session, nil
}

func (s *Service) Portal(ctx context.Context, ownerID string, businessID uuid.UUID) (string, error) {
	sub, err := s.Subscription(ctx, ownerID, businessID)
	if err != nil {
		return "", err
	}
	if sub.CustomerID == "" {
		return "", models.ErrNotFound
	}
	url, err := s.provider.CreatePortal(ctx, sub.CustomerID, s.urls.Return)
	if err != nil {
		return "", fmt.Errorf("%w: create portal: %v", ErrUnavailable, err)
	}
	return url, nil
}

func (s *Service) Subscription(ctx context.Context, ownerID string, businessID uuid.UUID) (*Subscription, error) {
	if _, err := s.businesses.GetBusiness(ctx, ownerID, businessID); err != nil {
		return nil, err
	}
	return s.repo.GetSubscription(ctx, businessID)
}

// HandleWebhook applies a provider notification. Events already processed,
// or being processed by a concurrent delivery, are acknowledged without
// being applied again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		metrics.RecordWebhook("unknown", "rejected")
		return err
	}
	if ev == nil {
		metrics.RecordWebhook("unknown", "ignored")
		return nil
	}

	kind := string(ev.Kind)
	provider := s.provider.Name()
	claimed, err := s.repo.ClaimWebhookEvent(ctx, provider, ev.ID, kind)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if !claimed {
		metrics.RecordWebhook(kind, "duplicate")
		s.log.Info().Str("event_id", ev.ID).Msg("webhook event already processed or in flight")
		return nil
	}

	if err := s.apply(ctx, ev); err != nil {
		metrics.RecordWebhook(kind, "error")
		if relErr := s.repo.ReleaseWebhookEvent(ctx, provider, ev.ID); relErr != nil {
			s.log.Error().Err(relErr).Str("event_id", ev.ID).Msg("failed to release webhook event")
		}
		return err
	}
	if err := s.repo.MarkWebhookEventProcessed(ctx, provider, ev.ID); err != nil {
		return fmt.Errorf("mark webhook event: %w", err)
	}

	metrics.RecordWebhook(kind, "applied")
	s.log.Info().Str("event_id", ev.ID).Str("type", kind).Msg("webhook event applied")
	return nil
}

func (s *Service) apply(ctx context.Context, ev *WebhookEvent) error {
	now := s.clock()

	switch ev.Kind {
	case EventCheckoutCompleted:
		if ev.BusinessID == uuid.Nil {
			return fmt.Errorf("%w: checkout event without business id", models.ErrInvalidArgument)
		}
		tier := s.resolveTier(ev)
		if tier == "" {
			return fmt.Errorf("%w: checkout event without pricing tier", models.ErrInvalidArgument)
		}
		return s.repo.UpsertSubscription(ctx, &Subscription{
			BusinessID:       ev.BusinessID,
			Provider:         s.provider.Name(),
			CustomerID:       ev.CustomerID,
			SubscriptionID:   ev.SubscriptionID,
			Tier:             tier,
			Status:           StatusActive,
			CurrentPeriodEnd: ev.CurrentPeriodEnd,
			CreatedAt:        now,
			UpdatedAt:        now,
		})

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		sub, err := s.findSubscription(ctx, ev)
		if errors.Is(err, models.ErrNotFound) {
			// Checkout has not landed yet; the provider will send the
			// subscription state again.
			s.log.Warn().Str("event_id", ev.ID).Str("subscription_id", ev.SubscriptionID).Msg("webhook for unknown subscription")
			return nil
		}
		if err != nil {
			return err
		}

		if tier := s.resolveTier(ev); tier != "" {
			sub.Tier = tier
		}
		if ev.Status != "" {
			sub.Status = ev.Status
		}
		if ev.Kind == EventSubscriptionDeleted {
			sub.Status = StatusCanceled
		}
		if ev.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = ev.CurrentPeriodEnd
		}
		if ev.CustomerID != "" {
			sub.CustomerID = ev.CustomerID
		}
		sub.UpdatedAt = now
		return s.repo.UpsertSubscription(ctx, sub)
	}
	return nil
}

func (s *Service) findSubscription(ctx context.Context, ev *WebhookEvent) (*Subscription, error) {
	if ev.BusinessID != uuid.Nil {
		sub, err := s.repo.GetSubscription(ctx, ev.BusinessID)
		if err == nil || !errors.Is(err, models.ErrNotFound) {
			return sub, err
		}
	}
	return s.repo.GetSubscriptionByProviderID(ctx, ev.SubscriptionID)
}

func (s *Service) resolveTier(ev *WebhookEvent) Tier {
	if _, ok := s.catalog.Plan(ev.Tier); ok {
		return ev.Tier
	}
	if t, ok := s.catalog.TierForPrice(ev.PriceID); ok {
		return t
	}
	return ""
}
