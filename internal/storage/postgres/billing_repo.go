package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/truetestify/internal/billing"
)

const subscriptionColumns = `business_id, provider, customer_id, subscription_id, pricing_tier, status, current_period_end, created_at, updated_at`

type BillingRepo struct {
	db *sqlx.DB
}

var _ billing.Repository = (*BillingRepo)(nil)

const webhookClaimLease = 5 * time.Minute

func NewBillingRepo(db *sqlx.DB) *BillingRepo {
	return &BillingRepo{db: db}
}

func (r *BillingRepo) GetSubscription(ctx context.Context, businessID uuid.UUID) (*billing.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE business_id = $1`

	var s billing.Subscription
	if err := r.db.GetContext(ctx, &s, q, businessID); err != nil {
		return nil, mapError("subscription get", err)
	}
	return &s, nil
}

func (r *BillingRepo) GetSubscriptionByProviderID(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE subscription_id = $1 AND subscription_id <> ''`

	var s billing.Subscription
	if err := r.db.GetContext(ctx, &s, q, subscriptionID); err != nil {
		return nil, mapError("subscription get by provider id", err)
	}
	return &s, nil
}

func (r *BillingRepo) UpsertSubscription(ctx context.Context, s *billing.Subscription) error {
	const q = `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (business_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			customer_id = EXCLUDED.customer_id,
			subscription_id = EXCLUDED.subscription_id,
			pricing_tier = EXCLUDED.pricing_tier,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, q,
		s.BusinessID, s.Provider, s.CustomerID, s.SubscriptionID, s.Tier,
		s.Status, s.CurrentPeriodEnd, s.CreatedAt, s.UpdatedAt,
	)
	return mapError("subscription upsert", err)
}

// ClaimWebhookEvent takes the event row in one statement. A claim older
// than webhookClaimLease is treated as abandoned.
func (r *BillingRepo) ClaimWebhookEvent(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	const q = `
		INSERT INTO billing_webhook_events (provider, event_id, event_type, claimed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider, event_id) DO UPDATE SET claimed_at = NOW()
		WHERE billing_webhook_events.processed_at IS NULL
		  AND (billing_webhook_events.claimed_at IS NULL
		       OR billing_webhook_events.claimed_at < NOW() - make_interval(secs => $4))
		RETURNING event_id
	`
	var id string
	err := r.db.GetContext(ctx, &id, q, provider, eventID, eventType, webhookClaimLease.Seconds())
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("webhook event claim: %w", err)
	}
	return true, nil
}

func (r *BillingRepo) ReleaseWebhookEvent(ctx context.Context, provider, eventID string) error {
	const q = `
		UPDATE billing_webhook_events SET claimed_at = NULL
		WHERE provider = $1 AND event_id = $2 AND processed_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, q, provider, eventID); err != nil {
		return fmt.Errorf("webhook event release: %w", err)
	}
	return nil
}

func (r *BillingRepo) MarkWebhookEventProcessed(ctx context.Context, provider, eventID string) error {
	const q = `UPDATE billing_webhook_events SET processed_at = NOW() WHERE provider = $1 AND event_id = $2`

	if _, err := r.db.ExecContext(ctx, q, provider, eventID); err != nil {
		return fmt.Errorf("webhook event mark processed: %w", err)
	}
	return nil
}
