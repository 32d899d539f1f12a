package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable means the payment provider cannot serve the request,
	// for example a tier without a configured price.
	ErrUnavailable      = errors.New("billing unavailable")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type Tier string

const (
	TierStarter  Tier = "starter"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

type Plan struct {
	Tier              Tier     `json:"id"`
	Name              string   `json:"name"`
	MonthlyPriceCents int64    `json:"monthlyPriceCents"`
	Currency          string   `json:"currency"`
	Features          []string `json:"features"`
	PriceID           string   `json:"-"`
}

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

type Subscription struct {
	BusinessID       uuid.UUID          `db:"business_id"`
	Provider         string             `db:"provider"`
	CustomerID       string             `db:"customer_id"`
	SubscriptionID   string             `db:"subscription_id"`
	Tier             Tier               `db:"pricing_tier"`
	Status           SubscriptionStatus `db:"status"`
	CurrentPeriodEnd *time.Time         `db:"current_period_end"`
	CreatedAt        time.Time          `db:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at"`
}

type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout.session.completed"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
)

// WebhookEvent is a provider notification reduced to the fields billing
// acts on. Unset fields were absent from the notification.
type WebhookEvent struct {
	ID               string
	Kind             EventKind
	BusinessID       uuid.UUID
	CustomerID       string
	SubscriptionID   string
	Tier             Tier
	PriceID          string
	Status           SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

type CheckoutRequest struct {
	BusinessID    uuid.UUID
	Tier          Tier
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}
