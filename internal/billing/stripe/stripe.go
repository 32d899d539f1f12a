// Package stripe is the Stripe implementation of billing.Provider.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/romariotrain/truetestify/internal/billing"
)

const (
	metaBusinessID  = "business_id"
	metaPricingTier = "pricing_tier"
)

// NewClient builds the API client once for the whole process.
func NewClient(secretKey string) *client.API {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return sc
}

type Provider struct {
	api           *client.API
	webhookSecret string
	log           zerolog.Logger
}

func NewProvider(api *client.API, webhookSecret string, log zerolog.Logger) *Provider {
	return &Provider{
		api:           api,
		webhookSecret: webhookSecret,
		log:           log.With().Str("component", "stripe").Logger(),
	}
}

func (p *Provider) Name() string { return "stripe" }

func (p *Provider) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	bizID := req.BusinessID.String()
	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripego.String(bizID),
		SuccessURL:        stripego.String(req.SuccessURL),
		CancelURL:         stripego.String(req.CancelURL),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{Price: stripego.String(req.PriceID), Quantity: stripego.Int64(1)},
		},
		SubscriptionData: &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metaBusinessID:  bizID,
				metaPricingTier: string(req.Tier),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata(metaBusinessID, bizID)
	params.AddMetadata(metaPricingTier, string(req.Tier))

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &billing.CheckoutSession{SessionID: s.ID, URL: s.URL}, nil
}

func (p *Provider) CreatePortal(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripego.BillingPortalSessionParams{
		Customer:  stripego.String(customerID),
		ReturnURL: stripego.String(returnURL),
	}
	params.Context = ctx

	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session: %w", err)
	}
	return s.URL, nil
}

func (p *Provider) ParseWebhook(payload []byte, signature string) (*billing.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return nil, nil
	}

	switch billing.EventKind(event.Type) {
	case billing.EventCheckoutCompleted:
		var s stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		return checkoutEvent(event.ID, &s), nil

	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return subscriptionEvent(event.ID, billing.EventKind(event.Type), &sub), nil
	}

	p.log.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("ignoring stripe event")
	return nil, nil
}

func checkoutEvent(id string, s *stripego.CheckoutSession) *billing.WebhookEvent {
	ev := &billing.WebhookEvent{
		ID:         id,
		Kind:       billing.EventCheckoutCompleted,
		BusinessID: parseBusinessID(s.ClientReferenceID, s.Metadata),
		Tier:       billing.Tier(s.Metadata[metaPricingTier]),
		Status:     billing.StatusActive,
	}
	if s.Customer != nil {
		ev.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		ev.SubscriptionID = s.Subscription.ID
		if ev.Tier == "" {
			ev.Tier = billing.Tier(s.Subscription.Metadata[metaPricingTier])
		}
		ev.CurrentPeriodEnd = periodEnd(s.Subscription.CurrentPeriodEnd)
	}
	return ev
}

func subscriptionEvent(id string, kind billing.EventKind, sub *stripego.Subscription) *billing.WebhookEvent {
	ev := &billing.WebhookEvent{
		ID:               id,
		Kind:             kind,
		BusinessID:       parseBusinessID("", sub.Metadata),
		SubscriptionID:   sub.ID,
		Tier:             billing.Tier(sub.Metadata[metaPricingTier]),
		Status:           mapStatus(sub.Status),
		CurrentPeriodEnd: periodEnd(sub.CurrentPeriodEnd),
	}
	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}
	return ev
}

func parseBusinessID(ref string, meta map[string]string) uuid.UUID {
	if id, err := uuid.Parse(ref); err == nil {
		return id
	}
	if id, err := uuid.Parse(meta[metaBusinessID]); err == nil {
		return id
	}
	return uuid.Nil
}

func periodEnd(unix int64) *time.Time {
	if unix <= 0 {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}

func mapStatus(s stripego.SubscriptionStatus) billing.SubscriptionStatus {
	switch s {
	case stripego.SubscriptionStatusActive, stripego.SubscriptionStatusTrialing:
		return billing.StatusActive
	case stripego.SubscriptionStatusPastDue, stripego.SubscriptionStatusUnpaid, stripego.SubscriptionStatusIncomplete:
		return billing.StatusPastDue
	case stripego.SubscriptionStatusCanceled, stripego.SubscriptionStatusIncompleteExpired:
		return billing.StatusCanceled
	}
	return billing.SubscriptionStatus(s)
}
