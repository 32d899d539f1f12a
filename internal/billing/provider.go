package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/models"
)

type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreatePortal(ctx context.Context, customerID, returnURL string) (string, error)
	// ParseWebhook verifies and decodes a notification. It returns nil
	// for event types billing does not act on.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// DevProvider stands in for the payment provider in development. Checkout
// redirects straight to the success URL and the webhook accepts an
// unsigned {businessId, pricingTier} body that activates the plan.
type DevProvider struct{}

func (DevProvider) Name() string { return "dev" }

func (DevProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	id := "dev_cs_" + uuid.NewString()
	return &CheckoutSession{SessionID: id, URL: req.SuccessURL + "?session_id=" + id}, nil
}

func (DevProvider) CreatePortal(ctx context.Context, customerID, returnURL string) (string, error) {
	return returnURL, nil
}

func (DevProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var body struct {
		EventID     string `json:"eventId"`
		BusinessID  string `json:"businessId"`
		PricingTier Tier   `json:"pricingTier"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body", models.ErrInvalidArgument)
	}
	bizID, err := uuid.Parse(body.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("%w: businessId must be a uuid", models.ErrInvalidArgument)
	}
	if body.EventID == "" {
		body.EventID = "dev_evt_" + uuid.NewString()
	}

	return &WebhookEvent{
		ID:         body.EventID,
		Kind:       EventCheckoutCompleted,
		BusinessID: bizID,
		CustomerID: "dev_cus_" + bizID.String(),
		Tier:       body.PricingTier,
		Status:     StatusActive,
	}, nil
}
