package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/truetestify/internal/review/models"
)

type lookupStub struct {
	biz *models.Business
}

func (l lookupStub) GetBusiness(ctx context.Context, ownerID string, businessID uuid.UUID) (*models.Business, error) {
	if businessID != l.biz.ID {
		return nil, models.ErrNotFound
	}
	if ownerID != l.biz.OwnerID {
		return nil, models.ErrForbidden
	}
	return l.biz, nil
}

type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) Name() string { return "mock" }

func (m *ProviderMock) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProviderMock) CreatePortal(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	args := m.Called(payload, signature)
	if v := args.Get(0); v != nil {
		return v.(*WebhookEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

var testBiz = &models.Business{ID: uuid.MustParse("6f1c2c1e-3b0f-4d55-9a44-0c1c4b6a2f10"), OwnerID: "owner-1", ContactEmail: "owner@example.com"}

func newTestService(p Provider) (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	catalog := NewCatalog(PriceIDs{Starter: "price_starter", Pro: "price_pro"})
	urls := URLs{Success: "https://app.example/ok", Cancel: "https://app.example/cancel", Return: "https://app.example/billing"}
	return NewService(catalog, p, repo, lookupStub{testBiz}, urls, zerolog.Nop()), repo
}

func TestPricingPlans_Ordered(t *testing.T) {
	svc, _ := newTestService(DevProvider{})

	plans := svc.PricingPlans()
	require.Len(t, plans, 3)
	assert.Equal(t, TierStarter, plans[0].Tier)
	assert.Equal(t, TierPro, plans[1].Tier)
	assert.Equal(t, TierBusiness, plans[2].Tier)
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	p := new(ProviderMock)
	svc, _ := newTestService(p)

	p.On("CreateCheckout", mock.Anything, CheckoutRequest{
		BusinessID:    testBiz.ID,
		Tier:          TierPro,
		PriceID:       "price_pro",
		CustomerEmail: "owner@example.com",
		SuccessURL:    "https://app.example/ok",
		CancelURL:     "https://app.example/cancel",
	}).Return(&CheckoutSession{SessionID: "cs_1", URL: "https://checkout.example/cs_1"}, nil).Once()

	got, err := svc.Checkout(ctx, "owner-1", testBiz.ID, TierPro)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", got.SessionID)
	p.AssertExpectations(t)
}

func TestCheckout_Errors(t *testing.T) {
	ctx := context.Background()
	p := new(ProviderMock)
	svc, _ := newTestService(p)

	_, err := svc.Checkout(ctx, "owner-1", testBiz.ID, "enterprise")
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = svc.Checkout(ctx, "intruder", testBiz.ID, TierPro)
	require.ErrorIs(t, err, models.ErrForbidden)

	// Business tier has no price configured.
	_, err = svc.Checkout(ctx, "owner-1", testBiz.ID, TierBusiness)
	require.ErrorIs(t, err, ErrUnavailable)

	p.On("CreateCheckout", mock.Anything, mock.Anything).Return(nil, errors.New("stripe down")).Once()
	_, err = svc.Checkout(ctx, "owner-1", testBiz.ID, TierStarter)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestDevWebhookActivatesPlan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(DevProvider{})

	_, err := svc.Subscription(ctx, "owner-1", testBiz.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	body := []byte(`{"businessId":"6f1c2c1e-3b0f-4d55-9a44-0c1c4b6a2f10","pricingTier":"pro"}`)
	require.NoError(t, svc.HandleWebhook(ctx, body, ""))

	sub, err := svc.Subscription(ctx, "owner-1", testBiz.ID)
	require.NoError(t, err)
	assert.Equal(t, TierPro, sub.Tier)
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, "dev", sub.Provider)

	url, err := svc.Portal(ctx, "owner-1", testBiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/billing", url)

	require.ErrorIs(t, svc.HandleWebhook(ctx, []byte(`{"businessId":"nope"}`), ""), models.ErrInvalidArgument)
}

func TestHandleWebhook_Idempotent(t *testing.T) {
	ctx := context.Background()
	p := new(ProviderMock)
	svc, repo := newTestService(p)

	checkout := &WebhookEvent{
		ID:             "evt_1",
		Kind:           EventCheckoutCompleted,
		BusinessID:     testBiz.ID,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Tier:           TierStarter,
	}
	p.On("ParseWebhook", []byte("checkout"), "sig").Return(checkout, nil).Twice()

	require.NoError(t, svc.HandleWebhook(ctx, []byte("checkout"), "sig"))

	// Change the stored state, then replay: it must not be overwritten.
	sub, err := repo.GetSubscription(ctx, testBiz.ID)
	require.NoError(t, err)
	sub.Tier = TierPro
	require.NoError(t, repo.UpsertSubscription(ctx, sub))

	require.NoError(t, svc.HandleWebhook(ctx, []byte("checkout"), "sig"))
	sub, err = repo.GetSubscription(ctx, testBiz.ID)
	require.NoError(t, err)
	assert.Equal(t, TierPro, sub.Tier)
}

func TestHandleWebhook_SkipsEventClaimedByAnotherDelivery(t *testing.T) {
	ctx := context.Background()
	p := new(ProviderMock)
	svc, repo := newTestService(p)

	claimed, err := repo.ClaimWebhookEvent(ctx, "mock", "evt_busy", string(EventCheckoutCompleted))
	require.NoError(t, err)
	require.True(t, claimed)

	p.On("ParseWebhook", []byte("busy"), "sig").Return(&WebhookEvent{
		ID:         "evt_busy",
		Kind:       EventCheckoutCompleted,
		BusinessID: testBiz.ID,
		Tier:       TierStarter,
	}, nil).Once()

	require.NoError(t, svc.HandleWebhook(ctx, []byte("busy"), "sig"))
	_, err = repo.GetSubscription(ctx, testBiz.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestHandleWebhook_FailedApplyReleasesClaim(t *testing.T) {
	ctx := context.Background()
	p := new(ProviderMock)
	svc, repo := newTestService(p)

	// No tier anywhere on the event, so applying it fails.
	p.On("ParseWebhook", []byte("broken"), "sig").Return(&WebhookEvent{
		ID:         "evt_broken",
		Kind:       EventCheckoutCompleted,
		BusinessID: testBiz.ID,
	}, nil).Once()

	err := svc.HandleWebhook(ctx, []byte("broken"), "sig")
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	claimed, err := repo.ClaimWebhookEvent(ctx, "mock", "evt_broken", string(EventCheckoutCompleted))
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryRepository_ClaimWebhookEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, err := repo.ClaimWebhookEvent(ctx, "stripe", "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	second, err := repo.ClaimWebhookEvent(ctx, "stripe", "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	require.NoError(t, repo.MarkWebhookEventProcessed(ctx, "stripe", "evt_1"))
	require.NoError(t, repo.ReleaseWebhookEvent(ctx, "stripe", "evt_1"))
	again, err := repo.ClaimWebhookEvent(ctx, "stripe", "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := repo.ClaimWebhookEvent(ctx, "dev", "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestHandleWebhook_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	p := new(ProviderMock)
	svc, repo := newTestService(p)

	p.On("ParseWebhook", []byte("1"), "s").Return(&WebhookEvent{
		ID: "evt_1", Kind: EventCheckoutCompleted, BusinessID: testBiz.ID,
		CustomerID: "cus_1", SubscriptionID: "sub_1", Tier: TierStarter,
	}, nil).Once()
	p.On("ParseWebhook", []byte("2"), "s").Return(&WebhookEvent{
		ID: "evt_2", Kind: EventSubscriptionUpdated, SubscriptionID: "sub_1",
		PriceID: "price_pro", Status: StatusPastDue,
	}, nil).Once()
	p.On("ParseWebhook", []byte("3"), "s").Return(&WebhookEvent{
		ID: "evt_3", Kind: EventSubscriptionDeleted, SubscriptionID: "sub_1",
	}, nil).Once()

	require.NoError(t, svc.HandleWebhook(ctx, []byte("1"), "s"))
	require.NoError(t, svc.HandleWebhook(ctx, []byte("2"), "s"))

	sub, err := repo.GetSubscription(ctx, testBiz.ID)
	require.NoError(t, err)
	assert.Equal(t, TierPro, sub.Tier)
	assert.Equal(t, StatusPastDue, sub.Status)

	require.NoError(t, svc.HandleWebhook(ctx, []byte("3"), "s"))
	sub, err = repo.GetSubscription(ctx, testBiz.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, sub.Status)
	assert.Equal(t, "cus_1", sub.CustomerID)
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	p := new(ProviderMock)
	svc, _ := newTestService(p)

	p.On("ParseWebhook", mock.Anything, "bad").Return(nil, ErrInvalidSignature).Once()
	require.ErrorIs(t, svc.HandleWebhook(context.Background(), []byte("{}"), "bad"), ErrInvalidSignature)
}

func TestCatalog_TierForPrice(t *testing.T) {
	c := NewCatalog(PriceIDs{Starter: "p1", Pro: "p2"})

	tier, ok := c.TierForPrice("p2")
	require.True(t, ok)
	assert.Equal(t, TierPro, tier)

	_, ok = c.TierForPrice("")
	assert.False(t, ok)
}
