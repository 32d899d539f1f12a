package billing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/models"
)

type Repository interface {
	GetSubscription(ctx context.Context, businessID uuid.UUID) (*Subscription, error)
	GetSubscriptionByProviderID(ctx context.Context, subscriptionID string) (*Subscription, error)
	UpsertSubscription(ctx context.Context, s *Subscription) error
	// ClaimWebhookEvent records the event and reports whether the caller
	// now owns applying it. It is false while another delivery holds the
	// claim and once the event has been processed.
	ClaimWebhookEvent(ctx context.Context, provider, eventID, eventType string) (claimed bool, err error)
	// ReleaseWebhookEvent drops a claim on an event that failed to apply
	// so a redelivery can try again.
	ReleaseWebhookEvent(ctx context.Context, provider, eventID string) error
	MarkWebhookEventProcessed(ctx context.Context, provider, eventID string) error
}

type eventState int

const (
	eventClaimed eventState = iota + 1
	eventProcessed
)

type eventKey struct {
	provider string
	id       string
}

type MemoryRepository struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]Subscription
	events map[eventKey]eventState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subs:   make(map[uuid.UUID]Subscription),
		events: make(map[eventKey]eventState),
	}
}

func (r *MemoryRepository) GetSubscription(ctx context.Context, businessID uuid.UUID) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subs[businessID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) GetSubscriptionByProviderID(ctx context.Context, subscriptionID string) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if subscriptionID != "" && s.SubscriptionID == subscriptionID {
			return &s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryRepository) UpsertSubscription(ctx context.Context, s *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.subs[s.BusinessID]; ok {
		s.CreatedAt = old.CreatedAt
	}
	r.subs[s.BusinessID] = *s
	return nil
}

func (r *MemoryRepository) ClaimWebhookEvent(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := eventKey{provider, eventID}
	if _, seen := r.events[k]; seen {
		return false, nil
	}
	r.events[k] = eventClaimed
	return true, nil
}

func (r *MemoryRepository) ReleaseWebhookEvent(ctx context.Context, provider, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := eventKey{provider, eventID}
	if r.events[k] == eventClaimed {
		delete(r.events, k)
	}
	return nil
}

func (r *MemoryRepository) MarkWebhookEventProcessed(ctx context.Context, provider, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[eventKey{provider, eventID}] = eventProcessed
	return nil
}
