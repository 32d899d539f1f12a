package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/truetestify/internal/review/models"
)

// OutboxEntry is what the in-memory store keeps for each added event.
type OutboxEntry struct {
	EventID     uuid.UUID
	EventType   string
	AggregateID uuid.UUID
	Payload     json.RawMessage
	OccurredAt  time.Time
}

type memState struct {
	businesses map[uuid.UUID]models.Business
	reviews    map[uuid.UUID]models.Review
	assets     map[uuid.UUID]models.MediaAsset
	jobs       map[uuid.UUID]models.TranscodeJob
	consents   []models.ConsentLog
	outbox     []OutboxEntry
}

func (s *memState) clone() *memState {
	cp := &memState{
		businesses: make(map[uuid.UUID]models.Business, len(s.businesses)),
		reviews:    make(map[uuid.UUID]models.Review, len(s.reviews)),
		assets:     make(map[uuid.UUID]models.MediaAsset, len(s.assets)),
		jobs:       make(map[uuid.UUID]models.TranscodeJob, len(s.jobs)),
		consents:   append([]models.ConsentLog(nil), s.consents...),
		outbox:     append([]OutboxEntry(nil), s.outbox...),
	}
	for k, v := range s.businesses {
		cp.businesses[k] = v
	}
	for k, v := range s.reviews {
		cp.reviews[k] = v
	}
	for k, v := range s.assets {
		cp.assets[k] = v
	}
	for k, v := range s.jobs {
		cp.jobs[k] = v
	}
	return cp
}

// MemoryRepository is a Store kept in process memory. Transactions run
// against a copy of the state that replaces the original on success.
type MemoryRepository struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: &memState{
			businesses: make(map[uuid.UUID]models.Business),
			reviews:    make(map[uuid.UUID]models.Review),
			assets:     make(map[uuid.UUID]models.MediaAsset),
			jobs:       make(map[uuid.UUID]models.TranscodeJob),
		},
	}
}

func (r *MemoryRepository) CreateBusiness(ctx context.Context, b *models.Business) error {
	if b == nil || b.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.state.businesses[b.ID]; exists {
		return models.ErrConflict
	}
	for _, existing := range r.state.businesses {
		if existing.Slug == b.Slug {
			return models.ErrConflict
		}
	}
	r.state.businesses[b.ID] = *b
	return nil
}

func (r *MemoryRepository) GetBusinessByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.state.businesses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

func (r *MemoryRepository) GetBusinessBySlug(ctx context.Context, slug string) (*models.Business, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.state.businesses {
		if b.Slug == slug {
			cp := b
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryRepository) UpdateBusiness(ctx context.Context, b *models.Business) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.businesses[b.ID]; !ok {
		return models.ErrNotFound
	}
	r.state.businesses[b.ID] = *b
	return nil
}

func (r *MemoryRepository) GetReview(ctx context.Context, businessID, reviewID uuid.UUID) (*models.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rev, ok := r.state.reviews[reviewID]
	if !ok || rev.BusinessID != businessID {
		return nil, models.ErrNotFound
	}
	return &rev, nil
}

func (r *MemoryRepository) ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	matched := make([]models.Review, 0)
	for _, rev := range r.state.reviews {
		if rev.BusinessID != f.BusinessID {
			continue
		}
		if f.Status != "" && rev.Status != f.Status {
			continue
		}
		matched = append(matched, rev)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		ta, tb := a.SubmittedAt, b.SubmittedAt
		if f.Status == models.ApprovedStatus {
			ta, tb = publishedOrZero(a), publishedOrZero(b)
		}
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.ID.String() < b.ID.String()
	})

	total := len(matched)
	if f.Offset < 0 || f.Offset >= total {
		return []models.Review{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Limit < total-f.Offset {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func publishedOrZero(r models.Review) time.Time {
	if r.PublishedAt == nil {
		return time.Time{}
	}
	return *r.PublishedAt
}

func (r *MemoryRepository) ListMediaAssets(ctx context.Context, reviewIDs []uuid.UUID) ([]models.MediaAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := make(map[uuid.UUID]struct{}, len(reviewIDs))
	for _, id := range reviewIDs {
		want[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.MediaAsset, 0)
	for _, a := range r.state.assets {
		if _, ok := want[a.ReviewID]; ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemoryRepository) GetMediaAsset(ctx context.Context, businessID, assetID uuid.UUID) (*models.MediaAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.state.assets[assetID]
	if !ok || a.BusinessID != businessID {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ReviewStats(ctx context.Context, businessID uuid.UUID) (*models.ReviewStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		stats models.ReviewStats
		sum   int
	)
	for _, rev := range r.state.reviews {
		if rev.BusinessID != businessID {
			continue
		}
		switch rev.Status {
		case models.PendingStatus:
			stats.Pending++
		case models.ApprovedStatus:
			stats.Approved++
			sum += rev.Rating
		case models.RejectedStatus:
			stats.Rejected++
		}
	}
	if stats.Approved > 0 {
		stats.AverageRating = float64(sum) / float64(stats.Approved)
	}
	return &stats, nil
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{state: r.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

// Outbox returns a copy of every event added so far.
func (r *MemoryRepository) Outbox() []OutboxEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]OutboxEntry(nil), r.state.outbox...)
}

func (r *MemoryRepository) ConsentLogs(businessID uuid.UUID) []models.ConsentLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ConsentLog, 0)
	for _, c := range r.state.consents {
		if c.BusinessID == businessID {
			out = append(out, c)
		}
	}
	return out
}

func (r *MemoryRepository) TranscodeJobs(reviewID uuid.UUID) []models.TranscodeJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.TranscodeJob, 0)
	for _, j := range r.state.jobs {
		if j.ReviewID == reviewID {
			out = append(out, j)
		}
	}
	return out
}

// CountReviews returns how many reviews exist for a business in any status.
func (r *MemoryRepository) CountReviews(businessID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rev := range r.state.reviews {
		if rev.BusinessID == businessID {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) CountMediaAssets(businessID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.state.assets {
		if a.BusinessID == businessID {
			n++
		}
	}
	return n
}

type memTx struct {
	state *memState
}

func (t *memTx) CreateReview(ctx context.Context, rev *models.Review) error {
	if rev == nil || rev.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if _, ok := t.state.businesses[rev.BusinessID]; !ok {
		return fmt.Errorf("review business: %w", models.ErrNotFound)
	}
	if _, exists := t.state.reviews[rev.ID]; exists {
		return models.ErrConflict
	}
	t.state.reviews[rev.ID] = *rev
	return nil
}

func (t *memTx) CreateConsentLog(ctx context.Context, c *models.ConsentLog) error {
	if c == nil || c.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	t.state.consents = append(t.state.consents, *c)
	return nil
}

func (t *memTx) CreateMediaAsset(ctx context.Context, a *models.MediaAsset) error {
	if a == nil || a.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if _, ok := t.state.reviews[a.ReviewID]; !ok {
		return fmt.Errorf("media asset review: %w", models.ErrNotFound)
	}
	for _, existing := range t.state.assets {
		if existing.S3Key == a.S3Key {
			return models.ErrConflict
		}
	}
	t.state.assets[a.ID] = *a
	return nil
}

func (t *memTx) CreateTranscodeJob(ctx context.Context, j *models.TranscodeJob) error {
	if j == nil || j.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if _, ok := t.state.assets[j.InputAssetID]; !ok {
		return fmt.Errorf("transcode input asset: %w", models.ErrNotFound)
	}
	t.state.jobs[j.ID] = *j
	return nil
}

func (t *memTx) UpdateReviewStatus(ctx context.Context, id uuid.UUID, status models.Status, publishedAt *time.Time) (*models.Review, error) {
	rev, ok := t.state.reviews[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	rev.Status = status
	if publishedAt != nil {
		at := *publishedAt
		rev.PublishedAt = &at
	}
	t.state.reviews[id] = rev
	return &rev, nil
}

func (t *memTx) DeleteReview(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.reviews[id]; !ok {
		return models.ErrNotFound
	}
	delete(t.state.reviews, id)
	for assetID, a := range t.state.assets {
		if a.ReviewID == id {
			delete(t.state.assets, assetID)
		}
	}
	for jobID, j := range t.state.jobs {
		if j.ReviewID == id {
			delete(t.state.jobs, jobID)
		}
	}
	return nil
}

func (t *memTx) AddOutbox(ctx context.Context, event models.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	t.state.outbox = append(t.state.outbox, OutboxEntry{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		Payload:     payload,
		OccurredAt:  event.OccurredAt(),
	})
	return nil
}
