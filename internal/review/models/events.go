package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

const (
	EventReviewSubmitted     = "ReviewSubmitted"
	EventReviewStatusChanged = "ReviewStatusChanged"
	EventReviewDeleted       = "ReviewDeleted"
	EventTranscodeRequested  = "TranscodeRequested"
)

// eventBase carries the envelope shared by every review event. The
// aggregate is always the review.
type eventBase struct {
	eventID    uuid.UUID
	reviewID   uuid.UUID
	occurredAt time.Time
}

func newEventBase(reviewID uuid.UUID, at time.Time) eventBase {
	return eventBase{eventID: uuid.New(), reviewID: reviewID, occurredAt: at}
}

func (e eventBase) EventID() uuid.UUID     { return e.eventID }
func (e eventBase) AggregateID() uuid.UUID { return e.reviewID }
func (e eventBase) OccurredAt() time.Time  { return e.occurredAt }

type ReviewSubmitted struct {
	eventBase
	businessID uuid.UUID
	reviewType ReviewType
}

func NewReviewSubmitted(r *Review) *ReviewSubmitted {
	return &ReviewSubmitted{
		eventBase:  newEventBase(r.ID, r.SubmittedAt),
		businessID: r.BusinessID,
		reviewType: r.Type,
	}
}

func (e *ReviewSubmitted) EventType() string { return EventReviewSubmitted }

func (e *ReviewSubmitted) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID  `json:"event_id"`
		ReviewID   uuid.UUID  `json:"review_id"`
		BusinessID uuid.UUID  `json:"business_id"`
		Type       ReviewType `json:"type"`
		OccurredAt time.Time  `json:"occurred_at"`
	}{e.eventID, e.reviewID, e.businessID, e.reviewType, e.occurredAt})
}

type ReviewStatusChanged struct {
	eventBase
	businessID uuid.UUID
	from       Status
	to         Status
}

func NewReviewStatusChanged(r *Review, from, to Status, at time.Time) *ReviewStatusChanged {
	return &ReviewStatusChanged{
		eventBase:  newEventBase(r.ID, at),
		businessID: r.BusinessID,
		from:       from,
		to:         to,
	}
}

func (e *ReviewStatusChanged) EventType() string { return EventReviewStatusChanged }
func (e *ReviewStatusChanged) From() Status      { return e.from }
func (e *ReviewStatusChanged) To() Status        { return e.to }

func (e *ReviewStatusChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID `json:"event_id"`
		ReviewID   uuid.UUID `json:"review_id"`
		BusinessID uuid.UUID `json:"business_id"`
		From       Status    `json:"from"`
		To         Status    `json:"to"`
		OccurredAt time.Time `json:"occurred_at"`
	}{e.eventID, e.reviewID, e.businessID, e.from, e.to, e.occurredAt})
}

type ReviewDeleted struct {
	eventBase
	businessID uuid.UUID
	keys       []string
}

func NewReviewDeleted(r *Review, keys []string, at time.Time) *ReviewDeleted {
	return &ReviewDeleted{
		eventBase:  newEventBase(r.ID, at),
		businessID: r.BusinessID,
		keys:       keys,
	}
}

func (e *ReviewDeleted) EventType() string { return EventReviewDeleted }

func (e *ReviewDeleted) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID `json:"event_id"`
		ReviewID   uuid.UUID `json:"review_id"`
		BusinessID uuid.UUID `json:"business_id"`
		ObjectKeys []string  `json:"object_keys"`
		OccurredAt time.Time `json:"occurred_at"`
	}{e.eventID, e.reviewID, e.businessID, e.keys, e.occurredAt})
}

// TranscodeRequested announces a queued job to whatever worker consumes
// the event stream. Nothing in this service advances the job.
type TranscodeRequested struct {
	eventBase
	job      TranscodeJob
	inputKey string
}

func NewTranscodeRequested(job *TranscodeJob, inputKey string) *TranscodeRequested {
	return &TranscodeRequested{
		eventBase: newEventBase(job.ReviewID, job.CreatedAt),
		job:       *job,
		inputKey:  inputKey,
	}
}

func (e *TranscodeRequested) EventType() string { return EventTranscodeRequested }
func (e *TranscodeRequested) JobID() uuid.UUID  { return e.job.ID }

func (e *TranscodeRequested) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID      uuid.UUID `json:"event_id"`
		JobID        uuid.UUID `json:"job_id"`
		ReviewID     uuid.UUID `json:"review_id"`
		BusinessID   uuid.UUID `json:"business_id"`
		InputAssetID uuid.UUID `json:"input_asset_id"`
		InputKey     string    `json:"input_key"`
		Target       string    `json:"target"`
		OccurredAt   time.Time `json:"occurred_at"`
	}{e.eventID, e.job.ID, e.reviewID, e.job.BusinessID, e.job.InputAssetID, e.inputKey, e.job.Target, e.occurredAt})
}
