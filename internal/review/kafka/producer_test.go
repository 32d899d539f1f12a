package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/truetestify/internal/review/models"
)

// fakeWriter fails the first len(errs) writes with the given errors and
// records every batch it was handed.
type fakeWriter struct {
	mu      sync.Mutex
	errs    []error
	batches [][]kafkago.Message
	closed  bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batches = append(w.batches, msgs)
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return err
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testProducer(w *fakeWriter) *Producer {
	cfg := ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "truetestify.reviews", Logger: zerolog.Nop()}
	setDefaults(&cfg)
	cfg.RetryBackoff = time.Millisecond
	return newProducer(cfg, w)
}

var (
	reviewID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	bizID    = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
)

// reviewMessages builds the messages the outbox relay sends for a video
// submission: ReviewSubmitted followed by TranscodeRequested.
func reviewMessages(t *testing.T) []Message {
	t.Helper()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	review := &models.Review{ID: reviewID, BusinessID: bizID, Type: models.VideoReview, SubmittedAt: at}
	job := &models.TranscodeJob{
		ID:           uuid.New(),
		BusinessID:   bizID,
		ReviewID:     reviewID,
		InputAssetID: uuid.New(),
		Target:       "h264-720p",
		Status:       models.JobQueued,
		CreatedAt:    at,
	}

	var out []Message
	for _, ev := range []models.DomainEvent{models.NewReviewSubmitted(review), models.NewTranscodeRequested(job, "businesses/b/reviews/a/1-x.mp4")} {
		payload, err := json.Marshal(ev)
		require.NoError(t, err)
		out = append(out, Message{Key: ev.AggregateID().String(), Value: payload, EventType: ev.EventType()})
	}
	return out
}

func TestNewProducer_AppliesDefaults(t *testing.T) {
	producer, err := NewProducer(ProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "truetestify.reviews",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	defer producer.Close()

	assert.Equal(t, 3, producer.config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, producer.config.RetryBackoff)
	assert.Equal(t, 10*time.Second, producer.config.WriteTimeout)
	assert.Equal(t, 100, producer.config.BatchSize)
}

func TestNewProducer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  ProducerConfig
		wantErr string
	}{
		{"no brokers", ProducerConfig{Topic: "truetestify.reviews"}, "brokers list is empty"},
		{"blank topic", ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "  "}, "topic is empty"},
		{"negative retries", ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", MaxRetries: -1}, "max_retries cannot be negative"},
		{"negative backoff", ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", RetryBackoff: -time.Second}, "retry_backoff cannot be negative"},
		{"negative timeout", ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", WriteTimeout: -time.Second}, "write_timeout cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProducer(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPublishBatch_KeysByReviewAndTagsEventType(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(w)

	require.NoError(t, p.PublishBatch(context.Background(), reviewMessages(t)))

	require.Len(t, w.batches, 1)
	sent := w.batches[0]
	require.Len(t, sent, 2)

	var types []string
	for _, m := range sent {
		// Every event of a review shares a key, so they stay on one partition in order.
		assert.Equal(t, reviewID.String(), string(m.Key))
		require.Len(t, m.Headers, 1)
		assert.Equal(t, eventTypeHeader, m.Headers[0].Key)
		types = append(types, string(m.Headers[0].Value))
	}
	assert.Equal(t, []string{models.EventReviewSubmitted, models.EventTranscodeRequested}, types)

	var transcode map[string]any
	require.NoError(t, json.Unmarshal(sent[1].Value, &transcode))
	assert.Equal(t, "h264-720p", transcode["target"])
	assert.Equal(t, bizID.String(), transcode["business_id"])

	m := p.GetMetrics()
	assert.Equal(t, int64(2), m.MessagesPublished)
	assert.Zero(t, m.MessagesFailed)
	assert.Zero(t, m.RetriesTotal)
}

func TestPublish_RetriesTransientBrokerErrors(t *testing.T) {
	w := &fakeWriter{errs: []error{errors.New("leader not available"), errors.New("i/o timeout")}}
	p := testProducer(w)

	msg := reviewMessages(t)[0]
	require.NoError(t, p.Publish(context.Background(), msg))

	assert.Len(t, w.batches, 3)
	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesPublished)
	assert.Equal(t, int64(2), m.RetriesTotal)
}

func TestPublish_GivesUp(t *testing.T) {
	t.Run("permanent error is not retried", func(t *testing.T) {
		w := &fakeWriter{errs: []error{errors.New("message too large")}}
		p := testProducer(w)

		err := p.Publish(context.Background(), reviewMessages(t)[0])
		require.Error(t, err)
		assert.Len(t, w.batches, 1)
		assert.Equal(t, int64(1), p.GetMetrics().MessagesFailed)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		down := errors.New("connection refused")
		w := &fakeWriter{errs: []error{down, down, down, down}}
		p := testProducer(w)

		err := p.Publish(context.Background(), reviewMessages(t)[0])
		require.ErrorIs(t, err, down)
		assert.Len(t, w.batches, 4)
		assert.Equal(t, int64(3), p.GetMetrics().RetriesTotal)
	})

	t.Run("context cancelled during backoff", func(t *testing.T) {
		w := &fakeWriter{errs: []error{errors.New("connection refused")}}
		p := testProducer(w)
		p.config.RetryBackoff = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := p.Publish(ctx, reviewMessages(t)[0])
		require.ErrorIs(t, err, context.Canceled)
		assert.Len(t, w.batches, 1)
	})
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		err       error
		retriable bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
		{errors.New("connection reset by peer"), true},
		{errors.New("leader not available"), true},
		{errors.New("invalid message format"), false},
		{errors.New("SASL Authentication failed"), false},
		{errors.New("topic authorization failed"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.retriable, isRetriableError(tt.err), "%v", tt.err)
	}
}

func TestToKafkaMessages_OmitsEmptyEventType(t *testing.T) {
	out := toKafkaMessages([]Message{{Key: reviewID.String(), Value: []byte(`{}`)}})
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Headers)
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(w)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")

	require.Error(t, p.Publish(context.Background(), reviewMessages(t)[0]))
	require.Error(t, p.HealthCheck(context.Background()))
	assert.Empty(t, w.batches)
}

func TestPublishBatch_EmptyIsNoop(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(w)

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Empty(t, w.batches)
}
