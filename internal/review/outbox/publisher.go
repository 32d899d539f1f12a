// Package outbox relays committed domain events from the outbox table to
// Kafka with at-least-once delivery.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/metrics"
	"github.com/romariotrain/truetestify/internal/review/kafka"
	"github.com/romariotrain/truetestify/internal/storage/postgres"
)

type Store interface {
	GetPending(ctx context.Context, limit int) ([]postgres.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type Producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type Publisher struct {
	store     Store
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

type PublisherConfig struct {
	Store     Store
	Producer  Producer
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		store:     cfg.Store,
		producer:  cfg.Producer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start polls the outbox until ctx is cancelled. A failed batch is logged
// and retried on the next tick.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Err(ctx.Err()).Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

type BatchStats struct {
	Total     int
	Published int
	Failed    int
	Marked    int
}

// PublishBatch relays one batch of pending events. Events are published in
// outbox order; an event that was published but could not be marked will
// be sent again, so consumers must be idempotent on event_id.
func (p *Publisher) PublishBatch(ctx context.Context) (BatchStats, error) {
	var stats BatchStats

	records, err := p.store.GetPending(ctx, p.batchSize)
	if err != nil {
		return stats, fmt.Errorf("get pending records: %w", err)
	}
	stats.Total = len(records)
	if len(records) == 0 {
		p.logger.Debug().Msg("no pending events to publish")
		return stats, nil
	}

	for _, record := range records {
		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("aggregate_id", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		err := p.producer.Publish(ctx, kafka.Message{
			Key:       record.AggregateID,
			Value:     record.Payload,
			EventType: record.EventType,
		})
		if err != nil {
			eventLogger.Error().Err(err).Msg("failed to publish event to kafka")
			stats.Failed++
			// Later events of the same review must not overtake this one.
			break
		}
		stats.Published++

		if err := p.store.MarkProcessed(ctx, record.ID); err != nil {
			eventLogger.Warn().Err(err).Msg("failed to mark event as processed")
			continue
		}
		stats.Marked++
	}

	metrics.RecordOutbox("published", stats.Published)
	metrics.RecordOutbox("failed", stats.Failed)

	p.logger.Info().
		Int("total", stats.Total).
		Int("published", stats.Published).
		Int("failed", stats.Failed).
		Int("marked", stats.Marked).
		Msg("batch processing completed")

	return stats, nil
}
