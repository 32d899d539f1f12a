package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/app"
	"github.com/romariotrain/truetestify/internal/config"
	"github.com/romariotrain/truetestify/internal/logger"
	"github.com/romariotrain/truetestify/internal/review/kafka"
	"github.com/romariotrain/truetestify/internal/review/outbox"
	pg "github.com/romariotrain/truetestify/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg)

	code := app.Run("publish", log, func(ctx context.Context) error {
		return run(ctx, cfg, log)
	})
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := pg.Connect(ctx, cfg.DatabaseURL, pg.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka producer")
		}
	}()

	if err := producer.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Msg("kafka not reachable yet, publisher will keep retrying")
	}

	publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
		Store:     pg.NewOutboxRepo(db),
		Producer:  producer,
		Interval:  cfg.OutboxInterval,
		BatchSize: cfg.OutboxBatchSize,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	if err := publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
