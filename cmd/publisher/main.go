package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/course-platform/internal/app"
	"github.com/romariotrain/course-platform/internal/config"
	pg "github.com/romariotrain/course-platform/internal/storage/postgres"
	"github.com/romariotrain/course-platform/internal/upload/kafka"
	"github.com/romariotrain/course-platform/internal/upload/outbox"
)

func main() {
	os.Exit(app.Run("publisher", run))
}

func run(ctx context.Context, logger zerolog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
		OutboxRepo: pg.NewOutboxRepo(db),
		Producer:   producer,
		Interval:   cfg.OutboxInterval,
		BatchSize:  cfg.OutboxBatchSize,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	if err := publisher.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("publisher: %w", err)
	}
	return nil
}
