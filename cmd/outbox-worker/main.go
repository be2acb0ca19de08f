// Command outbox-worker runs the outbox processor of spec.md §4.11 as
// its own deployable, separate from the API process so dispatch
// throughput and the HTTP surface can be scaled independently.
package main

import (
	"context"
	"log"
	"os"

	"ledgercore/internal/infrastructure/messaging/kafka"
	"ledgercore/internal/outbox"
	"ledgercore/internal/pkg/config"
	"ledgercore/internal/pkg/logging"
	"ledgercore/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg)

	dbCfg := &postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxConns,
		MaxIdleConns:    cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.MaxConnLifetime.String(),
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	outboxStore := postgres.NewOutboxStore(pool)

	kafkaCfg := kafka.NewConfigFromEnv()
	kafkaCfg.Brokers = cfg.Kafka.Brokers
	kafkaCfg.ClientID = cfg.Kafka.ClientID
	producer, err := kafka.NewProducer(kafkaCfg)
	if err != nil {
		log.Fatalf("failed to initialize kafka producer: %v", err)
	}
	defer producer.Close()

	sink := outbox.NewKafkaSink(producer)
	processor := outbox.NewProcessor(pool, outboxStore, sink, cfg.Core.OutboxBatch, cfg.Core.OutboxSleep, cfg.Core.OutboxMaxAttempts)

	logging.Info("outbox worker starting", map[string]interface{}{
		"batch_size":    cfg.Core.OutboxBatch,
		"tick_interval": cfg.Core.OutboxSleep.String(),
		"max_attempts":  cfg.Core.OutboxMaxAttempts,
	})

	if err := processor.Run(ctx); err != nil {
		logging.Error("outbox worker stopped with error", err, nil)
		os.Exit(1)
	}
}
