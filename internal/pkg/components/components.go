// Package components is the application's dependency-injection root:
// one singleton Container that wires config, logging, the Postgres
// pool and store layer, the Kafka outbox sink, the HTTP server, and
// the outbox processor's background goroutine. Adapted from the
// teacher's internal/pkg/components/components.go, replacing its
// single-repository/event-broker wiring with the full ledger engine's
// service-layer composition.
package components

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ledgercore/internal/api/handlers"
	"ledgercore/internal/api/routes"
	"ledgercore/internal/infrastructure/messaging/kafka"
	"ledgercore/internal/outbox"
	"ledgercore/internal/pkg/config"
	"ledgercore/internal/pkg/logging"
	"ledgercore/internal/service/txn"
	"ledgercore/internal/store/postgres"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Container holds every application component and its dependencies.
type Container struct {
	Config     *config.Config
	Pool       *pgxpool.Pool
	TxManager  *txn.Manager
	Accounts   *postgres.AccountStore
	Transfers  *postgres.TransferStore
	Ledger     *postgres.LedgerStore
	Outbox     *postgres.OutboxStore
	Idempotent *postgres.IdempotencyStore
	KafkaSink  *outbox.KafkaSink
	Processor  *outbox.Processor
	Router     *gin.Engine
	Server     *http.Server

	processorCancel context.CancelFunc
	processorDone   chan struct{}
}

var (
	instance     *Container
	instanceOnce sync.Once
	instanceErr  error
)

// GetInstance returns the process-wide singleton, initializing it on
// first call.
func GetInstance() (*Container, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = newContainer()
	})
	return instance, instanceErr
}

func newContainer() (*Container, error) {
	c := &Container{}

	c.Config = config.Load()
	logging.Init(c.Config)
	logging.Info("configuration loaded", map[string]interface{}{"port": c.Config.Server.Port})

	if err := c.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := c.initKafka(); err != nil {
		return nil, fmt.Errorf("failed to initialize kafka: %w", err)
	}
	c.initOutboxProcessor()
	if err := c.initServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	logging.Info("all components initialized", nil)
	return c, nil
}

func (c *Container) initDatabase() error {
	dbCfg := &postgres.Config{
		Host:            c.Config.Database.Host,
		Port:            c.Config.Database.Port,
		User:            c.Config.Database.User,
		Password:        c.Config.Database.Password,
		Database:        c.Config.Database.Name,
		SSLMode:         c.Config.Database.SSLMode,
		MaxOpenConns:    c.Config.Database.MaxConns,
		MaxIdleConns:    c.Config.Database.MinConns,
		ConnMaxLifetime: c.Config.Database.MaxConnLifetime.String(),
	}

	pool, err := postgres.NewPool(context.Background(), dbCfg)
	if err != nil {
		return err
	}
	c.Pool = pool
	c.TxManager = txn.NewManager(pool, c.Config.Core.MaxDeadlockRetries)
	c.Accounts = postgres.NewAccountStore(pool)
	c.Transfers = postgres.NewTransferStore(pool)
	c.Ledger = postgres.NewLedgerStore(pool)
	c.Outbox = postgres.NewOutboxStore(pool)
	c.Idempotent = postgres.NewIdempotencyStore(pool)

	logging.Info("database initialized", map[string]interface{}{
		"host": dbCfg.Host, "port": dbCfg.Port, "database": dbCfg.Database,
	})
	return nil
}

func (c *Container) initKafka() error {
	if os.Getenv("KAFKA_ENABLED") == "false" {
		logging.Info("kafka disabled, outbox processor will not dispatch", nil)
		return nil
	}

	kafkaCfg := kafka.NewConfigFromEnv()
	kafkaCfg.Brokers = c.Config.Kafka.Brokers
	kafkaCfg.ClientID = c.Config.Kafka.ClientID

	producer, err := kafka.NewProducer(kafkaCfg)
	if err != nil {
		logging.Warn("failed to initialize kafka producer, outbox dispatch disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	c.KafkaSink = outbox.NewKafkaSink(producer)
	logging.Info("kafka producer initialized", map[string]interface{}{"brokers": kafkaCfg.Brokers})
	return nil
}

func (c *Container) initOutboxProcessor() {
	if c.KafkaSink == nil {
		return
	}
	c.Processor = outbox.NewProcessor(
		c.Pool, c.Outbox, c.KafkaSink,
		c.Config.Core.OutboxBatch, c.Config.Core.OutboxSleep, c.Config.Core.OutboxMaxAttempts,
	)
}

func (c *Container) initServer() error {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	c.Router = gin.Default()

	handlerContainer := &handlers.Container{
		Tx:        c.TxManager,
		Accounts:  c.Accounts,
		Transfers: c.Transfers,
		Ledger:    c.Ledger,
		Outbox:    c.Outbox,
	}
	routes.RegisterRoutes(c.Router, handlerContainer, c.Idempotent, c.Config)

	c.Server = &http.Server{
		Addr:           ":" + c.Config.Server.Port,
		Handler:        c.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logging.Info("http server configured", map[string]interface{}{"port": c.Config.Server.Port})
	return nil
}

// Start runs the HTTP server and the outbox processor (if wired),
// blocking until a shutdown signal arrives.
func (c *Container) Start() error {
	logging.Info("starting http server", map[string]interface{}{"address": c.Server.Addr})

	go func() {
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("server failed to start", err, nil)
			os.Exit(1)
		}
	}()

	if c.Processor != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.processorCancel = cancel
		c.processorDone = make(chan struct{})
		go func() {
			defer close(c.processorDone)
			if err := c.Processor.Run(ctx); err != nil {
				logging.Error("outbox processor stopped with error", err, nil)
			}
		}()
	}

	c.waitForShutdown()
	return nil
}

func (c *Container) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		logging.Error("forced shutdown", err, nil)
	}

	logging.Info("shutdown complete", nil)
}

// Shutdown stops the HTTP server, the outbox processor, and closes
// the database pool and Kafka producer.
func (c *Container) Shutdown(ctx context.Context) error {
	if err := c.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if c.processorCancel != nil {
		c.processorCancel()
		select {
		case <-c.processorDone:
		case <-ctx.Done():
		}
	}

	if c.KafkaSink != nil {
		if err := c.KafkaSink.Close(); err != nil {
			logging.Error("failed to close kafka sink", err, nil)
		}
	}

	c.Pool.Close()
	return nil
}
