package outbox

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"ledgercore/internal/domain/outbox"
	"ledgercore/internal/pkg/logging"
	"ledgercore/internal/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the outbox persistence port the processor needs.
type Store interface {
	ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]outbox.Event, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, lastError string) error
}

// Processor is the long-running outbox dispatch loop of spec.md §4.11.
type Processor struct {
	pool        *pgxpool.Pool
	store       Store
	sink        Sink
	batchSize   int
	interval    time.Duration
	maxAttempts int
}

// NewProcessor builds a Processor with the given batch size, tick
// interval, and dead-letter threshold. maxAttempts <= 0 substitutes
// outbox.DefaultMaxAttempts.
func NewProcessor(pool *pgxpool.Pool, store Store, sink Sink, batchSize int, interval time.Duration, maxAttempts int) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = outbox.DefaultMaxAttempts
	}
	return &Processor{pool: pool, store: store, sink: sink, batchSize: batchSize, interval: interval, maxAttempts: maxAttempts}
}

// Run ticks until ctx is cancelled or SIGINT/SIGTERM arrives, per the
// abort-on-next-safe-point cancellation contract of spec.md §5: a
// signal only stops the loop between ticks, never mid-transaction.
func (p *Processor) Run(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := p.tick(sigCtx); err != nil {
			logging.Error("outbox tick failed", err, nil)
		}

		select {
		case <-sigCtx.Done():
			logging.Info("outbox processor shutting down", nil)
			return nil
		case <-time.After(p.interval):
		}
	}
}

// RunOnce performs exactly one tick, for the one-shot invocation mode
// spec.md §4.11 also allows (e.g. a cron-triggered reconcile-and-drain
// pass instead of a standing daemon).
func (p *Processor) RunOnce(ctx context.Context) error {
	return p.tick(ctx)
}

func (p *Processor) tick(ctx context.Context) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	events, err := p.store.ClaimUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}

	for _, e := range events {
		if e.IsDead(p.maxAttempts) {
			continue
		}
		dispatchErr := p.sink.Dispatch(ctx, e)
		if dispatchErr == nil {
			if err := p.store.MarkPublished(ctx, tx, e.ID); err != nil {
				return err
			}
			telemetry.OutboxDispatchedTotal.WithLabelValues("published").Inc()
			continue
		}

		if err := p.store.MarkFailed(ctx, tx, e.ID, dispatchErr.Error()); err != nil {
			return err
		}
		telemetry.OutboxDispatchedTotal.WithLabelValues("failed").Inc()
		if e.AttemptCount+1 >= p.maxAttempts {
			telemetry.OutboxDeadLetteredTotal.Inc()
			logging.Error("outbox event dead-lettered", errors.New(dispatchErr.Error()), map[string]any{
				"event_id":       e.ID.String(),
				"event_type":     e.EventType,
				"attempt_count":  e.AttemptCount + 1,
				"aggregate_type": e.AggregateType,
			})
		}
	}

	return tx.Commit(ctx)
}
