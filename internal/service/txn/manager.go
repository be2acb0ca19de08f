// Package txn wraps pgx transactions with the bounded deadlock-retry
// policy of spec.md §5: a transaction that fails with Postgres error
// code 40P01 (deadlock_detected) or 40001 (serialization_failure) is
// retried up to a configured number of times with randomized exponential backoff,
// rather than surfaced to the caller. Grounded on the teacher's
// AtomicTransfer/AtomicWithdraw pattern (lock accounts in sorted order,
// begin/defer-rollback/commit) in internal/infrastructure/database/
// postgres/postgres.go, generalized into a reusable wrapper so the
// lock-ordering lives in the double-entry service instead of being
// duplicated per operation.
package txn

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultMaxAttempts bounds the deadlock-retry loop when the caller
// has no configured value in hand (e.g. a test building a Manager
// directly). Production wiring passes Core.MaxDeadlockRetries instead.
const DefaultMaxAttempts = 3

const (
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
)

// Manager runs functions inside a pgx transaction, retrying on
// transient lock-contention errors.
type Manager struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// NewManager builds a Manager bounded by maxAttempts total tries
// (including the first). maxAttempts <= 0 substitutes DefaultMaxAttempts.
func NewManager(pool *pgxpool.Pool, maxAttempts int) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Manager{pool: pool, maxAttempts: maxAttempts}
}

// Fn is the unit of work executed inside a transaction. Implementations
// must be safe to run more than once: a deadlock retry re-executes fn
// from scratch against a fresh transaction.
type Fn func(ctx context.Context, tx pgx.Tx) error

// CommitErr marks an error that fn wants committed rather than rolled
// back: spec.md §4.8 step 5 treats a failed transfer as a durable
// business record ("commit the tx — yes, commit"), so fn wraps that
// one error with Commit before returning it.
type CommitErr struct {
	Err error
}

func (e *CommitErr) Error() string { return e.Err.Error() }
func (e *CommitErr) Unwrap() error { return e.Err }

// Commit wraps err so WithTransaction commits the transaction instead
// of rolling it back, then returns err (unwrapped) to the caller. A
// nil err passes through unchanged.
func Commit(err error) error {
	if err == nil {
		return nil
	}
	return &CommitErr{Err: err}
}

// WithTransaction begins a transaction, invokes fn, and commits. On a
// retryable error it rolls back, waits a randomized backoff, and tries
// again up to maxAttempts times total. An fn error wrapped with Commit
// is committed rather than rolled back, matching the "failed transfer
// is still a durable record" contract; it is never retried.
func (m *Manager) WithTransaction(ctx context.Context, fn Fn) error {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err := m.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == m.maxAttempts {
			return err
		}
		if sleepErr := backoff(ctx, attempt); sleepErr != nil {
			return sleepErr
		}
	}
	return lastErr
}

func (m *Manager) runOnce(ctx context.Context, fn Fn) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	fnErr := fn(ctx, tx)
	var commitErr *CommitErr
	if fnErr != nil && !errors.As(fnErr, &commitErr) {
		return fnErr
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if commitErr != nil {
		return commitErr.Err
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeDeadlockDetected || pgErr.Code == codeSerializationFailure
	}
	return false
}

// backoff sleeps a randomized exponential interval, honoring ctx
// cancellation.
func backoff(ctx context.Context, attempt int) error {
	base := time.Duration(1<<uint(attempt-1)) * 10 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base)))
	select {
	case <-time.After(base + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
