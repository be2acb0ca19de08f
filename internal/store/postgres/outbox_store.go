package postgres

import (
	"context"
	"encoding/json"
	"time"

	"ledgercore/internal/domain/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxStore implements the outbox store operations of spec.md §4.10.
// The skip-locked claim query is the critical concurrency primitive
// that lets multiple outbox processors run without ever claiming the
// same row — grounded on the advisory-lock-free SKIP LOCKED pattern
// used for the idempotency/claim table in the community-bank-platform
// reference, adapted here to FOR UPDATE SKIP LOCKED on outbox_events
// directly rather than a separate claim table.
type OutboxStore struct {
	pool *pgxpool.Pool
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// Save writes a new outbox row with publishedAt=null, attemptCount=0.
func (s *OutboxStore) Save(ctx context.Context, tx pgx.Tx, e outbox.Event) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (
			id, aggregate_type, aggregate_id, event_type,
			payload_json, payload_canonical, occurred_at, created_at,
			published_at, attempt_count, last_error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,0,NULL)
	`, e.ID, e.AggregateType, e.AggregateID, e.EventType, e.Payload, e.PayloadJCS, e.OccurredAt, e.CreatedAt)
	return err
}

// ClaimUnpublished returns up to limit unpublished rows ordered by
// created_at ascending, holding a row-level exclusive lock on each;
// rows already locked by another claimer are skipped without blocking.
func (s *OutboxStore) ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]outbox.Event, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type,
			payload_json, payload_canonical, occurred_at, created_at,
			published_at, attempt_count, last_error
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []outbox.Event
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished stamps publishedAt for id within tx.
func (s *OutboxStore) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = $1`, id)
	return err
}

// MarkFailed increments attemptCount and stores the truncated error.
func (s *OutboxStore) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, lastError string) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events SET attempt_count = attempt_count + 1, last_error = $2 WHERE id = $1
	`, id, lastError)
	return err
}

// FindDeadLettered returns events that have reached maxAttempts and
// remain unpublished, for operator inspection.
func (s *OutboxStore) FindDeadLettered(ctx context.Context, maxAttempts, limit int) ([]outbox.Event, error) {
	if maxAttempts <= 0 {
		maxAttempts = outbox.DefaultMaxAttempts
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type,
			payload_json, payload_canonical, occurred_at, created_at,
			published_at, attempt_count, last_error
		FROM outbox_events
		WHERE published_at IS NULL AND attempt_count >= $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []outbox.Event
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ResetForRequeue zeroes attemptCount and clears lastError for a
// single dead-lettered event, only if it is still unpublished.
func (s *OutboxStore) ResetForRequeue(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET attempt_count = 0, last_error = NULL
		WHERE id = $1 AND published_at IS NULL
	`, id)
	return err
}

// ResetDeadLetters bulk-requeues every unpublished event whose
// attemptCount is at least minAttempts.
func (s *OutboxStore) ResetDeadLetters(ctx context.Context, minAttempts int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET attempt_count = 0, last_error = NULL
		WHERE published_at IS NULL AND attempt_count >= $1
	`, minAttempts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountStuck reports how many unpublished events are older than
// thresholdMinutes, for health probes.
func (s *OutboxStore) CountStuck(ctx context.Context, thresholdMinutes int) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM outbox_events
		WHERE published_at IS NULL
		AND created_at < now() - ($1 || ' minutes')::interval
	`, thresholdMinutes).Scan(&count)
	return count, err
}

func scanOutboxEvent(row rowScanner) (outbox.Event, error) {
	var (
		id, aggregateID          uuid.UUID
		aggregateType, eventType string
		payload                  json.RawMessage
		payloadJCS               string
		occurredAt, createdAt    time.Time
		publishedAt              *time.Time
		attemptCount             int
		lastError                *string
	)
	if err := row.Scan(&id, &aggregateType, &aggregateID, &eventType,
		&payload, &payloadJCS, &occurredAt, &createdAt,
		&publishedAt, &attemptCount, &lastError); err != nil {
		return outbox.Event{}, err
	}
	return outbox.Hydrate(id, aggregateType, aggregateID, eventType, payload, payloadJCS,
		occurredAt, createdAt, publishedAt, attemptCount, stringOrEmpty(lastError)), nil
}
