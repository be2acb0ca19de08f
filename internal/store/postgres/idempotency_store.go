package postgres

import (
	"context"
	"errors"

	"ledgercore/internal/domain/idempotency"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by Lookup when no record exists for a key.
var ErrNotFound = errors.New("idempotency record not found")

// IdempotencyStore persists Idempotency Records in their own short-lived
// transactions, independent of the main work transaction, per the
// shared-resources note in spec.md §5.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Lookup returns the stored record for key, or ErrNotFound.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (idempotency.Record, error) {
	var r idempotency.Record
	err := s.pool.QueryRow(ctx, `
		SELECT key, request_hash, response_status, response_body, created_at, expires_at
		FROM idempotency_keys WHERE key = $1
	`, key).Scan(&r.Key, &r.RequestHash, &r.ResponseStatus, &r.ResponseBody, &r.CreatedAt, &r.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return idempotency.Record{}, ErrNotFound
	}
	return r, err
}

// AcquireLock takes a short-lived advisory-style lock for key by
// inserting a placeholder row, so a concurrent first request wins the
// race; a second request does not wait, it gets (false, nil) at once.
// Returns (true, nil) if the caller won the lock, (false, nil) if
// another request holds it now. Once ReleaseLock has dropped the row,
// the next caller wins again.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_locks (key, acquired_at) VALUES ($1, now())
		ON CONFLICT (key) DO NOTHING
	`, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLock drops the placeholder row, whether or not the request
// ultimately saved a Record (e.g. it failed before producing a
// user-visible response).
func (s *IdempotencyStore) ReleaseLock(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_locks WHERE key = $1`, key)
	return err
}

// Save stores a completed Record in idempotency_keys, overwriting any
// prior record for the same key. The lock row in idempotency_locks is
// left to ReleaseLock.
func (s *IdempotencyStore) Save(ctx context.Context, r idempotency.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, request_hash, response_status, response_body, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO UPDATE SET
			request_hash = EXCLUDED.request_hash,
			response_status = EXCLUDED.response_status,
			response_body = EXCLUDED.response_body,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, r.Key, r.RequestHash, r.ResponseStatus, r.ResponseBody, r.CreatedAt, r.ExpiresAt)
	return err
}
