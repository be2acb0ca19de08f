package postgres

import (
	"context"
	"errors"
	"time"

	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/money"
	"ledgercore/internal/domain/transfer"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransferStore persists the Transfer aggregate and implements
// transferops.TransferStore. Uses upsert-on-save since the same
// aggregate is saved multiple times across one request's transaction
// (pending -> processing -> completed|failed), grounded on the
// teacher's CreateTransaction/UpdateAccount pattern of separate
// insert-then-update calls, collapsed here into a single ON CONFLICT
// clause since the service always has the full aggregate state in
// hand rather than a partial column update.
type TransferStore struct {
	pool *pgxpool.Pool
}

func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Save upserts the full Transfer row.
func (s *TransferStore) Save(ctx context.Context, tx pgx.Tx, tr *transfer.Transfer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transfers (
			id, reference, source_account_id, destination_account_id,
			amount_minor_units, currency, status, description,
			failure_code, failure_reason, completed_at, failed_at, reversed_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			failure_code = EXCLUDED.failure_code,
			failure_reason = EXCLUDED.failure_reason,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at,
			reversed_at = EXCLUDED.reversed_at,
			version = EXCLUDED.version
	`,
		tr.ID, tr.Reference, tr.Source, tr.Destination,
		tr.Amount.MinorUnits(), tr.Amount.Currency(), string(tr.Status), tr.Description,
		nullableString(tr.FailureCode), nullableString(tr.FailureReason),
		tr.CompletedAt, tr.FailedAt, tr.ReversedAt, tr.Version,
	)
	return err
}

// GetByIDForUpdate loads and row-locks a transfer within tx, for the
// reversal path's serialization of concurrent reversal attempts.
func (s *TransferStore) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*transfer.Transfer, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, reference, source_account_id, destination_account_id,
			amount_minor_units, currency, status, description,
			failure_code, failure_reason, completed_at, failed_at, reversed_at, version
		FROM transfers WHERE id = $1 FOR UPDATE
	`, id)
	return scanTransfer(row)
}

// Get loads a transfer without locking, for read endpoints.
func (s *TransferStore) Get(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, reference, source_account_id, destination_account_id,
			amount_minor_units, currency, status, description,
			failure_code, failure_reason, completed_at, failed_at, reversed_at, version
		FROM transfers WHERE id = $1
	`, id)
	return scanTransfer(row)
}

// ListByAccount returns transfers touching accountID, most recent
// (highest id) first, filtered and paginated per filter.
func (s *TransferStore) ListByAccount(ctx context.Context, accountID uuid.UUID, filter transfer.ListFilter) ([]*transfer.Transfer, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	offset := (page - 1) * perPage

	rows, err := s.pool.Query(ctx, `
		SELECT id, reference, source_account_id, destination_account_id,
			amount_minor_units, currency, status, description,
			failure_code, failure_reason, completed_at, failed_at, reversed_at, version
		FROM transfers
		WHERE (source_account_id = $1 OR destination_account_id = $1)
			AND ($2 = '' OR status = $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4
	`, accountID, string(filter.Status), perPage, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*transfer.Transfer
	for rows.Next() {
		tr, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func scanTransfer(row rowScanner) (*transfer.Transfer, error) {
	var (
		id, source, destination                uuid.UUID
		reference, currency, status            string
		description                             string
		amountMinorUnits                        int64
		failureCode, failureReason              *string
		completedAt, failedAt, reversedAt       *time.Time
		version                                 int
	)
	if err := row.Scan(&id, &reference, &source, &destination, &amountMinorUnits, &currency, &status, &description,
		&failureCode, &failureReason, &completedAt, &failedAt, &reversedAt, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apierrors.ErrTransferNotFound
		}
		return nil, err
	}
	amount, err := money.New(amountMinorUnits, currency)
	if err != nil {
		return nil, err
	}
	return transfer.Hydrate(
		id, reference, source, destination, amount, transfer.Status(status), description,
		stringOrEmpty(failureCode), stringOrEmpty(failureReason),
		completedAt, failedAt, reversedAt, version,
	), nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
