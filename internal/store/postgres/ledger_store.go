package postgres

import (
	"context"
	"time"

	"ledgercore/internal/domain/ledger"
	"ledgercore/internal/domain/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPerPage and MaxPerPage bound the page size FindByAccountAndRange
// accepts, mirroring the clamp the teacher applies to list endpoints.
const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

// LedgerStore is the append-only ledger_entries table. No update or
// delete method exists on purpose, per spec.md §4.6 — the absence is
// the contract. Grounded on the idempotent double-entry insert pattern
// in the community-bank-platform ledger store reference (ON CONFLICT
// DO NOTHING keyed on the natural uniqueness of the entry).
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Append idempotently inserts a ledger entry. A retry of the same
// (account_id, transfer_id, entry_type) triple is a silent no-op,
// which is what lets the initiate/reverse handlers re-run under
// deadlock retry without double-posting.
func (s *LedgerStore) Append(ctx context.Context, tx pgx.Tx, entry ledger.Entry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (
			id, account_id, counterparty_account_id, transfer_id,
			entry_type, transfer_type, amount_minor_units, currency,
			balance_after_minor_units, occurred_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (account_id, transfer_id, entry_type) DO NOTHING
	`,
		entry.ID, entry.AccountID, entry.CounterpartyAccountID, entry.TransferID,
		string(entry.EntryType), string(entry.TransferType), entry.Amount.MinorUnits(), entry.Amount.Currency(),
		entry.BalanceAfter.MinorUnits(), entry.OccurredAt, entry.CreatedAt,
	)
	return err
}

// FindByAccountAndRange implements spec.md §4.6: a paginated statement
// query over [from, to), ordered occurredAt descending then id
// descending so rows with an identical timestamp still sort
// deterministically across pages. page is 1-indexed; perPage is
// clamped to (0, MaxPerPage] with DefaultPerPage substituted for <= 0.
func (s *LedgerStore) FindByAccountAndRange(ctx context.Context, accountID uuid.UUID, from, to *time.Time, page, perPage int) ([]ledger.Entry, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	offset := (page - 1) * perPage

	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, counterparty_account_id, transfer_id,
			entry_type, transfer_type, amount_minor_units, currency,
			balance_after_minor_units, occurred_at, created_at
		FROM ledger_entries
		WHERE account_id = $1
			AND ($2::timestamptz IS NULL OR occurred_at >= $2)
			AND ($3::timestamptz IS NULL OR occurred_at < $3)
		ORDER BY occurred_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, accountID, from, to, perPage, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindLastBefore returns the most recent entry with occurred_at
// strictly before ts, for opening-balance derivation. ok is false when
// no such row exists.
func (s *LedgerStore) FindLastBefore(ctx context.Context, accountID uuid.UUID, ts time.Time) (entry ledger.Entry, ok bool, err error) {
	return s.findLast(ctx, accountID, ts, false)
}

// FindLastAtOrBefore returns the most recent entry with occurred_at at
// or before ts, for closing-balance derivation. ok is false when no
// such row exists.
func (s *LedgerStore) FindLastAtOrBefore(ctx context.Context, accountID uuid.UUID, ts time.Time) (entry ledger.Entry, ok bool, err error) {
	return s.findLast(ctx, accountID, ts, true)
}

func (s *LedgerStore) findLast(ctx context.Context, accountID uuid.UUID, ts time.Time, inclusive bool) (ledger.Entry, bool, error) {
	cmp := "<"
	if inclusive {
		cmp = "<="
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, account_id, counterparty_account_id, transfer_id,
			entry_type, transfer_type, amount_minor_units, currency,
			balance_after_minor_units, occurred_at, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND occurred_at `+cmp+` $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`, accountID, ts)

	e, err := scanLedgerEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ledger.Entry{}, false, nil
		}
		return ledger.Entry{}, false, err
	}
	return e, true, nil
}

// LedgerBalance implements reconciliation.Source: sum(credits) -
// sum(debits) for the account, and whether any rows exist.
func (s *LedgerStore) LedgerBalance(ctx context.Context, accountID uuid.UUID) (int64, bool, error) {
	var (
		sum     int64
		hasRows bool
	)
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN entry_type = 'credit' THEN amount_minor_units ELSE -amount_minor_units END), 0),
			COUNT(*) > 0
		FROM ledger_entries WHERE account_id = $1
	`, accountID).Scan(&sum, &hasRows)
	return sum, hasRows, err
}

func scanLedgerEntry(row rowScanner) (ledger.Entry, error) {
	var e ledger.Entry
	var entryType, transferType, currency string
	var amountMinorUnits, balanceAfterMinorUnits int64
	if err := row.Scan(&e.ID, &e.AccountID, &e.CounterpartyAccountID, &e.TransferID,
		&entryType, &transferType, &amountMinorUnits, &currency,
		&balanceAfterMinorUnits, &e.OccurredAt, &e.CreatedAt); err != nil {
		return ledger.Entry{}, err
	}
	e.EntryType = ledger.EntryType(entryType)
	e.TransferType = ledger.TransferType(transferType)
	amount, err := money.New(amountMinorUnits, currency)
	if err != nil {
		return ledger.Entry{}, err
	}
	balanceAfter, err := money.New(balanceAfterMinorUnits, currency)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.Amount = amount
	e.BalanceAfter = balanceAfter
	return e, nil
}
