package postgres

import (
	"context"
	"errors"
	"time"

	"ledgercore/internal/domain/account"
	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/money"
	"ledgercore/internal/service/doubleentry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountStore persists the Account aggregate and doubles as the
// doubleentry.Store and transferops.AccountExistence port
// implementations, since both need the same row-locking primitive
// against the same table. Grounded on the teacher's AtomicTransfer
// (internal/infrastructure/database/postgres/postgres.go): lock with
// SELECT ... FOR UPDATE, mutate, UPDATE in place.
type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Create inserts a newly opened account.
func (s *AccountStore) Create(ctx context.Context, tx pgx.Tx, a *account.Account) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (id, owner, currency, balance_minor_units, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.Owner, a.Currency, a.Balance.MinorUnits(), string(a.Status), a.Version, a.CreatedAt, a.UpdatedAt)
	return err
}

// Get loads an account without locking, for read endpoints.
func (s *AccountStore) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, currency, balance_minor_units, status, version, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id)
	return scanAccount(row)
}

// Exists implements transferops.AccountExistence.
func (s *AccountStore) Exists(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// GetForUpdate loads and row-locks an account within tx.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*account.Account, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, owner, currency, balance_minor_units, status, version, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE
	`, id)
	return scanAccount(row)
}

// Save persists a mutated account, bumping its row in place.
func (s *AccountStore) Save(ctx context.Context, tx pgx.Tx, a *account.Account) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts
		SET balance_minor_units = $1, status = $2, version = $3, updated_at = $4
		WHERE id = $5
	`, a.Balance.MinorUnits(), string(a.Status), a.Version, a.UpdatedAt, a.ID)
	return err
}

// LockForUpdate implements doubleentry.Store.
func (s *AccountStore) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (doubleentry.AccountSnapshot, error) {
	var snap doubleentry.AccountSnapshot
	snap.ID = id
	err := tx.QueryRow(ctx, `
		SELECT balance_minor_units, currency, status FROM accounts WHERE id = $1 FOR UPDATE
	`, id).Scan(&snap.MinorUnits, &snap.Currency, &snap.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return doubleentry.AccountSnapshot{}, apierrors.ErrAccountNotFound
	}
	return snap, err
}

// ApplyDebit implements doubleentry.Store.
func (s *AccountStore) ApplyDebit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (int64, error) {
	var balanceAfter int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance_minor_units = balance_minor_units - $1, version = version + 1, updated_at = now()
		WHERE id = $2
		RETURNING balance_minor_units
	`, minorUnits, id).Scan(&balanceAfter)
	return balanceAfter, err
}

// ApplyCredit implements doubleentry.Store.
func (s *AccountStore) ApplyCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (int64, error) {
	var balanceAfter int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance_minor_units = balance_minor_units + $1, version = version + 1, updated_at = now()
		WHERE id = $2
		RETURNING balance_minor_units
	`, minorUnits, id).Scan(&balanceAfter)
	return balanceAfter, err
}

// LiveBalance implements reconciliation.Source.
func (s *AccountStore) LiveBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance_minor_units FROM accounts WHERE id = $1`, id).Scan(&balance)
	return balance, err
}

// AccountIDs implements reconciliation.Source.
func (s *AccountStore) AccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM accounts ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var (
		id                   uuid.UUID
		owner, currency      string
		balanceMinorUnits    int64
		status               string
		version              int
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &owner, &currency, &balanceMinorUnits, &status, &version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apierrors.ErrAccountNotFound
		}
		return nil, err
	}
	balance, err := money.New(balanceMinorUnits, currency)
	if err != nil {
		return nil, err
	}
	return account.Hydrate(id, owner, currency, balance, account.Status(status), version, createdAt, updatedAt), nil
}
