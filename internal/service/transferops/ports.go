// Package transferops implements the Initiate-Transfer and
// Reverse-Transfer handlers of spec.md §4.8/§4.9. It orchestrates the
// transfer aggregate, the double-entry service, the ledger store, and
// the outbox store inside a single database transaction, keeping the
// transfer core decoupled from the account/ledger types at the type
// level per the cross-module port note in spec.md §9.
package transferops

import (
	"context"
	"time"

	"ledgercore/internal/domain/ledger"
	"ledgercore/internal/domain/outbox"
	"ledgercore/internal/domain/transfer"
	"ledgercore/internal/service/doubleentry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountExistence is the minimal capability needed to preflight-check
// that both accounts exist before any writes happen (spec.md §4.8.1).
type AccountExistence interface {
	Exists(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// TransferStore persists Transfer aggregates.
type TransferStore interface {
	Save(ctx context.Context, tx pgx.Tx, tr *transfer.Transfer) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*transfer.Transfer, error)
}

// LedgerAppender appends ledger entries idempotently (store enforces
// the (accountId, transferId, entryType) uniqueness of spec.md §4.6).
type LedgerAppender interface {
	Append(ctx context.Context, tx pgx.Tx, entry ledger.Entry) error
}

// OutboxAppender writes a transactional outbox row in the same tx as
// the domain writes it describes.
type OutboxAppender interface {
	Save(ctx context.Context, tx pgx.Tx, event outbox.Event) error
}

// Deps bundles the ports transferops needs, all satisfied by the
// postgres store layer in production and by fakes in unit tests.
type Deps struct {
	Accounts  AccountExistence
	Transfers TransferStore
	Ledger    LedgerAppender
	Outbox    OutboxAppender
	Entries   doubleentry.Store
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}
