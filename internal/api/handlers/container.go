// Package handlers implements the HTTP surface of spec.md §6: account
// lifecycle, transfer initiate/reverse, and the read endpoints, all
// wrapped in the uniform {"data": ...} / {"error": {...}} envelope.
// Generalized from the teacher's closure-based
// MakeXHandler(container) pattern in internal/api/handlers/{account,
// transfer}.go, now composing the transferops/doubleentry/txn service
// layer instead of talking to a single in-memory repository directly.
package handlers

import (
	"context"
	"time"

	"ledgercore/internal/domain/account"
	"ledgercore/internal/domain/ledger"
	"ledgercore/internal/domain/transfer"
	"ledgercore/internal/outbox"
	"ledgercore/internal/service/doubleentry"
	"ledgercore/internal/service/transferops"
	"ledgercore/internal/service/txn"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo is every account read/write operation the handlers and
// service layer need.
type AccountRepo interface {
	Create(ctx context.Context, tx pgx.Tx, a *account.Account) error
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
	Exists(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*account.Account, error)
	Save(ctx context.Context, tx pgx.Tx, a *account.Account) error
	doubleentry.Store
}

// TransferRepo is the read/write surface transfer handlers use.
type TransferRepo interface {
	transferops.TransferStore
	Get(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, filter transfer.ListFilter) ([]*transfer.Transfer, error)
}

// LedgerRepo is the append-only ledger surface.
type LedgerRepo interface {
	transferops.LedgerAppender
	FindByAccountAndRange(ctx context.Context, accountID uuid.UUID, from, to *time.Time, page, perPage int) ([]ledger.Entry, error)
	FindLastBefore(ctx context.Context, accountID uuid.UUID, ts time.Time) (ledger.Entry, bool, error)
	FindLastAtOrBefore(ctx context.Context, accountID uuid.UUID, ts time.Time) (ledger.Entry, bool, error)
}

// OutboxRepo is the outbox append surface the handlers use when
// enqueuing account/transfer events inside the HTTP request's
// transaction.
type OutboxRepo interface {
	Save(ctx context.Context, tx pgx.Tx, e outbox.Event) error
}

// TxManager runs fn inside a deadlock-retrying transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn txn.Fn) error
}

// Container holds every dependency the handler constructors close
// over, replacing the teacher's single-repository
// HandlerDependencies interface with the full service-layer wiring
// this domain needs.
type Container struct {
	Tx        TxManager
	Accounts  AccountRepo
	Transfers TransferRepo
	Ledger    LedgerRepo
	Outbox    OutboxRepo
	Now       func() time.Time
}

func (c *Container) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Container) deps() transferops.Deps {
	return transferops.Deps{
		Accounts:  c.Accounts,
		Transfers: c.Transfers,
		Ledger:    c.Ledger,
		Outbox:    c.Outbox,
		Entries:   c.Accounts,
		Now:       c.Now,
	}
}
