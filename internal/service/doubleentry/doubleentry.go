// Package doubleentry implements the atomic double-entry service of
// spec.md §4.7: deterministic lock ordering, debit+credit, and balance
// snapshots tagged for outbox attribution. Per the cross-module port
// design note of spec.md §9, this package takes only primitive DTOs at
// its boundary (ids, amounts, currency strings) so the transfer core
// never imports the account package at the type level — callers supply
// a Store implementation that knows how to lock, load, and
// persist accounts.
//
// Grounded on the teacher's AtomicTransfer in
// internal/infrastructure/database/postgres/postgres.go: lock the two
// rows in ascending ID order regardless of which side is source or
// destination, eliminating AB/BA deadlocks between concurrent transfers
// touching the same account pair.
package doubleentry

import (
	"context"
	"math"
	"sort"
	"time"

	"ledgercore/internal/domain/apierrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountSnapshot is the primitive view of an account this service
// needs: current balance and currency, nothing else.
type AccountSnapshot struct {
	ID         uuid.UUID
	MinorUnits int64
	Currency   string
	Status     string // "active", "frozen", "closed"
}

// DebitedEvent and CreditedEvent are the primitive, aggregate-agnostic
// shape of the account-level domain events this service produces, for
// the caller to translate into outbox rows.
type DebitedEvent struct {
	AccountID    uuid.UUID
	TransferID   uuid.UUID
	MinorUnits   int64
	Currency     string
	BalanceAfter int64
	OccurredAt   time.Time
}

type CreditedEvent struct {
	AccountID    uuid.UUID
	TransferID   uuid.UUID
	MinorUnits   int64
	Currency     string
	BalanceAfter int64
	OccurredAt   time.Time
}

// Store is the capability boundary the service needs from the account
// persistence layer: lock-in-order, mutate, persist. It takes only
// primitive DTOs, never account.Account, to keep the transfer core
// decoupled from the account aggregate's type.
type Store interface {
	// LockForUpdate locks and returns the account row identified by id,
	// within tx. Callers must invoke this in the order the service
	// determines, never in caller-supplied order.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (AccountSnapshot, error)
	// ApplyDebit persists the debit and returns the resulting balance.
	ApplyDebit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (balanceAfter int64, err error)
	// ApplyCredit persists the credit and returns the resulting balance.
	ApplyCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (balanceAfter int64, err error)
}

// Result holds the two balance snapshots and the two account-level
// events produced by a successful Execute call, tagged with
// the transfer ID for outbox attribution.
type Result struct {
	SourceBalanceAfter      int64
	DestinationBalanceAfter int64
	Debited                 DebitedEvent
	Credited                CreditedEvent
}

// Execute performs the atomic double-entry movement of spec.md §4.7.
// It does not open a transaction: it runs inside the caller's tx. It
// returns the apierrors domain-validation sentinels
// (ErrCurrencyMismatch, ErrInsufficientFunds, ErrAccountFrozen, ...)
// unwrapped, so the caller can map them to the matching API error code.
func Execute(ctx context.Context, tx pgx.Tx, store Store, sourceID, destinationID uuid.UUID, minorUnits int64, currency string, transferID uuid.UUID, now time.Time) (Result, error) {
	firstID, secondID := sourceID, destinationID
	if sortKey(destinationID) < sortKey(sourceID) {
		firstID, secondID = destinationID, sourceID
	}

	first, err := store.LockForUpdate(ctx, tx, firstID)
	if err != nil {
		return Result{}, err
	}
	second, err := store.LockForUpdate(ctx, tx, secondID)
	if err != nil {
		return Result{}, err
	}

	var source, destination AccountSnapshot
	if first.ID == sourceID {
		source, destination = first, second
	} else {
		source, destination = second, first
	}

	if err := validateMovable(source, destination, minorUnits, currency); err != nil {
		return Result{}, err
	}

	sourceBalanceAfter, err := store.ApplyDebit(ctx, tx, source.ID, minorUnits)
	if err != nil {
		return Result{}, err
	}
	destinationBalanceAfter, err := store.ApplyCredit(ctx, tx, destination.ID, minorUnits)
	if err != nil {
		return Result{}, err
	}

	return Result{
		SourceBalanceAfter:      sourceBalanceAfter,
		DestinationBalanceAfter: destinationBalanceAfter,
		Debited: DebitedEvent{
			AccountID:    source.ID,
			TransferID:   transferID,
			MinorUnits:   minorUnits,
			Currency:     currency,
			BalanceAfter: sourceBalanceAfter,
			OccurredAt:   now,
		},
		Credited: CreditedEvent{
			AccountID:    destination.ID,
			TransferID:   transferID,
			MinorUnits:   minorUnits,
			Currency:     currency,
			BalanceAfter: destinationBalanceAfter,
			OccurredAt:   now,
		},
	}, nil
}

// sortKey returns the canonical byte-order sort key for an account ID:
// the UUID's string form, compared lexicographically.
func sortKey(id uuid.UUID) string { return id.String() }

// validateMovable checks currency match, active status on both sides,
// sufficient source funds, and int64 overflow on the destination
// balance before any write is issued.
func validateMovable(source, destination AccountSnapshot, minorUnits int64, currency string) error {
	if source.Currency != currency || destination.Currency != currency {
		return apierrors.ErrCurrencyMismatch
	}
	if source.Status != "active" {
		return statusErr(source.Status)
	}
	if destination.Status != "active" {
		return statusErr(destination.Status)
	}
	if source.MinorUnits < minorUnits {
		return apierrors.ErrInsufficientFunds
	}
	if destination.MinorUnits > math.MaxInt64-minorUnits {
		return apierrors.ErrBalanceOverflow
	}
	return nil
}

func statusErr(status string) error {
	switch status {
	case "frozen":
		return apierrors.ErrAccountFrozen
	case "closed":
		return apierrors.ErrAccountClosed
	default:
		return apierrors.ErrInvalidAccountState
	}
}

// sortedPair returns a and b in the same canonical order Execute locks
// them in. It is unexported and nothing in the package calls it.
func sortedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	ids := []uuid.UUID{a, b}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids[0], ids[1]
}
