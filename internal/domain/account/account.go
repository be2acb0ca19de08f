// Package account implements the Account aggregate of spec.md §4.2:
// identity, balance, status state machine, and lifecycle transitions
// (freeze/unfreeze/close). Balance movement itself is driven by the
// double-entry service directly against the store, not through this
// aggregate — see doubleentry.Execute.
//
// Generalized from the teacher's internal/domain/account (balance
// mutation under a lock) and internal/domain/models (the Account
// struct), replacing the teacher's bare int id/balance with opaque
// UUID identity, a typed Money balance, and a full open/freeze/close
// state machine plus domain events.
package account

import (
	"time"

	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/money"

	"github.com/google/uuid"
)

// Status is the account lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusClosed Status = "closed"
)

// Account is the aggregate root for a single ledger account. All
// mutating methods append a domain event to the uncommitted queue;
// ReleaseEvents drains it for the caller to hand to the outbox.
type Account struct {
	ID        uuid.UUID
	Owner     string
	Currency  string
	Balance   money.Money
	Status    Status
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time

	uncommitted []Event
}

// Open creates a new Account in the active status with version 0,
// emitting Created. initialBalance must be non-negative and already
// carry the account's currency.
func Open(id uuid.UUID, owner string, initialBalance money.Money, now time.Time) (*Account, error) {
	if owner == "" || len(owner) > 255 {
		return nil, apierrors.NewValidationError("owner name must be non-blank and at most 255 characters")
	}
	a := &Account{
		ID:        id,
		Owner:     owner,
		Currency:  initialBalance.Currency(),
		Balance:   initialBalance,
		Status:    StatusActive,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.emit(Created{
		baseEvent: newBase(now),
		AccountID: id,
		Owner:     owner,
		Currency:  initialBalance.Currency(),
		Balance:   initialBalance,
	})
	return a, nil
}

// Hydrate reconstructs an Account from persisted fields without
// emitting any events — used by the store layer when loading.
func Hydrate(id uuid.UUID, owner, currency string, balance money.Money, status Status, version int, createdAt, updatedAt time.Time) *Account {
	return &Account{
		ID:        id,
		Owner:     owner,
		Currency:  currency,
		Balance:   balance,
		Status:    status,
		Version:   version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func (a *Account) emit(e Event) {
	a.uncommitted = append(a.uncommitted, e)
}

// ReleaseEvents drains and returns the uncommitted event queue. After
// this call the aggregate behaves as freshly loaded.
func (a *Account) ReleaseEvents() []Event {
	events := a.uncommitted
	a.uncommitted = nil
	return events
}

func (a *Account) checkMutable() error {
	switch a.Status {
	case StatusClosed:
		return apierrors.ErrAccountClosed
	case StatusFrozen:
		return apierrors.ErrAccountFrozen
	}
	return nil
}

// Freeze transitions active -> frozen.
func (a *Account) Freeze(now time.Time) error {
	if a.Status != StatusActive {
		return apierrors.ErrInvalidAccountState
	}
	a.Status = StatusFrozen
	a.Version++
	a.UpdatedAt = now
	a.emit(Frozen{baseEvent: newBase(now), AccountID: a.ID})
	return nil
}

// Unfreeze transitions frozen -> active.
func (a *Account) Unfreeze(now time.Time) error {
	if a.Status != StatusFrozen {
		return apierrors.ErrInvalidAccountState
	}
	a.Status = StatusActive
	a.Version++
	a.UpdatedAt = now
	a.emit(Unfrozen{baseEvent: newBase(now), AccountID: a.ID})
	return nil
}

// Close transitions active or frozen -> closed (terminal). Fails with
// ErrNonZeroBalanceOnClose if the balance is not zero, or
// ErrInvalidAccountState if already closed.
func (a *Account) Close(now time.Time) error {
	if a.Status == StatusClosed {
		return apierrors.ErrInvalidAccountState
	}
	if a.Balance.IsPositive() {
		return apierrors.ErrNonZeroBalanceOnClose
	}
	a.Status = StatusClosed
	a.Version++
	a.UpdatedAt = now
	a.emit(Closed{baseEvent: newBase(now), AccountID: a.ID})
	return nil
}
