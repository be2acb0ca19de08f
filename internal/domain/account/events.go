package account

import (
	"time"

	"ledgercore/internal/domain/money"

	"github.com/google/uuid"
)

// Event is the tagged-sum-type domain event an Account aggregate emits.
// Concrete event types are distinguished by EventType(); handlers type-switch
// on the concrete type when they need structured fields (e.g. for the
// outbox), and use EventType() as the event's fully-qualified name.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

type baseEvent struct {
	occurredAt time.Time
}

func (b baseEvent) OccurredAt() time.Time { return b.occurredAt }

// Created is emitted by Open.
type Created struct {
	baseEvent
	AccountID uuid.UUID
	Owner     string
	Currency  string
	Balance   money.Money
}

func (Created) EventType() string { return "account.created" }

// Frozen is emitted by Freeze.
type Frozen struct {
	baseEvent
	AccountID uuid.UUID
}

func (Frozen) EventType() string { return "account.frozen" }

// Unfrozen is emitted by Unfreeze.
type Unfrozen struct {
	baseEvent
	AccountID uuid.UUID
}

func (Unfrozen) EventType() string { return "account.unfrozen" }

// Closed is emitted by Close.
type Closed struct {
	baseEvent
	AccountID uuid.UUID
}

func (Closed) EventType() string { return "account.closed" }

func newBase(now time.Time) baseEvent { return baseEvent{occurredAt: now} }
