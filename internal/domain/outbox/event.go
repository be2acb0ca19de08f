// Package outbox defines the OutboxEvent type of spec.md §3/§4.10: the
// durable, transactionally-written record that carries a domain event
// from the database to the message broker at least once. Canonical
// JSON encoding of the payload (RFC 8785, via gowebpki/jcs) is computed
// at construction time so the hash used for downstream deduplication
// is stable regardless of Go map key ordering — grounded on the
// payload_canonical handling in the community-bank-platform ledger
// store reference.
package outbox

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// DefaultMaxAttempts is the dead-letter threshold of spec.md §4.11 used
// when no configured value is available. Production wiring passes
// Core.OutboxMaxAttempts instead.
const DefaultMaxAttempts = 5

// lastErrorCap bounds the stored failure message so a pathological
// error string can never make the outbox row unbounded.
const lastErrorCap = 2000

// Event is a single transactional-outbox row.
type Event struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       json.RawMessage
	PayloadJCS    string
	OccurredAt    time.Time
	CreatedAt     time.Time
	PublishedAt   *time.Time
	AttemptCount  int
	LastError     string
}

// New constructs an Event with an id generated via UUID v7, so outbox
// ids are time-ordered. The poll-claim query of spec.md §4.11 orders by
// created_at, backed by the partial idx_outbox_unpublished index, not
// by id.
func New(aggregateType string, aggregateID uuid.UUID, eventType string, payload any, occurredAt, createdAt time.Time) (Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		PayloadJCS:    string(canon),
		OccurredAt:    occurredAt,
		CreatedAt:     createdAt,
	}, nil
}

// Hydrate reconstructs an Event from persisted fields without
// recomputing the canonical payload.
func Hydrate(id uuid.UUID, aggregateType string, aggregateID uuid.UUID, eventType string, payload json.RawMessage, payloadJCS string, occurredAt, createdAt time.Time, publishedAt *time.Time, attemptCount int, lastError string) Event {
	return Event{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		PayloadJCS:    payloadJCS,
		OccurredAt:    occurredAt,
		CreatedAt:     createdAt,
		PublishedAt:   publishedAt,
		AttemptCount:  attemptCount,
		LastError:     lastError,
	}
}

// MarkPublished stamps the event as delivered.
func (e *Event) MarkPublished(now time.Time) {
	published := now
	e.PublishedAt = &published
}

// RecordFailure increments the attempt counter and stores a truncated
// error message. Truncation happens on a rune boundary so the stored
// string is never invalid UTF-8.
func (e *Event) RecordFailure(err error) {
	e.AttemptCount++
	e.LastError = truncateAtRuneBoundary(err.Error(), lastErrorCap)
}

// IsDead reports whether the event has exhausted its retry budget.
// maxAttempts <= 0 substitutes DefaultMaxAttempts.
func (e Event) IsDead(maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return e.PublishedAt == nil && e.AttemptCount >= maxAttempts
}

func truncateAtRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
