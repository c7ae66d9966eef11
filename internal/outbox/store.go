package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for outbox rows.
type Store interface {
	// Append inserts one event. Insertion succeeds or fails independently
	// of the caller's primary transaction unless a transaction rides the
	// context.
	Append(ctx context.Context, event *Event) error

	// ListPending returns up to limit unprocessed events, oldest first,
	// optionally filtered by event type.
	ListPending(ctx context.Context, limit int, eventTypes ...string) ([]*Event, error)

	// MarkProcessed flags the event delivered. At-least-once: a crash
	// between delivery and marking yields a redelivery, so consumers must
	// be idempotent.
	MarkProcessed(ctx context.Context, eventID uuid.UUID) error
}
