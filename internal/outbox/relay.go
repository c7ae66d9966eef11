package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Publisher delivers one outbox event to the downstream bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Relay polls pending notification events and hands them to the publisher,
// marking each processed on success. Delivery is at-least-once: a crash after
// publish but before the mark yields a duplicate, and downstream consumers
// deduplicate on event ID.
type Relay struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	types     []string
}

// NewRelay builds a relay for the given event types. A zero interval defaults
// to one second; a zero batch size to 100.
func NewRelay(store Store, publisher Publisher, logger *slog.Logger, interval time.Duration, batchSize int, eventTypes ...string) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		types:     eventTypes,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// Drain processes one batch of pending events. Publish failures stop the
// batch so ordering per poll pass is preserved and the failed event is
// retried next tick.
func (r *Relay) Drain(ctx context.Context) error {
	events, err := r.store.ListPending(ctx, r.batchSize, r.types...)
	if err != nil {
		return err
	}
	for _, event := range events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.WarnContext(ctx, "outbox publish failed, will retry",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", err,
			)
			return nil
		}
		if err := r.store.MarkProcessed(ctx, event.ID); err != nil {
			r.logger.ErrorContext(ctx, "failed to mark outbox event processed",
				"event_id", event.ID,
				"error", err,
			)
			return nil
		}
	}
	return nil
}
