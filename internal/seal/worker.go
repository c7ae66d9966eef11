package seal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"countersign/internal/outbox"
	id "countersign/pkg/domain"
)

// RetryWorker drains seal-retry outbox events and re-invokes the sealer.
// The sealer is idempotent, so redelivery after a crash is harmless.
type RetryWorker struct {
	store     outbox.Store
	sealer    Sealer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewRetryWorker(store outbox.Store, sealer Sealer, logger *slog.Logger, interval time.Duration) *RetryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RetryWorker{
		store:     store,
		sealer:    sealer,
		logger:    logger,
		interval:  interval,
		batchSize: 50,
	}
}

// Run polls until the context is cancelled.
func (w *RetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "seal retry pass failed", "error", err)
			}
		}
	}
}

// Drain processes one batch of pending seal retries. A failed seal keeps its
// event pending for the next pass; a malformed payload is marked processed so
// it cannot wedge the queue.
func (w *RetryWorker) Drain(ctx context.Context) error {
	events, err := w.store.ListPending(ctx, w.batchSize, outbox.EventSealRetry)
	if err != nil {
		return err
	}

	for _, event := range events {
		var payload outbox.SealRetryPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			w.logger.ErrorContext(ctx, "dropping malformed seal retry event",
				"event_id", event.ID, "error", err)
			if err := w.store.MarkProcessed(ctx, event.ID); err != nil {
				return err
			}
			continue
		}

		leaseID, err := id.ParseLeaseID(payload.LeaseID)
		if err != nil {
			w.logger.ErrorContext(ctx, "dropping seal retry with bad lease id",
				"event_id", event.ID, "lease_id", payload.LeaseID)
			if err := w.store.MarkProcessed(ctx, event.ID); err != nil {
				return err
			}
			continue
		}

		if err := w.sealer.Seal(ctx, leaseID, payload.DocumentPath); err != nil {
			w.logger.WarnContext(ctx, "seal retry failed, keeping event pending",
				"event_id", event.ID,
				"lease_id", payload.LeaseID,
				"error", err,
			)
			continue
		}

		if err := w.store.MarkProcessed(ctx, event.ID); err != nil {
			return err
		}
		w.logger.InfoContext(ctx, "seal retry succeeded",
			"event_id", event.ID, "lease_id", payload.LeaseID)
	}
	return nil
}
