package seal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countersign/internal/outbox"
	id "countersign/pkg/domain"
)

func appendRetry(t *testing.T, store outbox.Store, leaseID id.LeaseID) {
	t.Helper()
	payload, err := json.Marshal(outbox.SealRetryPayload{
		LeaseID:      leaseID.String(),
		DocumentPath: "leases/" + leaseID.String() + "/contract.pdf",
		Reason:       "seal endpoint returned 503",
	})
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), &outbox.Event{
		AggregateType: "lease",
		AggregateID:   leaseID.String(),
		EventType:     outbox.EventSealRetry,
		Payload:       payload,
	}))
}

func TestRetryWorkerSealsAndMarksProcessed(t *testing.T) {
	store := outbox.NewMemoryStore()
	leaseID := id.NewLeaseID()
	appendRetry(t, store, leaseID)

	var sealed []id.LeaseID
	worker := NewRetryWorker(store, Func(func(_ context.Context, leaseID id.LeaseID, _ string) error {
		sealed = append(sealed, leaseID)
		return nil
	}), slog.Default(), 0)

	require.NoError(t, worker.Drain(context.Background()))

	assert.Equal(t, []id.LeaseID{leaseID}, sealed)
	pending, err := store.ListPending(context.Background(), 10, outbox.EventSealRetry)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryWorkerKeepsEventPendingOnFailure(t *testing.T) {
	store := outbox.NewMemoryStore()
	appendRetry(t, store, id.NewLeaseID())

	worker := NewRetryWorker(store, Func(func(context.Context, id.LeaseID, string) error {
		return errors.New("still unavailable")
	}), slog.Default(), 0)

	require.NoError(t, worker.Drain(context.Background()))

	pending, err := store.ListPending(context.Background(), 10, outbox.EventSealRetry)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRetryWorkerDropsMalformedPayload(t *testing.T) {
	store := outbox.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), &outbox.Event{
		AggregateType: "lease",
		AggregateID:   "corrupt",
		EventType:     outbox.EventSealRetry,
		Payload:       json.RawMessage(`{"lease_id": 42`),
	}))

	called := false
	worker := NewRetryWorker(store, Func(func(context.Context, id.LeaseID, string) error {
		called = true
		return nil
	}), slog.Default(), 0)

	require.NoError(t, worker.Drain(context.Background()))

	assert.False(t, called)
	pending, err := store.ListPending(context.Background(), 10, outbox.EventSealRetry)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
