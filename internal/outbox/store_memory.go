package outbox

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"countersign/pkg/platform/sentinel"
)

// MemoryStore keeps outbox rows in memory for tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.events = append(s.events, &copied)
	return nil
}

func (s *MemoryStore) ListPending(_ context.Context, limit int, eventTypes ...string) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Event
	for _, event := range s.events {
		if event.Processed {
			continue
		}
		if len(eventTypes) > 0 && !slices.Contains(eventTypes, event.EventType) {
			continue
		}
		copied := *event
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.ID == eventID {
			now := time.Now()
			event.Processed = true
			event.ProcessedAt = &now
			return nil
		}
	}
	return sentinel.ErrNotFound
}

// All returns every stored event. Test helper.
func (s *MemoryStore) All() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, 0, len(s.events))
	for _, event := range s.events {
		copied := *event
		out = append(out, &copied)
	}
	return out
}
