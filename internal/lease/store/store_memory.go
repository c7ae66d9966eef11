package store

import (
	"context"
	"sync"
	"time"

	"countersign/internal/lease/models"
	id "countersign/pkg/domain"
	"countersign/pkg/platform/sentinel"
)

// MemoryStore keeps leases in memory for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	leases map[id.LeaseID]*models.Lease
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[id.LeaseID]*models.Lease)}
}

func (s *MemoryStore) Create(_ context.Context, lease *models.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leases[lease.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *lease
	s.leases[lease.ID] = &copied
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lease, ok := s.leases[leaseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *lease
	return &copied, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, leaseID id.LeaseID, status models.LeaseStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lease, ok := s.leases[leaseID]
	if !ok {
		return sentinel.ErrNotFound
	}
	lease.Status = status
	lease.UpdatedAt = now
	return nil
}
