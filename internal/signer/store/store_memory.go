package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"countersign/internal/signer/models"
	id "countersign/pkg/domain"
	"countersign/pkg/platform/sentinel"
)

// MemoryStore keeps signer rows in memory. It favors clarity over performance
// and backs handler and service unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	signers map[id.SignerID]*models.Signer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{signers: make(map[id.SignerID]*models.Signer)}
}

func (s *MemoryStore) Create(_ context.Context, signer *models.Signer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.signers[signer.ID]; exists {
		return sentinel.ErrConflict
	}
	s.signers[signer.ID] = cloneSigner(signer)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, signerID id.SignerID) (*models.Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSigner(signer), nil
}

func (s *MemoryStore) ListByLease(_ context.Context, leaseID id.LeaseID) ([]*models.Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Signer
	for _, signer := range s.signers {
		if signer.LeaseID == leaseID && !signer.Removed {
			out = append(out, cloneSigner(signer))
		}
	}
	// Stable order to mirror the Postgres store's ORDER BY created_at.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) LinkProfile(_ context.Context, signerID id.SignerID, profileID id.ProfileID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	signer.ProfileID = &profileID
	signer.UpdatedAt = now
	return nil
}

func (s *MemoryStore) RecordSignature(_ context.Context, signerID id.SignerID, proof *models.Proof, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if signer.Status != models.SignaturePending {
		return sentinel.ErrAlreadyUsed
	}
	proofCopy := *proof
	signer.Status = models.SignatureSigned
	signer.SignedAt = &proofCopy.SignedAt
	signer.ImagePath = proofCopy.ImagePath
	signer.ContentHash = proofCopy.ContentHash
	signer.Proof = &proofCopy
	signer.UpdatedAt = now
	return nil
}

func (s *MemoryStore) RecordRefusal(_ context.Context, signerID id.SignerID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if signer.Status != models.SignaturePending {
		return sentinel.ErrAlreadyUsed
	}
	signer.Status = models.SignatureRefused
	signer.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ResetSignature(_ context.Context, signerID id.SignerID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	signer.Status = models.SignaturePending
	signer.SignedAt = nil
	signer.ImagePath = ""
	signer.ContentHash = ""
	signer.Proof = nil
	signer.UpdatedAt = now
	return nil
}

func (s *MemoryStore) SoftRemove(_ context.Context, signerID id.SignerID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if signer.Status == models.SignatureSigned {
		return sentinel.ErrInvalidState
	}
	signer.Removed = true
	signer.UpdatedAt = now
	return nil
}

func cloneSigner(signer *models.Signer) *models.Signer {
	out := *signer
	if signer.ProfileID != nil {
		profileID := *signer.ProfileID
		out.ProfileID = &profileID
	}
	if signer.SignedAt != nil {
		signedAt := *signer.SignedAt
		out.SignedAt = &signedAt
	}
	if signer.Proof != nil {
		proof := *signer.Proof
		out.Proof = &proof
	}
	return &out
}
