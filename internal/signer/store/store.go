// Package store persists signer rows. Implementations return sentinel errors
// for infrastructure facts; services translate them into domain errors.
package store

import (
	"context"
	"time"

	"countersign/internal/signer/models"
	id "countersign/pkg/domain"
)

// Store is the persistence contract for signer rows.
type Store interface {
	// Create inserts a new signer row.
	Create(ctx context.Context, signer *models.Signer) error

	// FindByID returns the signer, including soft-removed rows.
	FindByID(ctx context.Context, signerID id.SignerID) (*models.Signer, error)

	// ListByLease returns all non-removed signers of the lease.
	ListByLease(ctx context.Context, leaseID id.LeaseID) ([]*models.Signer, error)

	// LinkProfile binds a signer to a registered profile. Linking is
	// permanent: once any party authenticates, their invited placeholder
	// becomes theirs.
	LinkProfile(ctx context.Context, signerID id.SignerID, profileID id.ProfileID, now time.Time) error

	// RecordSignature marks the signer signed and attaches the proof.
	// Returns sentinel.ErrAlreadyUsed when the signer is not pending.
	RecordSignature(ctx context.Context, signerID id.SignerID, proof *models.Proof, now time.Time) error

	// RecordRefusal marks a pending signer refused.
	RecordRefusal(ctx context.Context, signerID id.SignerID, now time.Time) error

	// ResetSignature reverts the signer to pending and clears proof fields.
	// Used both for compensating cleanup and for explicit owner-driven
	// resets ahead of a resignature.
	ResetSignature(ctx context.Context, signerID id.SignerID, now time.Time) error

	// SoftRemove flags a pending signer as removed. Signed rows are never
	// removed; implementations return sentinel.ErrInvalidState.
	SoftRemove(ctx context.Context, signerID id.SignerID, now time.Time) error
}
