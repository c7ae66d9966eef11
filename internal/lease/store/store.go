// Package store persists lease rows.
package store

import (
	"context"
	"time"

	"countersign/internal/lease/models"
	id "countersign/pkg/domain"
)

// Store is the persistence contract for leases.
type Store interface {
	Create(ctx context.Context, lease *models.Lease) error
	FindByID(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error)

	// UpdateStatus overwrites the cached status projection. Last writer
	// wins across concurrent recomputations; the signer rows stay the
	// source of truth.
	UpdateStatus(ctx context.Context, leaseID id.LeaseID, status models.LeaseStatus, now time.Time) error
}
