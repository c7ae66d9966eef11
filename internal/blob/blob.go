// Package blob provides durable storage for signature image bytes. Signer
// rows carry only the object key; raw image data never lands in a relational
// row or proof record.
package blob

import (
	"context"
	"fmt"
	"time"

	id "countersign/pkg/domain"
)

// Store is the object storage contract.
type Store interface {
	// Put writes the object; an existing key is overwritten.
	Put(ctx context.Context, key string, contentType string, data []byte) error

	// Get returns the object bytes and content type.
	Get(ctx context.Context, key string) ([]byte, string, error)

	// Delete removes the object. Deleting a missing key is not an error;
	// compensating cleanup must be idempotent.
	Delete(ctx context.Context, key string) error
}

// SignatureKey builds the per-lease, per-identity, timestamped object key for
// a signature image.
func SignatureKey(leaseID id.LeaseID, profileID id.ProfileID, at time.Time) string {
	return fmt.Sprintf("leases/%s/signatures/%s-%d.png", leaseID, profileID, at.UnixMilli())
}
