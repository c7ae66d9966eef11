// Package seal invokes the external seal operation that finalizes a fully
// signed lease document. Sealing is idempotent on the provider side: calling
// it twice for the same lease is safe, which is what makes the at-least-once
// outbox retry sound.
package seal

import (
	"context"

	id "countersign/pkg/domain"
)

// Sealer finalizes a fully signed lease document.
type Sealer interface {
	Seal(ctx context.Context, leaseID id.LeaseID, documentPath string) error
}

// Func adapts a function to the Sealer interface for tests.
type Func func(ctx context.Context, leaseID id.LeaseID, documentPath string) error

func (f Func) Seal(ctx context.Context, leaseID id.LeaseID, documentPath string) error {
	return f(ctx, leaseID, documentPath)
}
