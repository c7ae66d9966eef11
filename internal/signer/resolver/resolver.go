// Package resolver matches an authenticated identity against the signer rows
// of a lease. Resolution may link an invited placeholder to the profile as a
// side effect: once any party authenticates, their placeholder becomes
// permanently theirs.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	leasemodels "countersign/internal/lease/models"
	signermodels "countersign/internal/signer/models"
	id "countersign/pkg/domain"
	dErrors "countersign/pkg/domain-errors"
	emailpkg "countersign/pkg/email"
	"countersign/pkg/platform/sentinel"
	"countersign/pkg/requestcontext"
)

// SignerStore is the slice of the signer store the resolver needs.
type SignerStore interface {
	ListByLease(ctx context.Context, leaseID id.LeaseID) ([]*signermodels.Signer, error)
	Create(ctx context.Context, signer *signermodels.Signer) error
	LinkProfile(ctx context.Context, signerID id.SignerID, profileID id.ProfileID, now time.Time) error
}

// LeaseStore is the slice of the lease store the resolver needs.
type LeaseStore interface {
	FindByID(ctx context.Context, leaseID id.LeaseID) (*leasemodels.Lease, error)
}

// Resolver decides which signer record an authenticated identity may act as.
type Resolver struct {
	signers SignerStore
	leases  LeaseStore
	logger  *slog.Logger
}

func New(signers SignerStore, leases LeaseStore, logger *slog.Logger) *Resolver {
	return &Resolver{signers: signers, leases: leases, logger: logger}
}

// Resolve returns the signer record the identity may sign as, or a refusal.
//
// Resolution order, first match wins (the ordering is a deliberate tie-break
// policy):
//  1. A signer already linked to this profile.
//  2. A signer invited by this exact email with no profile link yet; linked
//     now.
//  3. The sole unlinked pending tenant-family placeholder, claimed under a
//     warning even though the email differs; linked now. The fallback is
//     deliberately permissive so a tenant who registered under a different
//     address can still claim their seat, but only when the claim is
//     unambiguous.
//  4. The lease owner: an owner-role signer is found or created and linked.
//  5. Refusal: not authorized to sign this lease.
func (r *Resolver) Resolve(ctx context.Context, leaseID id.LeaseID, profileID id.ProfileID, accountEmail string) (*signermodels.Signer, error) {
	accountEmail = emailpkg.Normalize(accountEmail)

	signers, err := r.signers.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease signers")
	}

	// Step 1: already linked to this profile.
	for _, s := range signers {
		if s.LinkedTo(profileID) {
			return r.requirePending(s)
		}
	}

	// Step 2: invited by this exact email, not yet linked.
	if accountEmail != "" {
		for _, s := range signers {
			if !s.Linked() && s.InvitedEmail == accountEmail {
				return r.link(ctx, s, profileID)
			}
		}
	}

	// Step 3: sole unlinked pending tenant-family placeholder. Exact email
	// was handled above, so only the permissive fallback remains. With two
	// or more candidates the claim would be a guess, so ambiguity disables
	// the fallback entirely.
	var fallback *signermodels.Signer
	for _, s := range signers {
		if !s.Linked() && s.Role.TenantSide() && s.Status == signermodels.SignaturePending {
			if fallback != nil {
				fallback = nil
				break
			}
			fallback = s
		}
	}
	if fallback != nil {
		r.logger.WarnContext(ctx, "claiming unlinked tenant placeholder without email match",
			"lease_id", leaseID,
			"signer_id", fallback.ID,
			"profile_id", profileID,
			"invited_email", fallback.InvitedEmail,
			"account_email", accountEmail,
		)
		return r.link(ctx, fallback, profileID)
	}

	// Step 4: the property owner signs as the owner-role party.
	lease, err := r.leases.FindByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	if lease.OwnerProfileID == profileID {
		for _, s := range signers {
			if s.Role == signermodels.RoleOwner {
				if s.LinkedTo(profileID) || !s.Linked() {
					if !s.Linked() {
						return r.link(ctx, s, profileID)
					}
					return r.requirePending(s)
				}
			}
		}
		return r.createOwnerSigner(ctx, leaseID, profileID, accountEmail)
	}

	// Step 5: refusal.
	return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to sign this lease")
}

// requirePending rejects signers that already completed or refused.
func (r *Resolver) requirePending(s *signermodels.Signer) (*signermodels.Signer, error) {
	switch s.Status {
	case signermodels.SignatureSigned:
		return nil, dErrors.New(dErrors.CodeConflict, "already signed")
	case signermodels.SignatureRefused:
		return nil, dErrors.New(dErrors.CodeConflict, "already refused to sign this lease")
	default:
		return s, nil
	}
}

func (r *Resolver) link(ctx context.Context, s *signermodels.Signer, profileID id.ProfileID) (*signermodels.Signer, error) {
	resolved, err := r.requirePending(s)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if err := r.signers.LinkProfile(ctx, resolved.ID, profileID, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link signer")
	}
	linked := *resolved
	linked.ProfileID = &profileID
	linked.UpdatedAt = now
	return &linked, nil
}

func (r *Resolver) createOwnerSigner(ctx context.Context, leaseID id.LeaseID, profileID id.ProfileID, accountEmail string) (*signermodels.Signer, error) {
	now := requestcontext.Now(ctx)
	signer, err := signermodels.NewLinkedSigner(id.NewSignerID(), leaseID, signermodels.RoleOwner, profileID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build owner signer")
	}
	if accountEmail != "" {
		signer.InvitedEmail = accountEmail
		first, last := emailpkg.DeriveNameFromEmail(accountEmail)
		signer.InvitedName = first + " " + last
	}
	if err := r.signers.Create(ctx, signer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "owner signer already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create owner signer")
	}
	return signer, nil
}
