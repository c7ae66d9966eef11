// Package status derives a lease's aggregate lifecycle state from its signer
// rows. Derive is a pure function: signer facts are the source of truth and
// the stored lease status is only a cached projection of them.
package status

import (
	leasemodels "countersign/internal/lease/models"
	signermodels "countersign/internal/signer/models"
)

// Derive computes the lease status for the given signer set. Soft-removed
// and refused signers do not count: a refusal parks the lease until the
// owner removes the refusing party. The result is order-independent.
//
// Rules, in precedence order:
//  1. No signers → draft.
//  2. Fewer than two signers, or no owner-role signer, or no tenant-role
//     signer → draft if nobody signed yet, else partially_signed.
//  3. Everyone signed and every tenant-role signer is identity-linked →
//     fully_signed.
//  4. Everyone signed but some tenant-role signer has no identity link →
//     partially_signed. An unclaimed signature offers no accountable party,
//     so completion is withheld until the tenant has claimed an identity.
//  5. Every non-owner signer signed, owner has not → pending_owner_signature.
//     The owner is expected to countersign last and the distinct state drives
//     owner-specific notifications.
//  6. At least one signature present → partially_signed.
//  7. Otherwise → pending_signature.
func Derive(signers []*signermodels.Signer) leasemodels.LeaseStatus {
	var (
		active         []*signermodels.Signer
		signedCount    int
		hasOwner       bool
		hasTenantRole  bool
		hasNonOwner    bool
		ownerSigned    = true
		nonOwnerSigned = true
		tenantsLinked  = true
	)

	for _, s := range signers {
		if !s.Active() {
			continue
		}
		active = append(active, s)

		if s.Signed() {
			signedCount++
		}
		switch {
		case s.Role == signermodels.RoleOwner:
			hasOwner = true
			if !s.Signed() {
				ownerSigned = false
			}
		default:
			hasNonOwner = true
			if !s.Signed() {
				nonOwnerSigned = false
			}
		}
		if s.Role.TenantSide() {
			hasTenantRole = true
			if !s.Linked() {
				tenantsLinked = false
			}
		}
	}

	if len(active) == 0 {
		return leasemodels.LeaseStatusDraft
	}

	if len(active) < 2 || !hasOwner || !hasTenantRole {
		if signedCount == 0 {
			return leasemodels.LeaseStatusDraft
		}
		return leasemodels.LeaseStatusPartiallySigned
	}

	allSigned := signedCount == len(active)
	if allSigned {
		if tenantsLinked {
			return leasemodels.LeaseStatusFullySigned
		}
		return leasemodels.LeaseStatusPartiallySigned
	}

	if hasNonOwner && nonOwnerSigned && !ownerSigned {
		return leasemodels.LeaseStatusPendingOwnerSignature
	}

	if signedCount > 0 {
		return leasemodels.LeaseStatusPartiallySigned
	}
	return leasemodels.LeaseStatusPendingSignature
}
