package models

import (
	"time"

	id "countersign/pkg/domain"
)

// Lease is the agreement between an owner and one or more tenant-side parties
// over a property.
//
// Invariants:
//   - Status moves monotonically in the signing direction (draft →
//     pending_signature → partially_signed → pending_owner_signature →
//     fully_signed) until an external process activates, terminates, or
//     archives the lease.
//   - A lease with status terminated or archived is immutable for signature
//     purposes. Signable() is the single enforcement point.
//   - Status is a cached projection of the signer rows; signer facts are the
//     source of truth and status is recomputed after every signer mutation.
type Lease struct {
	ID             id.LeaseID     `json:"id"`
	PropertyID     id.PropertyID  `json:"property_id"`
	OwnerProfileID id.ProfileID   `json:"owner_profile_id"`
	Status         LeaseStatus    `json:"status"`
	Type           LeaseType      `json:"type"`
	RentCents      int64          `json:"rent_cents"`
	DepositCents   int64          `json:"deposit_cents"`
	ChargesCents   int64          `json:"charges_cents"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        *time.Time     `json:"end_date,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Signable reports whether the lease may still collect signatures.
func (l *Lease) Signable() bool {
	switch l.Status {
	case LeaseStatusTerminated, LeaseStatusArchived:
		return false
	default:
		return true
	}
}

// LeaseType distinguishes the contract flavors offered by the product.
type LeaseType string

const (
	LeaseTypeStandard      LeaseType = "standard"
	LeaseTypeMobility      LeaseType = "mobility"
	LeaseTypeSharedHousing LeaseType = "shared_housing"
	LeaseTypeFurnished     LeaseType = "furnished"
)

// LeaseStatus is the aggregate lifecycle state of a lease.
type LeaseStatus string

const (
	// Signing-direction states, derived from signer rows.
	LeaseStatusDraft                 LeaseStatus = "draft"
	LeaseStatusPendingSignature      LeaseStatus = "pending_signature"
	LeaseStatusPartiallySigned       LeaseStatus = "partially_signed"
	LeaseStatusPendingOwnerSignature LeaseStatus = "pending_owner_signature"
	LeaseStatusFullySigned           LeaseStatus = "fully_signed"

	// Terminal-direction states, set by processes outside the signing flow.
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusTerminated LeaseStatus = "terminated"
	LeaseStatusArchived   LeaseStatus = "archived"
)

// SigningRank orders the signing-direction states for monotonicity checks.
// Terminal states return -1; they are never re-entered by the signing flow.
func (s LeaseStatus) SigningRank() int {
	switch s {
	case LeaseStatusDraft:
		return 0
	case LeaseStatusPendingSignature:
		return 1
	case LeaseStatusPartiallySigned:
		return 2
	case LeaseStatusPendingOwnerSignature:
		return 3
	case LeaseStatusFullySigned:
		return 4
	default:
		return -1
	}
}
