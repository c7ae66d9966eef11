package models

import (
	"time"

	id "countersign/pkg/domain"
	dErrors "countersign/pkg/domain-errors"
	"countersign/pkg/email"
)

// Role is a party's relationship to the lease.
type Role string

const (
	RoleOwner           Role = "owner"
	RolePrincipalTenant Role = "principal_tenant"
	RoleCoTenant        Role = "co_tenant"
	RoleGuarantor       Role = "guarantor"
)

// TenantSide reports whether the role belongs to the tenant family for
// status derivation and placeholder matching.
func (r Role) TenantSide() bool {
	return r == RolePrincipalTenant || r == RoleCoTenant
}

// SignatureStatus is one signer's progress on the lease.
type SignatureStatus string

const (
	SignaturePending SignatureStatus = "pending"
	SignatureSigned  SignatureStatus = "signed"
	SignatureRefused SignatureStatus = "refused"
)

// Signer is one party's signing relationship to a lease.
//
// Invariants:
//   - A signer is identity-linked (ProfileID set), invited-by-email
//     (InvitedEmail set), or both after linking. It is never neither; the
//     constructors enforce this.
//   - Once signed, a signer row is never hard-deleted. Removal before
//     signature is a soft removal so the audit trail survives.
//   - Proof is written once per signature; a resignature requires an explicit
//     reset which clears the prior proof first.
type Signer struct {
	ID           id.SignerID     `json:"id"`
	LeaseID      id.LeaseID      `json:"lease_id"`
	Role         Role            `json:"role"`
	Status       SignatureStatus `json:"status"`
	ProfileID    *id.ProfileID   `json:"profile_id,omitempty"`
	InvitedEmail string          `json:"invited_email,omitempty"`
	InvitedName  string          `json:"invited_name,omitempty"`
	SignedAt     *time.Time      `json:"signed_at,omitempty"`
	ImagePath    string          `json:"image_path,omitempty"`
	Proof        *Proof          `json:"proof,omitempty"`
	ContentHash  string          `json:"content_hash,omitempty"`
	Removed      bool            `json:"removed"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Proof is the immutable record attached to a signer once signed. The image
// itself lives in blob storage; ImagePath points at it and raw bytes are
// never embedded here.
type Proof struct {
	ProofID     id.ProofID `json:"proof_id"`
	SignedAt    time.Time  `json:"signed_at"`
	Method      string     `json:"method"`
	SignerName  string     `json:"signer_name"`
	SignerEmail string     `json:"signer_email"`
	ImagePath   string     `json:"image_path"`
	UserAgent   string     `json:"user_agent"`
	Device      string     `json:"device"`
	IP          string     `json:"ip"`
	ContentHash string     `json:"content_hash"`
}

// NewInvitedSigner creates a pending signer identified only by invited email.
func NewInvitedSigner(signerID id.SignerID, leaseID id.LeaseID, role Role, invitedEmail, invitedName string, now time.Time) (*Signer, error) {
	invitedEmail = email.Normalize(invitedEmail)
	if invitedEmail == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invited email is required")
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}
	return &Signer{
		ID:           signerID,
		LeaseID:      leaseID,
		Role:         role,
		Status:       SignaturePending,
		InvitedEmail: invitedEmail,
		InvitedName:  invitedName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewLinkedSigner creates a pending signer already bound to a profile.
func NewLinkedSigner(signerID id.SignerID, leaseID id.LeaseID, role Role, profileID id.ProfileID, now time.Time) (*Signer, error) {
	if profileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile id is required")
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}
	return &Signer{
		ID:        signerID,
		LeaseID:   leaseID,
		Role:      role,
		Status:    SignaturePending,
		ProfileID: &profileID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ParseRole validates a wire-format role string.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if err := validateRole(role); err != nil {
		return "", err
	}
	return role, nil
}

func validateRole(role Role) error {
	switch role {
	case RoleOwner, RolePrincipalTenant, RoleCoTenant, RoleGuarantor:
		return nil
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "invalid signer role: "+string(role))
	}
}

// Linked reports whether the signer is bound to a registered profile.
func (s *Signer) Linked() bool {
	return s.ProfileID != nil && !s.ProfileID.IsNil()
}

// LinkedTo reports whether the signer is bound to the given profile.
func (s *Signer) LinkedTo(profileID id.ProfileID) bool {
	return s.Linked() && *s.ProfileID == profileID
}

// Signed reports whether the signer has completed their signature.
func (s *Signer) Signed() bool {
	return s.Status == SignatureSigned
}

// Active reports whether the signer still counts toward the lease: not
// soft-removed and not refused. A refusal parks the lease until the owner
// removes or resets the refusing party.
func (s *Signer) Active() bool {
	return !s.Removed && s.Status != SignatureRefused
}

// DisplayName returns the best available name for notifications and proofs.
func (s *Signer) DisplayName() string {
	if s.InvitedName != "" {
		return s.InvitedName
	}
	if s.InvitedEmail != "" {
		first, last := email.DeriveNameFromEmail(s.InvitedEmail)
		return first + " " + last
	}
	return "Signer"
}
