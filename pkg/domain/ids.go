// Package domain defines the typed identifiers shared across the service.
// Wrapping uuid.UUID in distinct types keeps lease, signer, and profile IDs
// from being swapped at call sites.
package domain

import (
	"github.com/google/uuid"

	dErrors "countersign/pkg/domain-errors"
)

// LeaseID identifies a lease agreement.
type LeaseID uuid.UUID

// SignerID identifies one party's signing relationship to a lease.
type SignerID uuid.UUID

// ProfileID identifies a registered account.
type ProfileID uuid.UUID

// PropertyID identifies the property a lease covers.
type PropertyID uuid.UUID

// ProofID identifies an immutable signature proof record.
type ProofID uuid.UUID

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return parsed, nil
}

// ParseLeaseID parses and validates a lease ID from its string form.
func ParseLeaseID(raw string) (LeaseID, error) {
	parsed, err := parseUUID(raw, "lease")
	return LeaseID(parsed), err
}

// ParseSignerID parses and validates a signer ID from its string form.
func ParseSignerID(raw string) (SignerID, error) {
	parsed, err := parseUUID(raw, "signer")
	return SignerID(parsed), err
}

// ParseProfileID parses and validates a profile ID from its string form.
func ParseProfileID(raw string) (ProfileID, error) {
	parsed, err := parseUUID(raw, "profile")
	return ProfileID(parsed), err
}

// ParsePropertyID parses and validates a property ID from its string form.
func ParsePropertyID(raw string) (PropertyID, error) {
	parsed, err := parseUUID(raw, "property")
	return PropertyID(parsed), err
}

func (id LeaseID) String() string    { return uuid.UUID(id).String() }
func (id SignerID) String() string   { return uuid.UUID(id).String() }
func (id ProfileID) String() string  { return uuid.UUID(id).String() }
func (id PropertyID) String() string { return uuid.UUID(id).String() }
func (id ProofID) String() string    { return uuid.UUID(id).String() }

func (id LeaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SignerID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProofID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewLeaseID returns a fresh random lease ID.
func NewLeaseID() LeaseID { return LeaseID(uuid.New()) }

// NewSignerID returns a fresh random signer ID.
func NewSignerID() SignerID { return SignerID(uuid.New()) }

// NewProofID returns a fresh random proof ID.
func NewProofID() ProofID { return ProofID(uuid.New()) }
