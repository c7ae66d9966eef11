package audit

import (
	"time"
)

// Actions recorded by the signing flow.
const (
	ActionLeaseSigned    = "lease.signed"
	ActionLeaseRefused   = "lease.refused"
	ActionSignatureReset = "lease.signature_reset"
	ActionSignerInvited  = "lease.signer_invited"
	ActionSignerRemoved  = "lease.signer_removed"
)

// Entry is one append-only compliance record. Keep it transport-agnostic so
// stores and sinks can fan out.
type Entry struct {
	Timestamp  time.Time         `json:"timestamp"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
