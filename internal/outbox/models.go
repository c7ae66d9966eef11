// Package outbox implements the transactional outbox: cross-cutting side
// effects (notifications, seal retries) are appended as durable rows and
// delivered out-of-band with at-least-once semantics. Appends must never
// block or fail the primary state change; callers log enqueue failures and
// move on.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the signing flow.
const (
	EventTenantSigned = "lease.tenant_signed"
	EventOwnerSigned  = "lease.owner_signed"
	EventFullySigned  = "lease.fully_signed"
	EventSealRetry    = "lease.seal_retry"
)

// Event is one durable outbox row.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Processed     bool            `json:"processed"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// SealRetryPayload carries what the retry worker needs to re-invoke the seal.
type SealRetryPayload struct {
	LeaseID      string `json:"lease_id"`
	DocumentPath string `json:"document_path"`
	Reason       string `json:"reason"`
}

// NotificationPayload fans out to both portals; NextStep carries the
// role-specific hint shown after full completion.
type NotificationPayload struct {
	LeaseID     string            `json:"lease_id"`
	SignerRole  string            `json:"signer_role"`
	SignerName  string            `json:"signer_name"`
	LeaseStatus string            `json:"lease_status"`
	NextStep    map[string]string `json:"next_step,omitempty"`
}
