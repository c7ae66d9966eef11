package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	leasemodels "countersign/internal/lease/models"
	"countersign/internal/outbox"
	signermodels "countersign/internal/signer/models"
	id "countersign/pkg/domain"
	"countersign/pkg/requestcontext"
)

// emitNotifications enqueues the outbox events downstream notifiers consume.
// Each append is independent: one failure is logged and does not block the
// others, and none of them fail the signing request.
func (s *Service) emitNotifications(ctx context.Context, lease *leasemodels.Lease, signer *signermodels.Signer, leaseStatus leasemodels.LeaseStatus) {
	payload := outbox.NotificationPayload{
		LeaseID:     lease.ID.String(),
		SignerRole:  string(signer.Role),
		SignerName:  signer.DisplayName(),
		LeaseStatus: string(leaseStatus),
	}

	if signer.Role == signermodels.RoleOwner {
		ownerSigned := payload
		ownerSigned.NextStep = map[string]string{
			"audience": "tenants",
			"hint":     "the owner has signed; waiting on remaining parties",
		}
		s.appendOutbox(ctx, lease.ID, outbox.EventOwnerSigned, ownerSigned)
	} else {
		tenantSigned := payload
		tenantSigned.NextStep = map[string]string{
			"audience": "owner",
			"hint":     "a party has signed; countersign when all tenants are done",
		}
		s.appendOutbox(ctx, lease.ID, outbox.EventTenantSigned, tenantSigned)
	}

	// Completion notifies both parties, each with their own next step.
	if leaseStatus == leasemodels.LeaseStatusFullySigned {
		forOwner := payload
		forOwner.NextStep = map[string]string{
			"audience": "owner",
			"hint":     "all parties have signed; the sealed document will be archived to your lease documents",
		}
		s.appendOutbox(ctx, lease.ID, outbox.EventFullySigned, forOwner)

		forTenants := payload
		forTenants.NextStep = map[string]string{
			"audience": "tenants",
			"hint":     "all parties have signed; your copy will be available once the document is sealed",
		}
		s.appendOutbox(ctx, lease.ID, outbox.EventFullySigned, forTenants)
	}
}

func (s *Service) appendOutbox(ctx context.Context, leaseID id.LeaseID, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.metrics.OutboxEnqueueErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to marshal outbox payload",
			"event_type", eventType, "lease_id", leaseID, "error", err)
		return
	}
	event := &outbox.Event{
		ID:            uuid.New(),
		AggregateType: "lease",
		AggregateID:   leaseID.String(),
		EventType:     eventType,
		CreatedAt:     requestcontext.Now(ctx),
		Payload:       body,
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		s.metrics.OutboxEnqueueErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to append outbox event",
			"event_type", eventType, "lease_id", leaseID, "error", err)
	}
}
