// Package service orchestrates the signing flow: resolve the acting signer,
// validate and store the signature image, stamp the proof, recompute the
// lease status, and fire the seal and notification side effects.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"countersign/internal/audit"
	"countersign/internal/blob"
	leasemodels "countersign/internal/lease/models"
	"countersign/internal/lease/status"
	"countersign/internal/outbox"
	"countersign/internal/ratelimit"
	"countersign/internal/seal"
	signermodels "countersign/internal/signer/models"
	"countersign/internal/signing/device"
	"countersign/internal/signing/image"
	"countersign/internal/signing/metrics"
	"countersign/pkg/canonhash"
	id "countersign/pkg/domain"
	dErrors "countersign/pkg/domain-errors"
	emailpkg "countersign/pkg/email"
	"countersign/pkg/platform/sentinel"
	"countersign/pkg/platform/tx"
	"countersign/pkg/requestcontext"
)

// Resolver decides which signer record an identity may act as.
type Resolver interface {
	Resolve(ctx context.Context, leaseID id.LeaseID, profileID id.ProfileID, accountEmail string) (*signermodels.Signer, error)
}

// LeaseStore is the slice of the lease store the signing flow needs.
type LeaseStore interface {
	FindByID(ctx context.Context, leaseID id.LeaseID) (*leasemodels.Lease, error)
	UpdateStatus(ctx context.Context, leaseID id.LeaseID, status leasemodels.LeaseStatus, now time.Time) error
}

// SignerStore is the slice of the signer store the signing flow needs.
type SignerStore interface {
	ListByLease(ctx context.Context, leaseID id.LeaseID) ([]*signermodels.Signer, error)
	FindByID(ctx context.Context, signerID id.SignerID) (*signermodels.Signer, error)
	Create(ctx context.Context, signer *signermodels.Signer) error
	RecordSignature(ctx context.Context, signerID id.SignerID, proof *signermodels.Proof, now time.Time) error
	RecordRefusal(ctx context.Context, signerID id.SignerID, now time.Time) error
	ResetSignature(ctx context.Context, signerID id.SignerID, now time.Time) error
	SoftRemove(ctx context.Context, signerID id.SignerID, now time.Time) error
}

// ClientMetadata is the optional pad telemetry submitted with a signature.
type ClientMetadata struct {
	ScreenWidth  int  `json:"screen_width,omitempty"`
	ScreenHeight int  `json:"screen_height,omitempty"`
	TouchDevice  bool `json:"touch_device,omitempty"`
}

// SignRequest carries the inputs of one signing call.
type SignRequest struct {
	SignatureImage string
	Metadata       ClientMetadata
}

// SignResult reports a durably recorded signature.
type SignResult struct {
	ProofID     id.ProofID
	SignerID    id.SignerID
	LeaseStatus leasemodels.LeaseStatus
}

// Service wires the signing flow's collaborators.
type Service struct {
	leases   LeaseStore
	signers  SignerStore
	resolver Resolver
	blobs    blob.Store
	outbox   outbox.Store
	audit    *audit.Publisher
	sealer   seal.Sealer
	limiter  ratelimit.Limiter
	txr      tx.Runner
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

func New(
	leases LeaseStore,
	signers SignerStore,
	resolver Resolver,
	blobs blob.Store,
	outboxStore outbox.Store,
	auditPublisher *audit.Publisher,
	sealer seal.Sealer,
	limiter ratelimit.Limiter,
	txr tx.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		leases:   leases,
		signers:  signers,
		resolver: resolver,
		blobs:    blobs,
		outbox:   outboxStore,
		audit:    auditPublisher,
		sealer:   sealer,
		limiter:  limiter,
		txr:      txr,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("countersign/signing"),
	}
}

// Sign records one party's signature on a lease.
//
// Ordering is strict: rate limit → validate → resolve → upload → record →
// recompute status → seal/notify. Validation runs before resolution because
// resolution links invited placeholders as a side effect and a bad image
// must leave no trace. The record step, the status projection and the
// notification events commit in one transaction; sealing happens after the
// commit and never fails the request.
func (s *Service) Sign(ctx context.Context, leaseID id.LeaseID, profileID id.ProfileID, accountEmail string, req SignRequest) (*SignResult, error) {
	ctx, span := s.tracer.Start(ctx, "signing.Sign",
		trace.WithAttributes(attribute.String("lease.id", leaseID.String())))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.SignDuration.Observe(time.Since(start).Seconds()) }()

	if err := s.checkRateLimit(ctx, profileID); err != nil {
		s.metrics.SignatureFailures.WithLabelValues("rate_limited").Inc()
		return nil, err
	}

	lease, err := s.leases.FindByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	if !lease.Signable() {
		s.metrics.SignatureFailures.WithLabelValues("not_signable").Inc()
		return nil, dErrors.New(dErrors.CodeConflict, "lease is no longer open for signature")
	}

	img, err := image.Validate(req.SignatureImage)
	if err != nil {
		s.metrics.SignatureFailures.WithLabelValues("invalid_image").Inc()
		return nil, err
	}

	signer, err := s.resolver.Resolve(ctx, leaseID, profileID, accountEmail)
	if err != nil {
		s.metrics.SignatureFailures.WithLabelValues("not_authorized").Inc()
		return nil, err
	}

	now := requestcontext.Now(ctx)
	contentHash, _, err := canonhash.SumObject(leaseSnapshot(lease))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash lease snapshot")
	}

	imagePath := blob.SignatureKey(leaseID, profileID, now)
	if err := s.blobs.Put(ctx, imagePath, img.ContentType, img.Data); err != nil {
		s.metrics.SignatureFailures.WithLabelValues("storage").Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "signing failed, please retry")
	}

	signerEmail := signer.InvitedEmail
	if signerEmail == "" {
		signerEmail = emailpkg.Normalize(accountEmail)
	}
	proof := &signermodels.Proof{
		ProofID:     id.NewProofID(),
		SignedAt:    now,
		Method:      "signature_image",
		SignerName:  signer.DisplayName(),
		SignerEmail: signerEmail,
		ImagePath:   imagePath,
		UserAgent:   requestcontext.UserAgent(ctx),
		Device:      device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		IP:          requestcontext.ClientIP(ctx),
		ContentHash: contentHash,
	}

	var leaseStatus leasemodels.LeaseStatus
	txErr := s.txr.InTx(ctx, func(ctx context.Context) error {
		if err := s.signers.RecordSignature(ctx, signer.ID, proof, now); err != nil {
			return err
		}
		leaseStatus = s.recomputeStatus(ctx, lease, now)
		s.emitNotifications(ctx, lease, signer, leaseStatus)
		s.emitAudit(ctx, audit.Entry{
			ActorID:    profileID.String(),
			Action:     audit.ActionLeaseSigned,
			EntityType: "lease",
			EntityID:   leaseID.String(),
			Metadata:   auditMetadata(signer, proof.ProofID, proof.IP, contentHash, req.Metadata),
		})
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, sentinel.ErrAlreadyUsed) {
			// A concurrent submission already finalized this signer. The
			// committed signature is theirs; only our upload is ours to
			// clean up.
			s.deleteUpload(ctx, imagePath)
			s.metrics.SignatureFailures.WithLabelValues("already_signed").Inc()
			return nil, dErrors.New(dErrors.CodeConflict, "already signed")
		}
		s.compensateUpload(ctx, signer.ID, imagePath, now)
		s.metrics.SignatureFailures.WithLabelValues("record").Inc()
		return nil, dErrors.Wrap(txErr, dErrors.CodeInternal, "signing failed, please retry")
	}

	s.metrics.SignaturesRecorded.WithLabelValues(string(signer.Role)).Inc()

	// The signature is durably committed; everything below must never undo
	// or fail it.
	if leaseStatus == leasemodels.LeaseStatusFullySigned && lease.Status != leasemodels.LeaseStatusFullySigned {
		s.sealLease(ctx, leaseID)
	}

	return &SignResult{
		ProofID:     proof.ProofID,
		SignerID:    signer.ID,
		LeaseStatus: leaseStatus,
	}, nil
}

// Refuse records a signer's explicit refusal. No proof is produced.
func (s *Service) Refuse(ctx context.Context, leaseID id.LeaseID, profileID id.ProfileID, accountEmail string) (leasemodels.LeaseStatus, error) {
	lease, err := s.leases.FindByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	if !lease.Signable() {
		return "", dErrors.New(dErrors.CodeConflict, "lease is no longer open for signature")
	}

	signer, err := s.resolver.Resolve(ctx, leaseID, profileID, accountEmail)
	if err != nil {
		return "", err
	}

	now := requestcontext.Now(ctx)
	var leaseStatus leasemodels.LeaseStatus
	txErr := s.txr.InTx(ctx, func(ctx context.Context) error {
		if err := s.signers.RecordRefusal(ctx, signer.ID, now); err != nil {
			return err
		}
		leaseStatus = s.recomputeStatus(ctx, lease, now)
		s.emitAudit(ctx, audit.Entry{
			ActorID:    profileID.String(),
			Action:     audit.ActionLeaseRefused,
			EntityType: "lease",
			EntityID:   leaseID.String(),
			Metadata:   map[string]string{"signer_id": signer.ID.String()},
		})
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, sentinel.ErrAlreadyUsed) {
			return "", dErrors.New(dErrors.CodeConflict, "signature already finalized")
		}
		return "", dErrors.Wrap(txErr, dErrors.CodeInternal, "refusal failed, please retry")
	}
	return leaseStatus, nil
}

// ResetSignature clears a signer's proof so a new one can be produced.
// Owner-only, and blocked once the lease is fully signed: a sealed document
// cannot lose a signature.
func (s *Service) ResetSignature(ctx context.Context, leaseID id.LeaseID, actorID id.ProfileID, signerID id.SignerID) error {
	lease, err := s.leases.FindByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	if lease.OwnerProfileID != actorID {
		return dErrors.New(dErrors.CodeForbidden, "only the lease owner may reset a signature")
	}
	if lease.Status == leasemodels.LeaseStatusFullySigned || !lease.Signable() {
		return dErrors.New(dErrors.CodeConflict, "lease signatures can no longer be reset")
	}

	signer, err := s.signers.FindByID(ctx, signerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "signer not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signer")
	}
	if signer.LeaseID != leaseID {
		return dErrors.New(dErrors.CodeNotFound, "signer not found")
	}

	now := requestcontext.Now(ctx)
	imagePath := signer.ImagePath
	if err := s.signers.ResetSignature(ctx, signerID, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset signature")
	}
	if imagePath != "" {
		if err := s.blobs.Delete(ctx, imagePath); err != nil {
			s.logger.WarnContext(ctx, "failed to delete signature image on reset",
				"lease_id", leaseID, "signer_id", signerID, "error", err)
		}
	}

	s.recomputeStatus(ctx, lease, now)
	s.emitAudit(ctx, audit.Entry{
		ActorID:    actorID.String(),
		Action:     audit.ActionSignatureReset,
		EntityType: "lease",
		EntityID:   leaseID.String(),
		Metadata:   map[string]string{"signer_id": signerID.String()},
	})
	return nil
}

// InviteSigner adds an invited-by-email signer to the lease. Owner-only.
func (s *Service) InviteSigner(ctx context.Context, leaseID id.LeaseID, actorID id.ProfileID, role signermodels.Role, invitedEmail, invitedName string) (*signermodels.Signer, error) {
	lease, err := s.leases.FindByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	if lease.OwnerProfileID != actorID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the lease owner may invite signers")
	}
	if !lease.Signable() {
		return nil, dErrors.New(dErrors.CodeConflict, "lease is no longer open for signature")
	}

	now := requestcontext.Now(ctx)
	signer, err := signermodels.NewInvitedSigner(id.NewSignerID(), leaseID, role, invitedEmail, invitedName, now)
	if err != nil {
		return nil, err
	}
	if err := s.signers.Create(ctx, signer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add signer")
	}

	s.recomputeStatus(ctx, lease, now)
	s.emitAudit(ctx, audit.Entry{
		ActorID:    actorID.String(),
		Action:     audit.ActionSignerInvited,
		EntityType: "lease",
		EntityID:   leaseID.String(),
		Metadata:   map[string]string{"signer_id": signer.ID.String(), "role": string(role)},
	})
	return signer, nil
}

// RemoveSigner soft-removes a pending signer. Owner-only; signed rows stay.
func (s *Service) RemoveSigner(ctx context.Context, leaseID id.LeaseID, actorID id.ProfileID, signerID id.SignerID) error {
	lease, err := s.leases.FindByID(ctx, leaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	if lease.OwnerProfileID != actorID {
		return dErrors.New(dErrors.CodeForbidden, "only the lease owner may remove signers")
	}

	now := requestcontext.Now(ctx)
	if err := s.signers.SoftRemove(ctx, signerID, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "signer not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeConflict, "signed parties cannot be removed")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove signer")
		}
	}

	s.recomputeStatus(ctx, lease, now)
	s.emitAudit(ctx, audit.Entry{
		ActorID:    actorID.String(),
		Action:     audit.ActionSignerRemoved,
		EntityType: "lease",
		EntityID:   leaseID.String(),
		Metadata:   map[string]string{"signer_id": signerID.String()},
	})
	return nil
}

// ListSigners returns the lease's non-removed signers for the portal view.
func (s *Service) ListSigners(ctx context.Context, leaseID id.LeaseID) ([]*signermodels.Signer, error) {
	if _, err := s.leases.FindByID(ctx, leaseID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lease not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lease")
	}
	signers, err := s.signers.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signers")
	}
	return signers, nil
}

func (s *Service) checkRateLimit(ctx context.Context, profileID id.ProfileID) error {
	if s.limiter == nil {
		return nil
	}
	result, err := s.limiter.Allow(ctx, profileID.String())
	if err != nil {
		// Limiter trouble must not block signing; fail open with a log.
		s.logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "error", err)
		return nil
	}
	if !result.Allowed {
		return dErrors.New(dErrors.CodeRateLimited, "too many signing attempts, try again later")
	}
	return nil
}

// compensateUpload undoes the signer stamp and the uploaded image after an
// infrastructure failure in the record step. It must not run when the record
// was lost to a concurrent duplicate: resetting then would wipe the winner's
// committed proof.
func (s *Service) compensateUpload(ctx context.Context, signerID id.SignerID, imagePath string, now time.Time) {
	if err := s.signers.ResetSignature(ctx, signerID, now); err != nil {
		s.logger.ErrorContext(ctx, "compensating signer reset failed",
			"signer_id", signerID, "error", err)
	}
	s.deleteUpload(ctx, imagePath)
}

func (s *Service) deleteUpload(ctx context.Context, imagePath string) {
	if err := s.blobs.Delete(ctx, imagePath); err != nil {
		s.logger.ErrorContext(ctx, "compensating image delete failed",
			"image_path", imagePath, "error", err)
	}
}

// recomputeStatus derives the lease status from the signer rows and persists
// the projection. A persist failure is logged, not surfaced: signer facts are
// the source of truth and the projection heals on the next recomputation.
func (s *Service) recomputeStatus(ctx context.Context, lease *leasemodels.Lease, now time.Time) leasemodels.LeaseStatus {
	signers, err := s.signers.ListByLease(ctx, lease.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reload signers for status recomputation",
			"lease_id", lease.ID, "error", err)
		return lease.Status
	}
	derived := status.Derive(signers)
	if derived == lease.Status {
		return derived
	}
	if err := s.leases.UpdateStatus(ctx, lease.ID, derived, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist lease status projection",
			"lease_id", lease.ID, "status", derived, "error", err)
	}
	return derived
}

// sealLease invokes the idempotent external seal. Failure never fails the
// signing request; the event is queued for the retry worker instead.
func (s *Service) sealLease(ctx context.Context, leaseID id.LeaseID) {
	documentPath := fmt.Sprintf("leases/%s/contract.pdf", leaseID)
	err := s.sealer.Seal(ctx, leaseID, documentPath)
	if err == nil {
		return
	}

	s.metrics.SealFailures.Inc()
	s.logger.ErrorContext(ctx, "seal failed, queueing retry",
		"lease_id", leaseID, "error", err)

	s.appendOutbox(ctx, leaseID, outbox.EventSealRetry, outbox.SealRetryPayload{
		LeaseID:      leaseID.String(),
		DocumentPath: documentPath,
		Reason:       err.Error(),
	})
}

func (s *Service) emitAudit(ctx context.Context, entry audit.Entry) {
	entry.Timestamp = requestcontext.Now(ctx)
	if err := s.audit.Emit(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry",
			"action", entry.Action, "entity_id", entry.EntityID, "error", err)
	}
}

func auditMetadata(signer *signermodels.Signer, proofID id.ProofID, ip, contentHash string, meta ClientMetadata) map[string]string {
	out := map[string]string{
		"signer_id":    signer.ID.String(),
		"signer_role":  string(signer.Role),
		"proof_id":     proofID.String(),
		"ip":           ip,
		"content_hash": contentHash,
	}
	if meta.ScreenWidth > 0 && meta.ScreenHeight > 0 {
		out["screen"] = fmt.Sprintf("%dx%d", meta.ScreenWidth, meta.ScreenHeight)
	}
	if meta.TouchDevice {
		out["touch_device"] = "true"
	}
	return out
}

func leaseSnapshot(lease *leasemodels.Lease) map[string]any {
	snapshot := map[string]any{
		"lease_id":      lease.ID.String(),
		"property_id":   lease.PropertyID.String(),
		"type":          string(lease.Type),
		"rent_cents":    lease.RentCents,
		"deposit_cents": lease.DepositCents,
		"charges_cents": lease.ChargesCents,
		"start_date":    lease.StartDate.UTC().Format(time.RFC3339),
	}
	if lease.EndDate != nil {
		snapshot["end_date"] = lease.EndDate.UTC().Format(time.RFC3339)
	}
	return snapshot
}
