// Package handler wires the signing endpoints to the signing service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	leasemodels "countersign/internal/lease/models"
	signermodels "countersign/internal/signer/models"
	"countersign/internal/signing/service"
	id "countersign/pkg/domain"
	dErrors "countersign/pkg/domain-errors"
	"countersign/pkg/platform/httputil"
	"countersign/pkg/requestcontext"
)

// Service defines the interface for signing operations.
type Service interface {
	Sign(ctx context.Context, leaseID id.LeaseID, profileID id.ProfileID, accountEmail string, req service.SignRequest) (*service.SignResult, error)
	Refuse(ctx context.Context, leaseID id.LeaseID, profileID id.ProfileID, accountEmail string) (leasemodels.LeaseStatus, error)
	ResetSignature(ctx context.Context, leaseID id.LeaseID, actorID id.ProfileID, signerID id.SignerID) error
	InviteSigner(ctx context.Context, leaseID id.LeaseID, actorID id.ProfileID, role signermodels.Role, invitedEmail, invitedName string) (*signermodels.Signer, error)
	RemoveSigner(ctx context.Context, leaseID id.LeaseID, actorID id.ProfileID, signerID id.SignerID) error
	ListSigners(ctx context.Context, leaseID id.LeaseID) ([]*signermodels.Signer, error)
}

// Handler serves the lease signing endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a signing handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the signing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/leases/{leaseID}", func(r chi.Router) {
		r.Post("/signature", h.HandleSign)
		r.Post("/refusal", h.HandleRefuse)
		r.Get("/signers", h.HandleListSigners)
		r.Post("/signers", h.HandleInviteSigner)
		r.Delete("/signers/{signerID}", h.HandleRemoveSigner)
		r.Delete("/signers/{signerID}/signature", h.HandleResetSignature)
	})
}

// HandleSign handles POST /leases/{leaseID}/signature.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	leaseID, profileID, ok := h.identify(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[SignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Sign(ctx, leaseID, profileID, requestcontext.Email(ctx), service.SignRequest{
		SignatureImage: req.SignatureImage,
		Metadata: service.ClientMetadata{
			ScreenWidth:  req.Metadata.ScreenWidth,
			ScreenHeight: req.Metadata.ScreenHeight,
			TouchDevice:  req.Metadata.TouchDevice,
		},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "signing failed",
			"request_id", requestID,
			"lease_id", leaseID,
			"profile_id", profileID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "signature recorded",
		"request_id", requestID,
		"lease_id", leaseID,
		"signer_id", result.SignerID,
		"lease_status", result.LeaseStatus,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSignResult(result))
}

// HandleRefuse handles POST /leases/{leaseID}/refusal.
func (h *Handler) HandleRefuse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	leaseID, profileID, ok := h.identify(w, r)
	if !ok {
		return
	}

	leaseStatus, err := h.service.Refuse(ctx, leaseID, profileID, requestcontext.Email(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "refusal failed",
			"request_id", requestID,
			"lease_id", leaseID,
			"profile_id", profileID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "signature refused",
		"request_id", requestID,
		"lease_id", leaseID,
		"lease_status", leaseStatus,
	)
	httputil.WriteJSON(w, http.StatusOK, RefuseResponse{
		Success:     true,
		LeaseStatus: string(leaseStatus),
	})
}

// HandleListSigners handles GET /leases/{leaseID}/signers.
func (h *Handler) HandleListSigners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	leaseID, _, ok := h.identify(w, r)
	if !ok {
		return
	}

	signers, err := h.service.ListSigners(ctx, leaseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSigners(signers))
}

// HandleInviteSigner handles POST /leases/{leaseID}/signers.
func (h *Handler) HandleInviteSigner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	leaseID, profileID, ok := h.identify(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[InviteSignerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	signer, err := h.service.InviteSigner(ctx, leaseID, profileID, req.ParsedRole(), req.Email, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "signer invitation failed",
			"request_id", requestID,
			"lease_id", leaseID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "signer invited",
		"request_id", requestID,
		"lease_id", leaseID,
		"signer_id", signer.ID,
		"role", signer.Role,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromSigner(signer))
}

// HandleRemoveSigner handles DELETE /leases/{leaseID}/signers/{signerID}.
func (h *Handler) HandleRemoveSigner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	leaseID, profileID, ok := h.identify(w, r)
	if !ok {
		return
	}
	signerID, err := id.ParseSignerID(chi.URLParam(r, "signerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.RemoveSigner(ctx, leaseID, profileID, signerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetSignature handles DELETE /leases/{leaseID}/signers/{signerID}/signature.
func (h *Handler) HandleResetSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	leaseID, profileID, ok := h.identify(w, r)
	if !ok {
		return
	}
	signerID, err := id.ParseSignerID(chi.URLParam(r, "signerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.ResetSignature(ctx, leaseID, profileID, signerID); err != nil {
		h.logger.ErrorContext(ctx, "signature reset failed",
			"request_id", requestID,
			"lease_id", leaseID,
			"signer_id", signerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "signature reset",
		"request_id", requestID,
		"lease_id", leaseID,
		"signer_id", signerID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// identify extracts the lease ID from the path and the authenticated profile
// from the context, writing the error response on failure.
func (h *Handler) identify(w http.ResponseWriter, r *http.Request) (id.LeaseID, id.ProfileID, bool) {
	profileID := requestcontext.ProfileID(r.Context())
	if profileID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.LeaseID{}, id.ProfileID{}, false
	}
	leaseID, err := id.ParseLeaseID(chi.URLParam(r, "leaseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.LeaseID{}, id.ProfileID{}, false
	}
	return leaseID, profileID, true
}
