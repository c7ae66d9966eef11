package handler

import (
	"time"

	signermodels "countersign/internal/signer/models"
	"countersign/internal/signing/service"
)

// SignResponse is the HTTP response for POST /leases/{leaseID}/signature.
type SignResponse struct {
	Success     bool   `json:"success"`
	ProofID     string `json:"proof_id"`
	LeaseStatus string `json:"lease_status"`
}

// RefuseResponse is the HTTP response for POST /leases/{leaseID}/refusal.
type RefuseResponse struct {
	Success     bool   `json:"success"`
	LeaseStatus string `json:"lease_status"`
}

// SignerResponse is one signer row as shown to the portals. Proof internals
// (IP, user agent, image path) stay server-side.
type SignerResponse struct {
	ID       string     `json:"id"`
	Role     string     `json:"role"`
	Status   string     `json:"status"`
	Name     string     `json:"name"`
	Email    string     `json:"email,omitempty"`
	Linked   bool       `json:"linked"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// ListSignersResponse is the HTTP response for GET /leases/{leaseID}/signers.
type ListSignersResponse struct {
	Signers []SignerResponse `json:"signers"`
}

// FromSignResult converts a domain result to an HTTP response.
func FromSignResult(result *service.SignResult) SignResponse {
	return SignResponse{
		Success:     true,
		ProofID:     result.ProofID.String(),
		LeaseStatus: string(result.LeaseStatus),
	}
}

// FromSigner converts a domain signer to its HTTP shape.
func FromSigner(signer *signermodels.Signer) SignerResponse {
	return SignerResponse{
		ID:       signer.ID.String(),
		Role:     string(signer.Role),
		Status:   string(signer.Status),
		Name:     signer.DisplayName(),
		Email:    signer.InvitedEmail,
		Linked:   signer.Linked(),
		SignedAt: signer.SignedAt,
	}
}

// FromSigners converts a signer list, never returning a null JSON array.
func FromSigners(signers []*signermodels.Signer) ListSignersResponse {
	resp := ListSignersResponse{Signers: make([]SignerResponse, 0, len(signers))}
	for _, signer := range signers {
		resp.Signers = append(resp.Signers, FromSigner(signer))
	}
	return resp
}
