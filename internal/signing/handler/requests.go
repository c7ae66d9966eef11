package handler

import (
	"strings"

	signermodels "countersign/internal/signer/models"
	dErrors "countersign/pkg/domain-errors"
)

// SignRequest is the HTTP request body for POST /leases/{leaseID}/signature.
type SignRequest struct {
	SignatureImage string          `json:"signature_image"`
	Metadata       RequestMetadata `json:"client_metadata"`
}

// RequestMetadata carries optional signing-pad telemetry.
type RequestMetadata struct {
	ScreenWidth  int  `json:"screen_width"`
	ScreenHeight int  `json:"screen_height"`
	TouchDevice  bool `json:"touch_device"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SignRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.SignatureImage = strings.TrimSpace(r.SignatureImage)
	if r.SignatureImage == "" {
		return dErrors.NewValidation("signature image is required", map[string]string{
			"signature_image": "required",
		})
	}
	return nil
}

// InviteSignerRequest is the HTTP request body for POST /leases/{leaseID}/signers.
type InviteSignerRequest struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`

	// Parsed values (populated by Validate)
	parsedRole signermodels.Role
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *InviteSignerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Role = strings.TrimSpace(r.Role)
	if r.Role == "" {
		return dErrors.NewValidation("role is required", map[string]string{"role": "required"})
	}
	role, err := signermodels.ParseRole(r.Role)
	if err != nil {
		return err
	}
	r.parsedRole = role

	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.NewValidation("email is required", map[string]string{"email": "required"})
	}
	if !strings.Contains(r.Email, "@") {
		return dErrors.NewValidation("email is malformed", map[string]string{"email": "must contain @"})
	}
	r.Name = strings.TrimSpace(r.Name)
	return nil
}

// ParsedRole returns the validated role.
func (r *InviteSignerRequest) ParsedRole() signermodels.Role {
	return r.parsedRole
}
