package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countersign/internal/audit"
	"countersign/internal/blob"
	leasemodels "countersign/internal/lease/models"
	leasestore "countersign/internal/lease/store"
	"countersign/internal/outbox"
	"countersign/internal/ratelimit"
	"countersign/internal/seal"
	signermodels "countersign/internal/signer/models"
	"countersign/internal/signer/resolver"
	signerstore "countersign/internal/signer/store"
	"countersign/internal/signing/metrics"
	"countersign/internal/signing/service"
	id "countersign/pkg/domain"
	"countersign/pkg/platform/tx"
	"countersign/pkg/requestcontext"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}

type testEnv struct {
	router        chi.Router
	lease         *leasemodels.Lease
	owner         *signermodels.Signer
	tenant        *signermodels.Signer
	ownerProfile  id.ProfileID
	tenantProfile id.ProfileID

	// identity injected by the test middleware for the next request
	profileID id.ProfileID
	email     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		ownerProfile:  id.ProfileID(uuid.New()),
		tenantProfile: id.ProfileID(uuid.New()),
	}

	leases := leasestore.NewMemoryStore()
	signers := signerstore.NewMemoryStore()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	env.lease = &leasemodels.Lease{
		ID:             id.LeaseID(uuid.New()),
		PropertyID:     id.PropertyID(uuid.New()),
		OwnerProfileID: env.ownerProfile,
		Status:         leasemodels.LeaseStatusPendingSignature,
		Type:           leasemodels.LeaseTypeStandard,
		RentCents:      72000,
		StartDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, leases.Create(context.Background(), env.lease))

	var err error
	env.owner, err = signermodels.NewLinkedSigner(id.NewSignerID(), env.lease.ID, signermodels.RoleOwner, env.ownerProfile, now)
	require.NoError(t, err)
	env.tenant, err = signermodels.NewLinkedSigner(id.NewSignerID(), env.lease.ID, signermodels.RolePrincipalTenant, env.tenantProfile, now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, signers.Create(context.Background(), env.owner))
	require.NoError(t, signers.Create(context.Background(), env.tenant))

	logger := slog.New(slog.DiscardHandler)
	svc := service.New(
		leases,
		signers,
		resolver.New(signers, leases, logger),
		blob.NewMemoryStore(),
		outbox.NewMemoryStore(),
		audit.NewPublisher(audit.NewMemoryStore()),
		seal.Func(func(context.Context, id.LeaseID, string) error { return nil }),
		ratelimit.NewMemoryLimiter(100, time.Minute),
		tx.NewNopRunner(),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !env.profileID.IsNil() {
				ctx = requestcontext.WithProfileID(ctx, env.profileID)
				ctx = requestcontext.WithEmail(ctx, env.email)
			}
			ctx = requestcontext.WithClientMetadata(ctx, "198.51.100.5", r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	New(svc, logger).Register(router)
	env.router = router
	return env
}

func (env *testEnv) actAs(profileID id.ProfileID, email string) {
	env.profileID = profileID
	env.email = email
}

func (env *testEnv) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func signPayload() map[string]any {
	return map[string]any{
		"signature_image": base64.StdEncoding.EncodeToString(pngBytes),
		"client_metadata": map[string]any{"screen_width": 390, "touch_device": true},
	}
}

func TestHandleSignSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.tenantProfile, "tenant@example.com")

	rec := env.do(t, http.MethodPost, "/leases/"+env.lease.ID.String()+"/signature", signPayload())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SignResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ProofID)
	assert.Equal(t, string(leasemodels.LeaseStatusPendingOwnerSignature), resp.LeaseStatus)
}

func TestHandleSignUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/leases/"+env.lease.ID.String()+"/signature", signPayload())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSignMalformedLeaseID(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.tenantProfile, "tenant@example.com")

	rec := env.do(t, http.MethodPost, "/leases/not-a-uuid/signature", signPayload())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSignMissingImage(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.tenantProfile, "tenant@example.com")

	rec := env.do(t, http.MethodPost, "/leases/"+env.lease.ID.String()+"/signature",
		map[string]any{"signature_image": ""})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Fields, "signature_image")
}

func TestHandleSignTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.tenantProfile, "tenant@example.com")
	path := "/leases/" + env.lease.ID.String() + "/signature"

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path, signPayload()).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, path, signPayload()).Code)
}

func TestHandleSignStrangerForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(id.ProfileID(uuid.New()), "stranger@example.com")

	rec := env.do(t, http.MethodPost, "/leases/"+env.lease.ID.String()+"/signature", signPayload())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleRefuse(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.tenantProfile, "tenant@example.com")

	rec := env.do(t, http.MethodPost, "/leases/"+env.lease.ID.String()+"/refusal", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RefuseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, string(leasemodels.LeaseStatusDraft), resp.LeaseStatus)
}

func TestHandleListSigners(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.tenantProfile, "tenant@example.com")

	rec := env.do(t, http.MethodGet, "/leases/"+env.lease.ID.String()+"/signers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListSignersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Signers, 2)
	assert.Equal(t, string(signermodels.RoleOwner), resp.Signers[0].Role)
}

func TestHandleInviteAndRemoveSigner(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.ownerProfile, "owner@example.com")
	base := "/leases/" + env.lease.ID.String() + "/signers"

	rec := env.do(t, http.MethodPost, base, map[string]any{
		"role":  "guarantor",
		"email": "parent@example.com",
		"name":  "Parent",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var invited SignerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&invited))
	assert.Equal(t, "guarantor", invited.Role)
	assert.False(t, invited.Linked)

	assert.Equal(t, http.StatusNoContent,
		env.do(t, http.MethodDelete, base+"/"+invited.ID, nil).Code)
}

func TestHandleInviteSignerInvalidRole(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.ownerProfile, "owner@example.com")

	rec := env.do(t, http.MethodPost, "/leases/"+env.lease.ID.String()+"/signers", map[string]any{
		"role":  "landlord",
		"email": "x@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResetSignatureOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.actAs(env.tenantProfile, "tenant@example.com")
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPost, "/leases/"+env.lease.ID.String()+"/signature", signPayload()).Code)

	resetPath := "/leases/" + env.lease.ID.String() + "/signers/" + env.tenant.ID.String() + "/signature"
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, resetPath, nil).Code)

	env.actAs(env.ownerProfile, "owner@example.com")
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, resetPath, nil).Code)
}
