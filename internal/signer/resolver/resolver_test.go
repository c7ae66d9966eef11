package resolver

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	leasemodels "countersign/internal/lease/models"
	leasestore "countersign/internal/lease/store"
	signermodels "countersign/internal/signer/models"
	signerstore "countersign/internal/signer/store"
	id "countersign/pkg/domain"
	dErrors "countersign/pkg/domain-errors"
)

func newUUID() uuid.UUID { return uuid.New() }

type fixture struct {
	resolver *Resolver
	signers  *signerstore.MemoryStore
	leases   *leasestore.MemoryStore
	lease    *leasemodels.Lease
	owner    id.ProfileID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signers := signerstore.NewMemoryStore()
	leases := leasestore.NewMemoryStore()

	owner := id.ProfileID(newUUID())
	now := time.Now()
	lease := &leasemodels.Lease{
		ID:             id.NewLeaseID(),
		PropertyID:     id.PropertyID(newUUID()),
		OwnerProfileID: owner,
		Status:         leasemodels.LeaseStatusPendingSignature,
		Type:           leasemodels.LeaseTypeStandard,
		RentCents:      95000,
		StartDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, leases.Create(context.Background(), lease))

	return &fixture{
		resolver: New(signers, leases, slog.Default()),
		signers:  signers,
		leases:   leases,
		lease:    lease,
		owner:    owner,
	}
}

func (f *fixture) addInvited(t *testing.T, role signermodels.Role, invitedEmail string) *signermodels.Signer {
	t.Helper()
	signer, err := signermodels.NewInvitedSigner(id.NewSignerID(), f.lease.ID, role, invitedEmail, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.signers.Create(context.Background(), signer))
	return signer
}

func (f *fixture) addLinked(t *testing.T, role signermodels.Role, profileID id.ProfileID) *signermodels.Signer {
	t.Helper()
	signer, err := signermodels.NewLinkedSigner(id.NewSignerID(), f.lease.ID, role, profileID, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.signers.Create(context.Background(), signer))
	return signer
}

func TestResolveAlreadyLinkedSigner(t *testing.T) {
	f := newFixture(t)
	profileID := id.ProfileID(newUUID())
	created := f.addLinked(t, signermodels.RolePrincipalTenant, profileID)

	resolved, err := f.resolver.Resolve(context.Background(), f.lease.ID, profileID, "tenant@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
}

func TestResolveAlreadySignedIsRejected(t *testing.T) {
	f := newFixture(t)
	profileID := id.ProfileID(newUUID())
	created := f.addLinked(t, signermodels.RolePrincipalTenant, profileID)
	require.NoError(t, f.signers.RecordSignature(context.Background(), created.ID, &signermodels.Proof{
		ProofID:   id.NewProofID(),
		SignedAt:  time.Now(),
		ImagePath: "leases/x/sig.png",
	}, time.Now()))

	_, err := f.resolver.Resolve(context.Background(), f.lease.ID, profileID, "tenant@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.Contains(t, err.Error(), "already signed")
}

func TestResolveLinksInvitedEmailMatch(t *testing.T) {
	f := newFixture(t)
	created := f.addInvited(t, signermodels.RoleGuarantor, "Garant@Example.com")
	profileID := id.ProfileID(newUUID())

	resolved, err := f.resolver.Resolve(context.Background(), f.lease.ID, profileID, "garant@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
	require.NotNil(t, resolved.ProfileID)
	assert.Equal(t, profileID, *resolved.ProfileID)

	// The link is persisted, not just returned.
	stored, err := f.signers.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, stored.LinkedTo(profileID))
}

func TestResolveFallsBackToUnlinkedTenantPlaceholder(t *testing.T) {
	f := newFixture(t)
	created := f.addInvited(t, signermodels.RoleCoTenant, "someone.else@example.com")
	profileID := id.ProfileID(newUUID())

	resolved, err := f.resolver.Resolve(context.Background(), f.lease.ID, profileID, "different@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
	assert.True(t, resolved.LinkedTo(profileID))
}

func TestResolveAmbiguousFallbackIsRefused(t *testing.T) {
	f := newFixture(t)
	f.addInvited(t, signermodels.RoleCoTenant, "first@example.com")
	f.addInvited(t, signermodels.RoleCoTenant, "second@example.com")

	// Two candidate placeholders make the claim a guess; nobody is linked.
	_, err := f.resolver.Resolve(context.Background(), f.lease.ID, id.ProfileID(newUUID()), "different@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	rows, err := f.signers.ListByLease(context.Background(), f.lease.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.False(t, row.Linked())
	}
}

func TestResolveGuarantorPlaceholderNotClaimedByFallback(t *testing.T) {
	f := newFixture(t)
	f.addInvited(t, signermodels.RoleGuarantor, "someone.else@example.com")

	_, err := f.resolver.Resolve(context.Background(), f.lease.ID, id.ProfileID(newUUID()), "different@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestResolveOwnerLinksExistingOwnerRow(t *testing.T) {
	f := newFixture(t)
	created := f.addInvited(t, signermodels.RoleOwner, "landlord@example.com")

	resolved, err := f.resolver.Resolve(context.Background(), f.lease.ID, f.owner, "other.address@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
	assert.True(t, resolved.LinkedTo(f.owner))
}

func TestResolveOwnerCreatesOwnerRowWhenMissing(t *testing.T) {
	f := newFixture(t)

	resolved, err := f.resolver.Resolve(context.Background(), f.lease.ID, f.owner, "landlord@example.com")
	require.NoError(t, err)
	assert.Equal(t, signermodels.RoleOwner, resolved.Role)
	assert.True(t, resolved.LinkedTo(f.owner))

	listed, err := f.signers.ListByLease(context.Background(), f.lease.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestResolveStrangerIsRefused(t *testing.T) {
	f := newFixture(t)
	f.addLinked(t, signermodels.RolePrincipalTenant, id.ProfileID(newUUID()))

	_, err := f.resolver.Resolve(context.Background(), f.lease.ID, id.ProfileID(newUUID()), "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

// Resolving twice after the first link must return the same record and never
// create a duplicate.
func TestResolveIdempotentAfterLink(t *testing.T) {
	f := newFixture(t)
	f.addInvited(t, signermodels.RolePrincipalTenant, "tenant@example.com")
	profileID := id.ProfileID(newUUID())

	first, err := f.resolver.Resolve(context.Background(), f.lease.ID, profileID, "tenant@example.com")
	require.NoError(t, err)

	second, err := f.resolver.Resolve(context.Background(), f.lease.ID, profileID, "tenant@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	listed, err := f.signers.ListByLease(context.Background(), f.lease.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

// Exact email matches take precedence over the permissive fallback.
func TestResolvePrefersExactEmailOverFallback(t *testing.T) {
	f := newFixture(t)
	f.addInvited(t, signermodels.RoleCoTenant, "other@example.com")
	exact := f.addInvited(t, signermodels.RolePrincipalTenant, "tenant@example.com")

	resolved, err := f.resolver.Resolve(context.Background(), f.lease.ID, id.ProfileID(newUUID()), "tenant@example.com")
	require.NoError(t, err)
	assert.Equal(t, exact.ID, resolved.ID)
}

func TestResolveUnknownLeaseForOwnerPath(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Resolve(context.Background(), id.NewLeaseID(), id.ProfileID(newUUID()), "nobody@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
