//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	leasemodels "countersign/internal/lease/models"
	leasestore "countersign/internal/lease/store"
	"countersign/internal/signer/models"
	"countersign/internal/signer/store"
	id "countersign/pkg/domain"
	"countersign/pkg/platform/sentinel"
	"countersign/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	leases   *leasestore.PostgresStore

	lease *leasemodels.Lease
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.leases = leasestore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateAll(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	s.lease = &leasemodels.Lease{
		ID:             id.LeaseID(uuid.New()),
		PropertyID:     id.PropertyID(uuid.New()),
		OwnerProfileID: id.ProfileID(uuid.New()),
		Status:         leasemodels.LeaseStatusPendingSignature,
		Type:           leasemodels.LeaseTypeStandard,
		RentCents:      64000,
		StartDate:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Require().NoError(s.leases.Create(ctx, s.lease))
}

func (s *PostgresStoreSuite) newLinkedSigner(role models.Role) *models.Signer {
	now := time.Now().UTC().Truncate(time.Millisecond)
	signer, err := models.NewLinkedSigner(id.NewSignerID(), s.lease.ID, role, id.ProfileID(uuid.New()), now)
	s.Require().NoError(err)
	return signer
}

func (s *PostgresStoreSuite) newProof(signer *models.Signer) *models.Proof {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Proof{
		ProofID:     id.NewProofID(),
		SignedAt:    now,
		Method:      "signature_image",
		SignerName:  "Test Signer",
		ImagePath:   "leases/x/signatures/y.png",
		UserAgent:   "test-agent",
		Device:      "Safari on iOS",
		IP:          "203.0.113.1",
		ContentHash: "sha256:abc",
	}
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	signer := s.newLinkedSigner(models.RolePrincipalTenant)
	s.Require().NoError(s.store.Create(ctx, signer))

	found, err := s.store.FindByID(ctx, signer.ID)
	s.Require().NoError(err)
	s.Equal(signer.ID, found.ID)
	s.Equal(models.RolePrincipalTenant, found.Role)
	s.Equal(models.SignaturePending, found.Status)
	s.Require().NotNil(found.ProfileID)
	s.Equal(*signer.ProfileID, *found.ProfileID)
}

func (s *PostgresStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(context.Background(), id.NewSignerID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByLeaseExcludesRemoved() {
	ctx := context.Background()
	keep := s.newLinkedSigner(models.RoleOwner)
	gone := s.newLinkedSigner(models.RoleCoTenant)
	s.Require().NoError(s.store.Create(ctx, keep))
	s.Require().NoError(s.store.Create(ctx, gone))
	s.Require().NoError(s.store.SoftRemove(ctx, gone.ID, time.Now().UTC()))

	signers, err := s.store.ListByLease(ctx, s.lease.ID)
	s.Require().NoError(err)
	s.Require().Len(signers, 1)
	s.Equal(keep.ID, signers[0].ID)
}

func (s *PostgresStoreSuite) TestRecordSignaturePersistsProof() {
	ctx := context.Background()
	signer := s.newLinkedSigner(models.RolePrincipalTenant)
	s.Require().NoError(s.store.Create(ctx, signer))

	proof := s.newProof(signer)
	s.Require().NoError(s.store.RecordSignature(ctx, signer.ID, proof, proof.SignedAt))

	found, err := s.store.FindByID(ctx, signer.ID)
	s.Require().NoError(err)
	s.Equal(models.SignatureSigned, found.Status)
	s.Require().NotNil(found.Proof)
	s.Equal(proof.ProofID, found.Proof.ProofID)
	s.Equal(proof.IP, found.Proof.IP)
	s.Equal(proof.ImagePath, found.ImagePath)
	s.Equal(proof.ContentHash, found.ContentHash)
}

func (s *PostgresStoreSuite) TestRecordSignatureTwiceFails() {
	ctx := context.Background()
	signer := s.newLinkedSigner(models.RolePrincipalTenant)
	s.Require().NoError(s.store.Create(ctx, signer))

	proof := s.newProof(signer)
	s.Require().NoError(s.store.RecordSignature(ctx, signer.ID, proof, proof.SignedAt))

	err := s.store.RecordSignature(ctx, signer.ID, s.newProof(signer), time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestResetSignatureClearsProof() {
	ctx := context.Background()
	signer := s.newLinkedSigner(models.RolePrincipalTenant)
	s.Require().NoError(s.store.Create(ctx, signer))

	proof := s.newProof(signer)
	s.Require().NoError(s.store.RecordSignature(ctx, signer.ID, proof, proof.SignedAt))
	s.Require().NoError(s.store.ResetSignature(ctx, signer.ID, time.Now().UTC()))

	found, err := s.store.FindByID(ctx, signer.ID)
	s.Require().NoError(err)
	s.Equal(models.SignaturePending, found.Status)
	s.Nil(found.Proof)
	s.Nil(found.SignedAt)
	s.Empty(found.ImagePath)
}

func (s *PostgresStoreSuite) TestLinkProfile() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	invited, err := models.NewInvitedSigner(id.NewSignerID(), s.lease.ID, models.RoleGuarantor,
		"Invited@Example.com", "Invited Person", now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, invited))

	profileID := id.ProfileID(uuid.New())
	s.Require().NoError(s.store.LinkProfile(ctx, invited.ID, profileID, now))

	found, err := s.store.FindByID(ctx, invited.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.ProfileID)
	s.Equal(profileID, *found.ProfileID)
	s.Equal("invited@example.com", found.InvitedEmail)
}

func (s *PostgresStoreSuite) TestSoftRemoveSignedSignerFails() {
	ctx := context.Background()
	signer := s.newLinkedSigner(models.RoleCoTenant)
	s.Require().NoError(s.store.Create(ctx, signer))

	proof := s.newProof(signer)
	s.Require().NoError(s.store.RecordSignature(ctx, signer.ID, proof, proof.SignedAt))

	err := s.store.SoftRemove(ctx, signer.ID, time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrInvalidState)
}
