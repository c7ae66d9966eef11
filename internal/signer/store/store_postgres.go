package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"countersign/internal/signer/models"
	id "countersign/pkg/domain"
	"countersign/pkg/platform/sentinel"
	txcontext "countersign/pkg/platform/tx"
)

// PostgresStore persists signer rows in the signers table. The proof is a
// JSONB column holding metadata only; image bytes live in blob storage and
// the row carries just the storage path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const signerColumns = `
	id, lease_id, role, status, profile_id, invited_email, invited_name,
	signed_at, image_path, proof, content_hash, removed, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, signer *models.Signer) error {
	proofJSON, err := marshalProof(signer.Proof)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO signers (` + signerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	var profileID *uuid.UUID
	if signer.ProfileID != nil {
		pid := uuid.UUID(*signer.ProfileID)
		profileID = &pid
	}
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(signer.ID),
		uuid.UUID(signer.LeaseID),
		string(signer.Role),
		string(signer.Status),
		profileID,
		signer.InvitedEmail,
		signer.InvitedName,
		signer.SignedAt,
		signer.ImagePath,
		proofJSON,
		signer.ContentHash,
		signer.Removed,
		signer.CreatedAt,
		signer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert signer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, signerID id.SignerID) (*models.Signer, error) {
	query := `SELECT ` + signerColumns + ` FROM signers WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(signerID))
	signer, err := scanSigner(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find signer: %w", err)
	}
	return signer, nil
}

func (s *PostgresStore) ListByLease(ctx context.Context, leaseID id.LeaseID) ([]*models.Signer, error) {
	query := `
		SELECT ` + signerColumns + `
		FROM signers
		WHERE lease_id = $1 AND NOT removed
		ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(leaseID))
	if err != nil {
		return nil, fmt.Errorf("query signers: %w", err)
	}
	defer rows.Close()

	var signers []*models.Signer
	for rows.Next() {
		signer, err := scanSigner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signer: %w", err)
		}
		signers = append(signers, signer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signers: %w", err)
	}
	return signers, nil
}

func (s *PostgresStore) LinkProfile(ctx context.Context, signerID id.SignerID, profileID id.ProfileID, now time.Time) error {
	query := `UPDATE signers SET profile_id = $2, updated_at = $3 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(signerID), uuid.UUID(profileID), now)
	if err != nil {
		return fmt.Errorf("link signer profile: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) RecordSignature(ctx context.Context, signerID id.SignerID, proof *models.Proof, now time.Time) error {
	proofJSON, err := marshalProof(proof)
	if err != nil {
		return err
	}

	// The status predicate makes the update a compare-and-set: a concurrent
	// duplicate submission loses and surfaces as already-used.
	query := `
		UPDATE signers
		SET status = 'signed', signed_at = $2, image_path = $3, proof = $4,
		    content_hash = $5, updated_at = $6
		WHERE id = $1 AND status = 'pending'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(signerID),
		proof.SignedAt,
		proof.ImagePath,
		proofJSON,
		proof.ContentHash,
		now,
	)
	if err != nil {
		return fmt.Errorf("record signature: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record signature rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) RecordRefusal(ctx context.Context, signerID id.SignerID, now time.Time) error {
	query := `
		UPDATE signers SET status = 'refused', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(signerID), now)
	if err != nil {
		return fmt.Errorf("record refusal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record refusal rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) ResetSignature(ctx context.Context, signerID id.SignerID, now time.Time) error {
	query := `
		UPDATE signers
		SET status = 'pending', signed_at = NULL, image_path = '',
		    proof = NULL, content_hash = '', updated_at = $2
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(signerID), now)
	if err != nil {
		return fmt.Errorf("reset signature: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) SoftRemove(ctx context.Context, signerID id.SignerID, now time.Time) error {
	query := `
		UPDATE signers SET removed = TRUE, updated_at = $2
		WHERE id = $1 AND status <> 'signed'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(signerID), now)
	if err != nil {
		return fmt.Errorf("soft remove signer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft remove rows: %w", err)
	}
	if affected == 0 {
		// Either the row is missing or it is signed; signed rows are kept
		// for the audit trail.
		if _, findErr := s.FindByID(ctx, signerID); findErr != nil {
			return findErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSigner(row rowScanner) (*models.Signer, error) {
	var (
		signer       models.Signer
		signerID     uuid.UUID
		leaseID      uuid.UUID
		role         string
		status       string
		profileID    *uuid.UUID
		invitedEmail sql.NullString
		invitedName  sql.NullString
		signedAt     sql.NullTime
		imagePath    sql.NullString
		proofJSON    []byte
		contentHash  sql.NullString
	)
	err := row.Scan(
		&signerID,
		&leaseID,
		&role,
		&status,
		&profileID,
		&invitedEmail,
		&invitedName,
		&signedAt,
		&imagePath,
		&proofJSON,
		&contentHash,
		&signer.Removed,
		&signer.CreatedAt,
		&signer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	signer.ID = id.SignerID(signerID)
	signer.LeaseID = id.LeaseID(leaseID)
	signer.Role = models.Role(role)
	signer.Status = models.SignatureStatus(status)
	if profileID != nil {
		pid := id.ProfileID(*profileID)
		signer.ProfileID = &pid
	}
	signer.InvitedEmail = invitedEmail.String
	signer.InvitedName = invitedName.String
	if signedAt.Valid {
		t := signedAt.Time
		signer.SignedAt = &t
	}
	signer.ImagePath = imagePath.String
	signer.ContentHash = contentHash.String
	if len(proofJSON) > 0 {
		var proof models.Proof
		if err := json.Unmarshal(proofJSON, &proof); err != nil {
			return nil, fmt.Errorf("decode proof: %w", err)
		}
		signer.Proof = &proof
	}
	return &signer, nil
}

func marshalProof(proof *models.Proof) ([]byte, error) {
	if proof == nil {
		return nil, nil
	}
	b, err := json.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("marshal proof: %w", err)
	}
	return b, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
