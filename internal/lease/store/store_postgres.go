package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"countersign/internal/lease/models"
	id "countersign/pkg/domain"
	"countersign/pkg/platform/sentinel"
	txcontext "countersign/pkg/platform/tx"
)

// PostgresStore persists leases in the leases table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, lease *models.Lease) error {
	query := `
		INSERT INTO leases (
			id, property_id, owner_profile_id, status, type,
			rent_cents, deposit_cents, charges_cents,
			start_date, end_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(lease.ID),
		uuid.UUID(lease.PropertyID),
		uuid.UUID(lease.OwnerProfileID),
		string(lease.Status),
		string(lease.Type),
		lease.RentCents,
		lease.DepositCents,
		lease.ChargesCents,
		lease.StartDate,
		lease.EndDate,
		lease.CreatedAt,
		lease.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lease: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	query := `
		SELECT id, property_id, owner_profile_id, status, type,
		       rent_cents, deposit_cents, charges_cents,
		       start_date, end_date, created_at, updated_at
		FROM leases
		WHERE id = $1
	`
	var (
		lease          models.Lease
		rawID          uuid.UUID
		propertyID     uuid.UUID
		ownerProfileID uuid.UUID
		status         string
		leaseType      string
		endDate        sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(leaseID)).Scan(
		&rawID,
		&propertyID,
		&ownerProfileID,
		&status,
		&leaseType,
		&lease.RentCents,
		&lease.DepositCents,
		&lease.ChargesCents,
		&lease.StartDate,
		&endDate,
		&lease.CreatedAt,
		&lease.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find lease: %w", err)
	}

	lease.ID = id.LeaseID(rawID)
	lease.PropertyID = id.PropertyID(propertyID)
	lease.OwnerProfileID = id.ProfileID(ownerProfileID)
	lease.Status = models.LeaseStatus(status)
	lease.Type = models.LeaseType(leaseType)
	if endDate.Valid {
		t := endDate.Time
		lease.EndDate = &t
	}
	return &lease, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, leaseID id.LeaseID, status models.LeaseStatus, now time.Time) error {
	query := `UPDATE leases SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(leaseID), string(status), now)
	if err != nil {
		return fmt.Errorf("update lease status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lease status rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
