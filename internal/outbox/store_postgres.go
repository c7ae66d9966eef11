package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"countersign/pkg/platform/sentinel"
	txcontext "countersign/pkg/platform/tx"
)

// PostgresStore persists outbox rows in the outbox table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event *Event) error {
	eventID := event.ID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		eventID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		[]byte(event.Payload),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int, eventTypes ...string) ([]*Event, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, processed, processed_at
		FROM outbox
		WHERE NOT processed
	`
	args := []any{}
	if len(eventTypes) > 0 {
		query += ` AND event_type = ANY($1)`
		args = append(args, pq.Array(eventTypes))
	}
	query += fmt.Sprintf(` ORDER BY created_at LIMIT %d`, limit)

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event       Event
			processedAt sql.NullTime
		)
		err := rows.Scan(
			&event.ID,
			&event.AggregateType,
			&event.AggregateID,
			&event.EventType,
			(*[]byte)(&event.Payload),
			&event.CreatedAt,
			&event.Processed,
			&processedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			event.ProcessedAt = &t
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	query := `UPDATE outbox SET processed = TRUE, processed_at = NOW() WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("mark outbox processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
