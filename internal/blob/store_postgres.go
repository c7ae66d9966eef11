package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"countersign/pkg/platform/sentinel"
	txcontext "countersign/pkg/platform/tx"
)

// PostgresStore keeps objects in the blobs table (bytea payload). Signature
// images are small, so a relational blob table keeps durability transactional
// with the rest of the system without an extra storage dependency.
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

func (s *PostgresStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	query := `
		INSERT INTO blobs (key, content_type, data, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET content_type = EXCLUDED.content_type, data = EXCLUDED.data
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, key, contentType, data); err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	query := `SELECT data, content_type FROM blobs WHERE key = $1`
	var (
		data        []byte
		contentType string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, key).Scan(&data, &contentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", sentinel.ErrNotFound
		}
		return nil, "", fmt.Errorf("get blob: %w", err)
	}
	return data, contentType, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM blobs WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
