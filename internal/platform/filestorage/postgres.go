package filestorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage keeps blobs in the file_storage_objects table.
type PostgresStorage struct {
	db Querier
}

func NewPostgresStorage(db Querier) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Upload(ctx context.Context, ref domain.FileStorageReference, data []byte) error {
	query := `
		INSERT INTO file_storage_objects (reference, content, size_bytes, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (reference) DO UPDATE SET content = EXCLUDED.content, size_bytes = EXCLUDED.size_bytes
	`
	if _, err := s.db.Exec(ctx, query, ref.String(), data, len(data)); err != nil {
		return fmt.Errorf("store %s: %w", ref, err)
	}
	return nil
}

func (s *PostgresStorage) Download(ctx context.Context, ref domain.FileStorageReference) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow(ctx, `SELECT content FROM file_storage_objects WHERE reference = $1`, ref.String()).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, ref)
		}
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	return content, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, ref domain.FileStorageReference) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM file_storage_objects WHERE reference = $1`, ref.String()); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}
