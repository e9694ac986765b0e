package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

type pgMarketDocumentRepository struct {
	db     Querier
	logger *slog.Logger
}

func (r *pgMarketDocumentRepository) GetByBundleID(ctx context.Context, bundleID domain.BundleID) (*domain.MarketDocument, error) {
	var (
		id          uuid.UUID
		format, ref string
		createdAt   time.Time
	)
	query := `SELECT id, format, file_storage_reference, created_at FROM market_documents WHERE bundle_id = $1`
	if err := r.db.QueryRow(ctx, query, bundleID.UUID()).Scan(&id, &format, &ref, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMarketDocumentNotFound
		}
		return nil, fmt.Errorf("get market document of bundle %s: %w", bundleID, err)
	}
	return &domain.MarketDocument{
		ID:                   domain.MarketDocumentID(id),
		BundleID:             bundleID,
		Format:               domain.DocumentFormat(format),
		FileStorageReference: domain.FileStorageReference(ref),
		CreatedAt:            createdAt.UTC(),
	}, nil
}

func (r *pgMarketDocumentRepository) Add(ctx context.Context, doc *domain.MarketDocument) error {
	query := `
		INSERT INTO market_documents (id, bundle_id, format, file_storage_reference, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, doc.ID.UUID(), doc.BundleID.UUID(), doc.Format.String(), doc.FileStorageReference.String(), doc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMarketDocument, doc.BundleID)
		}
		return fmt.Errorf("insert market document for bundle %s: %w", doc.BundleID, err)
	}
	return nil
}

func (r *pgMarketDocumentRepository) DeleteByBundleID(ctx context.Context, bundleID domain.BundleID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM market_documents WHERE bundle_id = $1`, bundleID.UUID()); err != nil {
		return fmt.Errorf("delete market document of bundle %s: %w", bundleID, err)
	}
	return nil
}
