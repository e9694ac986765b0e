package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

type pgBundleRepository struct {
	db     Querier
	logger *slog.Logger
}

func (r *pgBundleRepository) GetByID(ctx context.Context, id domain.BundleID) (*domain.Bundle, error) {
	query := `SELECT ` + bundleColumns + ` FROM bundles WHERE id = $1`
	b, err := scanBundle(r.db.QueryRow(ctx, query, id.UUID()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBundleNotFound
		}
		return nil, fmt.Errorf("get bundle %s: %w", id, err)
	}
	return b, nil
}

func (r *pgBundleRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Bundle, error) {
	query := `SELECT ` + bundleColumns + ` FROM bundles WHERE message_id = $1`
	b, err := scanBundle(r.db.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBundleNotFound
		}
		return nil, fmt.Errorf("get bundle by message id %s: %w", messageID, err)
	}
	return b, nil
}

func (r *pgBundleRepository) Save(ctx context.Context, b *domain.Bundle) error {
	s := b.Snapshot()
	query := `
		UPDATE bundles
		SET message_count = $2, closed_at = $3, close_reason = $4, dequeued_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, s.ID.UUID(), s.MessageCount, s.ClosedAt, string(s.CloseReason), s.DequeuedAt)
	if err != nil {
		return fmt.Errorf("update bundle %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBundleNotFound
	}
	return nil
}

func (r *pgBundleRepository) ListDequeuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Bundle, error) {
	query := `
		SELECT ` + bundleColumns + `
		FROM bundles
		WHERE dequeued_at IS NOT NULL AND dequeued_at < $1
		ORDER BY dequeued_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list dequeued bundles: %w", err)
	}
	return collectBundles(rows)
}

func (r *pgBundleRepository) Delete(ctx context.Context, id domain.BundleID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM bundles WHERE id = $1`, id.UUID()); err != nil {
		return fmt.Errorf("delete bundle %s: %w", id, err)
	}
	return nil
}

func (r *pgBundleRepository) listPending(ctx context.Context, queueID domain.ActorMessageQueueID) ([]*domain.Bundle, error) {
	query := `
		SELECT ` + bundleColumns + `
		FROM bundles
		WHERE actor_message_queue_id = $1 AND dequeued_at IS NULL
		ORDER BY sequence, created_at, id
	`
	rows, err := r.db.Query(ctx, query, queueID.UUID())
	if err != nil {
		return nil, fmt.Errorf("list bundles of queue %s: %w", queueID, err)
	}
	return collectBundles(rows)
}

func collectBundles(rows pgx.Rows) ([]*domain.Bundle, error) {
	defer rows.Close()
	var out []*domain.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
