package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

type pgOutgoingMessageRepository struct {
	db     Querier
	logger *slog.Logger
}

func (r *pgOutgoingMessageRepository) Add(ctx context.Context, msg *domain.OutgoingMessage) error {
	s := msg.Snapshot()
	var bundleID *uuid.UUID
	if s.AssignedBundleID != nil {
		id := s.AssignedBundleID.UUID()
		bundleID = &id
	}
	query := `
		INSERT INTO outgoing_messages (` + outgoingMessageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		s.ID.UUID(), s.DocumentType.String(), s.Receiver.Number.String(), s.Receiver.Role.String(),
		s.Sender.Number.String(), s.Sender.Role.String(), s.BusinessReason.String(), s.ProcessID,
		s.FileStorageReference.String(), bundleID, s.Published, s.CreatedAt, s.BundlePosition,
	)
	if err != nil {
		return fmt.Errorf("insert outgoing message %s: %w", s.ID, err)
	}
	return nil
}

func (r *pgOutgoingMessageRepository) ListByBundleID(ctx context.Context, id domain.BundleID) ([]*domain.OutgoingMessage, error) {
	query := `
		SELECT ` + outgoingMessageColumns + `
		FROM outgoing_messages
		WHERE assigned_bundle_id = $1
		ORDER BY bundle_position, created_at, id
	`
	rows, err := r.db.Query(ctx, query, id.UUID())
	if err != nil {
		return nil, fmt.Errorf("list messages of bundle %s: %w", id, err)
	}
	defer rows.Close()

	var out []*domain.OutgoingMessage
	for rows.Next() {
		msg, err := scanOutgoingMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outgoing message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pgOutgoingMessageRepository) DeleteByBundleID(ctx context.Context, id domain.BundleID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM outgoing_messages WHERE assigned_bundle_id = $1`, id.UUID()); err != nil {
		return fmt.Errorf("delete messages of bundle %s: %w", id, err)
	}
	return nil
}
