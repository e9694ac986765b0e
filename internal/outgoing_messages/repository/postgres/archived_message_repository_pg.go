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

type pgArchivedMessageRepository struct {
	db     Querier
	logger *slog.Logger
}

func (r *pgArchivedMessageRepository) Add(ctx context.Context, m *domain.ArchivedMessage) error {
	query := `
		INSERT INTO archived_messages (id, bundle_id, message_id, document_type, business_reason, format,
		                               sender_number, sender_role, receiver_number, receiver_role,
		                               created_at, file_storage_reference, checksum)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID.UUID(), m.BundleID.UUID(), m.MessageID, m.DocumentType.String(), m.BusinessReason.String(), m.Format.String(),
		m.Sender.Number.String(), m.Sender.Role.String(), m.Receiver.Number.String(), m.Receiver.Role.String(),
		m.CreatedAt, m.FileStorageReference.String(), m.Checksum,
	)
	if err != nil {
		return fmt.Errorf("insert archived message for bundle %s: %w", m.BundleID, err)
	}
	return nil
}

const archivedMessageColumns = `id, bundle_id, message_id, document_type, business_reason, format, sender_number,
       sender_role, receiver_number, receiver_role, created_at, file_storage_reference, checksum`

func (r *pgArchivedMessageRepository) GetByID(ctx context.Context, id domain.ArchivedMessageID) (*domain.ArchivedMessage, error) {
	query := `SELECT ` + archivedMessageColumns + ` FROM archived_messages WHERE id = $1`
	m, err := scanArchivedMessage(r.db.QueryRow(ctx, query, id.UUID()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrArchivedMessageNotFound
		}
		return nil, fmt.Errorf("get archived message %s: %w", id, err)
	}
	return m, nil
}

// GetByMessageID finds the archive entry of the document delivered under messageID.
func (r *pgArchivedMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.ArchivedMessage, error) {
	query := `SELECT ` + archivedMessageColumns + ` FROM archived_messages WHERE message_id = $1`
	m, err := scanArchivedMessage(r.db.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrArchivedMessageNotFound
		}
		return nil, fmt.Errorf("get archived message for message id %s: %w", messageID, err)
	}
	return m, nil
}

func scanArchivedMessage(row rowScanner) (*domain.ArchivedMessage, error) {
	var (
		id, bundleID                             uuid.UUID
		messageID, documentType, reason, format  string
		senderNumber, senderRole                 string
		receiverNumber, receiverRole, ref, check string
		createdAt                                time.Time
	)
	if err := row.Scan(&id, &bundleID, &messageID, &documentType, &reason, &format,
		&senderNumber, &senderRole, &receiverNumber, &receiverRole, &createdAt, &ref, &check); err != nil {
		return nil, err
	}
	return &domain.ArchivedMessage{
		ID:                   domain.ArchivedMessageID(id),
		BundleID:             domain.BundleID(bundleID),
		MessageID:            messageID,
		DocumentType:         domain.DocumentType(documentType),
		BusinessReason:       domain.BusinessReason(reason),
		Format:               domain.DocumentFormat(format),
		Sender:               domain.Sender{Number: domain.ActorNumber(senderNumber), Role: domain.ActorRole(senderRole)},
		Receiver:             domain.Receiver{Number: domain.ActorNumber(receiverNumber), Role: domain.ActorRole(receiverRole)},
		CreatedAt:            createdAt.UTC(),
		FileStorageReference: domain.FileStorageReference(ref),
		Checksum:             check,
	}, nil
}
