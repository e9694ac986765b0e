package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const bundleColumns = `id, actor_message_queue_id, receiver_number, receiver_role, message_id, category,
       business_reason, document_type, max_message_count, message_count, created_at, closed_at,
       close_reason, dequeued_at, sequence`

func scanBundle(row rowScanner) (*domain.Bundle, error) {
	var (
		id, queueID                  uuid.UUID
		receiverNumber, receiverRole string
		messageID, category, reason  string
		documentType, closeReason    string
		maxCount, count              int
		sequence                     int64
		createdAt                    time.Time
		closedAt, dequeuedAt         *time.Time
	)
	if err := row.Scan(&id, &queueID, &receiverNumber, &receiverRole, &messageID, &category,
		&reason, &documentType, &maxCount, &count, &createdAt, &closedAt, &closeReason, &dequeuedAt, &sequence); err != nil {
		return nil, err
	}
	return domain.BundleFromPersistedState(domain.BundleSnapshot{
		ID:              domain.BundleID(id),
		QueueID:         domain.ActorMessageQueueID(queueID),
		Receiver:        domain.Receiver{Number: domain.ActorNumber(receiverNumber), Role: domain.ActorRole(receiverRole)},
		MessageID:       messageID,
		Category:        domain.MessageCategory(category),
		BusinessReason:  domain.BusinessReason(reason),
		DocumentType:    domain.DocumentType(documentType),
		MaxMessageCount: maxCount,
		MessageCount:    count,
		CreatedAt:       createdAt.UTC(),
		ClosedAt:        utcPtr(closedAt),
		CloseReason:     domain.CloseReason(closeReason),
		DequeuedAt:      utcPtr(dequeuedAt),
		Sequence:        sequence,
	}), nil
}

func bundleArgs(b *domain.Bundle) []any {
	s := b.Snapshot()
	return []any{
		s.ID.UUID(), s.QueueID.UUID(), s.Receiver.Number.String(), s.Receiver.Role.String(), s.MessageID,
		s.Category.String(), s.BusinessReason.String(), s.DocumentType.String(), s.MaxMessageCount,
		s.MessageCount, s.CreatedAt, s.ClosedAt, string(s.CloseReason), s.DequeuedAt, s.Sequence,
	}
}

const outgoingMessageColumns = `id, document_type, receiver_number, receiver_role, sender_number, sender_role,
       business_reason, process_id, file_storage_reference, assigned_bundle_id, is_published, created_at,
       bundle_position`

func scanOutgoingMessage(row rowScanner) (*domain.OutgoingMessage, error) {
	var (
		id                                   uuid.UUID
		documentType, reason, processID, ref string
		receiverNumber, receiverRole         string
		senderNumber, senderRole             string
		bundleID                             *uuid.UUID
		published                            bool
		position                             int
		createdAt                            time.Time
	)
	if err := row.Scan(&id, &documentType, &receiverNumber, &receiverRole, &senderNumber, &senderRole,
		&reason, &processID, &ref, &bundleID, &published, &createdAt, &position); err != nil {
		return nil, err
	}
	var assigned *domain.BundleID
	if bundleID != nil {
		b := domain.BundleID(*bundleID)
		assigned = &b
	}
	return domain.OutgoingMessageFromPersistedState(domain.OutgoingMessageSnapshot{
		ID:                   domain.OutgoingMessageID(id),
		DocumentType:         domain.DocumentType(documentType),
		Receiver:             domain.Receiver{Number: domain.ActorNumber(receiverNumber), Role: domain.ActorRole(receiverRole)},
		Sender:               domain.Sender{Number: domain.ActorNumber(senderNumber), Role: domain.ActorRole(senderRole)},
		BusinessReason:       domain.BusinessReason(reason),
		ProcessID:            processID,
		FileStorageReference: domain.FileStorageReference(ref),
		AssignedBundleID:     assigned,
		Published:            published,
		BundlePosition:       position,
		CreatedAt:            createdAt.UTC(),
	}), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
