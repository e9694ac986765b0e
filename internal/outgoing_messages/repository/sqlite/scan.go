package sqlite

import (
	"database/sql"

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
		id, queueID                  string
		receiverNumber, receiverRole string
		messageID, category, reason  string
		documentType, closeReason    string
		maxCount, count              int
		sequence                     int64
		createdAt                    int64
		closedAt, dequeuedAt         sql.NullInt64
	)
	if err := row.Scan(&id, &queueID, &receiverNumber, &receiverRole, &messageID, &category,
		&reason, &documentType, &maxCount, &count, &createdAt, &closedAt, &closeReason, &dequeuedAt, &sequence); err != nil {
		return nil, err
	}
	bundleID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	qid, err := uuid.Parse(queueID)
	if err != nil {
		return nil, err
	}
	return domain.BundleFromPersistedState(domain.BundleSnapshot{
		ID:              domain.BundleID(bundleID),
		QueueID:         domain.ActorMessageQueueID(qid),
		Receiver:        domain.Receiver{Number: domain.ActorNumber(receiverNumber), Role: domain.ActorRole(receiverRole)},
		MessageID:       messageID,
		Category:        domain.MessageCategory(category),
		BusinessReason:  domain.BusinessReason(reason),
		DocumentType:    domain.DocumentType(documentType),
		MaxMessageCount: maxCount,
		MessageCount:    count,
		CreatedAt:       fromUnix(createdAt),
		ClosedAt:        fromNullUnix(closedAt),
		CloseReason:     domain.CloseReason(closeReason),
		DequeuedAt:      fromNullUnix(dequeuedAt),
		Sequence:        sequence,
	}), nil
}

func bundleArgs(b *domain.Bundle) []any {
	s := b.Snapshot()
	return []any{
		s.ID.String(), s.QueueID.String(), s.Receiver.Number.String(), s.Receiver.Role.String(), s.MessageID,
		s.Category.String(), s.BusinessReason.String(), s.DocumentType.String(), s.MaxMessageCount,
		s.MessageCount, toUnix(s.CreatedAt), toNullUnix(s.ClosedAt), string(s.CloseReason), toNullUnix(s.DequeuedAt),
		s.Sequence,
	}
}

const outgoingMessageColumns = `id, document_type, receiver_number, receiver_role, sender_number, sender_role,
       business_reason, process_id, file_storage_reference, assigned_bundle_id, is_published, created_at,
       bundle_position`

func scanOutgoingMessage(row rowScanner) (*domain.OutgoingMessage, error) {
	var (
		id, documentType, reason, processID, ref string
		receiverNumber, receiverRole             string
		senderNumber, senderRole                 string
		bundleID                                 sql.NullString
		published                                bool
		position                                 int
		createdAt                                int64
	)
	if err := row.Scan(&id, &documentType, &receiverNumber, &receiverRole, &senderNumber, &senderRole,
		&reason, &processID, &ref, &bundleID, &published, &createdAt, &position); err != nil {
		return nil, err
	}
	msgID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	var assigned *domain.BundleID
	if bundleID.Valid {
		parsed, err := domain.ParseBundleID(bundleID.String)
		if err != nil {
			return nil, err
		}
		assigned = &parsed
	}
	return domain.OutgoingMessageFromPersistedState(domain.OutgoingMessageSnapshot{
		ID:                   domain.OutgoingMessageID(msgID),
		DocumentType:         domain.DocumentType(documentType),
		Receiver:             domain.Receiver{Number: domain.ActorNumber(receiverNumber), Role: domain.ActorRole(receiverRole)},
		Sender:               domain.Sender{Number: domain.ActorNumber(senderNumber), Role: domain.ActorRole(senderRole)},
		BusinessReason:       domain.BusinessReason(reason),
		ProcessID:            processID,
		FileStorageReference: domain.FileStorageReference(ref),
		AssignedBundleID:     assigned,
		Published:            published,
		BundlePosition:       position,
		CreatedAt:            fromUnix(createdAt),
	}), nil
}

func scanArchivedMessage(row rowScanner) (*domain.ArchivedMessage, error) {
	var (
		id, bundleID, messageID, documentType    string
		reason, format, senderNumber, senderRole string
		receiverNumber, receiverRole, ref, check string
		createdAt                                int64
	)
	if err := row.Scan(&id, &bundleID, &messageID, &documentType, &reason, &format, &senderNumber, &senderRole,
		&receiverNumber, &receiverRole, &createdAt, &ref, &check); err != nil {
		return nil, err
	}
	archiveID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	parsedBundleID, err := domain.ParseBundleID(bundleID)
	if err != nil {
		return nil, err
	}
	return &domain.ArchivedMessage{
		ID:                   domain.ArchivedMessageID(archiveID),
		BundleID:             parsedBundleID,
		MessageID:            messageID,
		DocumentType:         domain.DocumentType(documentType),
		BusinessReason:       domain.BusinessReason(reason),
		Format:               domain.DocumentFormat(format),
		Sender:               domain.Sender{Number: domain.ActorNumber(senderNumber), Role: domain.ActorRole(senderRole)},
		Receiver:             domain.Receiver{Number: domain.ActorNumber(receiverNumber), Role: domain.ActorRole(receiverRole)},
		CreatedAt:            fromUnix(createdAt),
		FileStorageReference: domain.FileStorageReference(ref),
		Checksum:             check,
	}, nil
}
