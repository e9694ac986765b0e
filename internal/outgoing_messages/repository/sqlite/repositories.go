package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

type actorMessageQueueRepository struct {
	db querier
}

// GetOrCreateForUpdate relies on the transaction holding the database write lock; SQLite has
// no row locks.
func (r *actorMessageQueueRepository) GetOrCreateForUpdate(ctx context.Context, receiver domain.Receiver) (*domain.ActorMessageQueue, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO actor_message_queues (id, actor_number, actor_role, created_at) VALUES (?, ?, ?, ?)`,
		domain.NewActorMessageQueueID().String(), receiver.Number.String(), receiver.Role.String(), toUnix(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("create actor message queue for %s: %w", receiver, err)
	}
	return r.GetForUpdate(ctx, receiver)
}

func (r *actorMessageQueueRepository) GetForUpdate(ctx context.Context, receiver domain.Receiver) (*domain.ActorMessageQueue, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM actor_message_queues WHERE actor_number = ? AND actor_role = ?`,
		receiver.Number.String(), receiver.Role.String(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrActorMessageQueueNotFound
		}
		return nil, fmt.Errorf("get actor message queue for %s: %w", receiver, err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	queueID := domain.ActorMessageQueueID(parsed)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bundleColumns+` FROM bundles WHERE actor_message_queue_id = ? AND dequeued_at IS NULL ORDER BY sequence, created_at, id`,
		queueID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list bundles of queue %s: %w", queueID, err)
	}
	bundles, err := collectBundles(rows)
	if err != nil {
		return nil, err
	}
	return domain.ActorMessageQueueFromPersistedState(queueID, receiver, bundles), nil
}

func (r *actorMessageQueueRepository) SaveBundles(ctx context.Context, q *domain.ActorMessageQueue) error {
	upsert := `
		INSERT INTO bundles (` + bundleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			message_count = excluded.message_count,
			closed_at = excluded.closed_at,
			close_reason = excluded.close_reason,
			dequeued_at = excluded.dequeued_at
	`
	for _, b := range q.ChangedBundles() {
		if _, err := r.db.ExecContext(ctx, upsert, bundleArgs(b)...); err != nil {
			return fmt.Errorf("save bundle %s: %w", b.ID(), err)
		}
	}
	q.ClearChanges()
	return nil
}

type bundleRepository struct {
	db querier
}

func (r *bundleRepository) GetByID(ctx context.Context, id domain.BundleID) (*domain.Bundle, error) {
	b, err := scanBundle(r.db.QueryRowContext(ctx, `SELECT `+bundleColumns+` FROM bundles WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBundleNotFound
		}
		return nil, fmt.Errorf("get bundle %s: %w", id, err)
	}
	return b, nil
}

func (r *bundleRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Bundle, error) {
	b, err := scanBundle(r.db.QueryRowContext(ctx, `SELECT `+bundleColumns+` FROM bundles WHERE message_id = ?`, messageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBundleNotFound
		}
		return nil, fmt.Errorf("get bundle by message id %s: %w", messageID, err)
	}
	return b, nil
}

func (r *bundleRepository) Save(ctx context.Context, b *domain.Bundle) error {
	s := b.Snapshot()
	res, err := r.db.ExecContext(ctx,
		`UPDATE bundles SET message_count = ?, closed_at = ?, close_reason = ?, dequeued_at = ? WHERE id = ?`,
		s.MessageCount, toNullUnix(s.ClosedAt), string(s.CloseReason), toNullUnix(s.DequeuedAt), s.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update bundle %s: %w", s.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrBundleNotFound
	}
	return nil
}

func (r *bundleRepository) ListDequeuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Bundle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bundleColumns+` FROM bundles WHERE dequeued_at IS NOT NULL AND dequeued_at < ? ORDER BY dequeued_at LIMIT ?`,
		toUnix(cutoff), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list dequeued bundles: %w", err)
	}
	return collectBundles(rows)
}

func (r *bundleRepository) Delete(ctx context.Context, id domain.BundleID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bundles WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete bundle %s: %w", id, err)
	}
	return nil
}

func collectBundles(rows *sql.Rows) ([]*domain.Bundle, error) {
	defer rows.Close()
	var out []*domain.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type outgoingMessageRepository struct {
	db querier
}

func (r *outgoingMessageRepository) Add(ctx context.Context, msg *domain.OutgoingMessage) error {
	s := msg.Snapshot()
	var bundleID sql.NullString
	if s.AssignedBundleID != nil {
		bundleID = sql.NullString{String: s.AssignedBundleID.String(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outgoing_messages (`+outgoingMessageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.DocumentType.String(), s.Receiver.Number.String(), s.Receiver.Role.String(),
		s.Sender.Number.String(), s.Sender.Role.String(), s.BusinessReason.String(), s.ProcessID,
		s.FileStorageReference.String(), bundleID, s.Published, toUnix(s.CreatedAt), s.BundlePosition,
	)
	if err != nil {
		return fmt.Errorf("insert outgoing message %s: %w", s.ID, err)
	}
	return nil
}

func (r *outgoingMessageRepository) ListByBundleID(ctx context.Context, id domain.BundleID) ([]*domain.OutgoingMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outgoingMessageColumns+` FROM outgoing_messages WHERE assigned_bundle_id = ? ORDER BY bundle_position, created_at, id`,
		id.String(),
	)
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
	return out, rows.Err()
}

func (r *outgoingMessageRepository) DeleteByBundleID(ctx context.Context, id domain.BundleID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM outgoing_messages WHERE assigned_bundle_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete messages of bundle %s: %w", id, err)
	}
	return nil
}

type marketDocumentRepository struct {
	db querier
}

func (r *marketDocumentRepository) GetByBundleID(ctx context.Context, bundleID domain.BundleID) (*domain.MarketDocument, error) {
	var (
		id, format, ref string
		createdAt       int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, format, file_storage_reference, created_at FROM market_documents WHERE bundle_id = ?`,
		bundleID.String(),
	).Scan(&id, &format, &ref, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketDocumentNotFound
		}
		return nil, fmt.Errorf("get market document of bundle %s: %w", bundleID, err)
	}
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &domain.MarketDocument{
		ID:                   domain.MarketDocumentID(docID),
		BundleID:             bundleID,
		Format:               domain.DocumentFormat(format),
		FileStorageReference: domain.FileStorageReference(ref),
		CreatedAt:            fromUnix(createdAt),
	}, nil
}

func (r *marketDocumentRepository) Add(ctx context.Context, doc *domain.MarketDocument) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO market_documents (id, bundle_id, format, file_storage_reference, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID.String(), doc.BundleID.String(), doc.Format.String(), doc.FileStorageReference.String(), toUnix(doc.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMarketDocument, doc.BundleID)
		}
		return fmt.Errorf("insert market document for bundle %s: %w", doc.BundleID, err)
	}
	return nil
}

func (r *marketDocumentRepository) DeleteByBundleID(ctx context.Context, bundleID domain.BundleID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM market_documents WHERE bundle_id = ?`, bundleID.String()); err != nil {
		return fmt.Errorf("delete market document of bundle %s: %w", bundleID, err)
	}
	return nil
}

type archivedMessageRepository struct {
	db querier
}

func (r *archivedMessageRepository) Add(ctx context.Context, m *domain.ArchivedMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO archived_messages (id, bundle_id, message_id, document_type, business_reason, format,
		                               sender_number, sender_role, receiver_number, receiver_role,
		                               created_at, file_storage_reference, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.BundleID.String(), m.MessageID, m.DocumentType.String(), m.BusinessReason.String(), m.Format.String(),
		m.Sender.Number.String(), m.Sender.Role.String(), m.Receiver.Number.String(), m.Receiver.Role.String(),
		toUnix(m.CreatedAt), m.FileStorageReference.String(), m.Checksum,
	)
	if err != nil {
		return fmt.Errorf("insert archived message for bundle %s: %w", m.BundleID, err)
	}
	return nil
}

const archivedMessageColumns = `id, bundle_id, message_id, document_type, business_reason, format, sender_number,
       sender_role, receiver_number, receiver_role, created_at, file_storage_reference, checksum`

func (r *archivedMessageRepository) GetByID(ctx context.Context, id domain.ArchivedMessageID) (*domain.ArchivedMessage, error) {
	m, err := scanArchivedMessage(r.db.QueryRowContext(ctx,
		`SELECT `+archivedMessageColumns+` FROM archived_messages WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrArchivedMessageNotFound
		}
		return nil, fmt.Errorf("get archived message %s: %w", id, err)
	}
	return m, nil
}

func (r *archivedMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.ArchivedMessage, error) {
	m, err := scanArchivedMessage(r.db.QueryRowContext(ctx,
		`SELECT `+archivedMessageColumns+` FROM archived_messages WHERE message_id = ?`, messageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrArchivedMessageNotFound
		}
		return nil, fmt.Errorf("get archived message for message id %s: %w", messageID, err)
	}
	return m, nil
}
