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

type pgActorMessageQueueRepository struct {
	db      Querier
	bundles *pgBundleRepository
	logger  *slog.Logger
}

func (r *pgActorMessageQueueRepository) GetOrCreateForUpdate(ctx context.Context, receiver domain.Receiver) (*domain.ActorMessageQueue, error) {
	insert := `
		INSERT INTO actor_message_queues (id, actor_number, actor_role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (actor_number, actor_role) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, insert, domain.NewActorMessageQueueID().UUID(), receiver.Number.String(), receiver.Role.String(), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create actor message queue for %s: %w", receiver, err)
	}
	if tag.RowsAffected() == 1 {
		r.logger.DebugContext(ctx, "Created actor message queue", "receiver", receiver.String())
	}
	return r.GetForUpdate(ctx, receiver)
}

func (r *pgActorMessageQueueRepository) GetForUpdate(ctx context.Context, receiver domain.Receiver) (*domain.ActorMessageQueue, error) {
	var id uuid.UUID
	query := `SELECT id FROM actor_message_queues WHERE actor_number = $1 AND actor_role = $2 FOR UPDATE`
	if err := r.db.QueryRow(ctx, query, receiver.Number.String(), receiver.Role.String()).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActorMessageQueueNotFound
		}
		return nil, fmt.Errorf("lock actor message queue for %s: %w", receiver, err)
	}

	queueID := domain.ActorMessageQueueID(id)
	bundles, err := r.bundles.listPending(ctx, queueID)
	if err != nil {
		return nil, err
	}
	return domain.ActorMessageQueueFromPersistedState(queueID, receiver, bundles), nil
}

// SaveBundles writes changed bundles oldest first, so a bundle closed by the routing step is
// updated before its replacement is inserted.
func (r *pgActorMessageQueueRepository) SaveBundles(ctx context.Context, q *domain.ActorMessageQueue) error {
	upsert := `
		INSERT INTO bundles (` + bundleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			message_count = EXCLUDED.message_count,
			closed_at = EXCLUDED.closed_at,
			close_reason = EXCLUDED.close_reason,
			dequeued_at = EXCLUDED.dequeued_at
	`
	for _, b := range q.ChangedBundles() {
		if _, err := r.db.Exec(ctx, upsert, bundleArgs(b)...); err != nil {
			return fmt.Errorf("save bundle %s: %w", b.ID(), err)
		}
	}
	q.ClearChanges()
	return nil
}
