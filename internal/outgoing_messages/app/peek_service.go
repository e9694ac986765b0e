package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// PeekRequest asks for the next document of a category in the actor's mailbox.
type PeekRequest struct {
	Receiver domain.Receiver
	Category domain.MessageCategory
	Format   domain.DocumentFormat
}

// PeekedDocument is what the actor receives on a successful peek. MessageID is the value the
// actor passes to Dequeue.
type PeekedDocument struct {
	BundleID     domain.BundleID
	MessageID    string
	DocumentType domain.DocumentType
	Format       domain.DocumentFormat
	Payload      []byte
}

// PeekService returns the next bundle to deliver. Selecting and closing the bundle happens in
// one short transaction; rendering happens after it commits so the queue lock is not held
// while documents are built.
type PeekService struct {
	store        domain.Store
	materializer *Materializer
	clock        domain.Clock
	logger       *slog.Logger
}

func NewPeekService(store domain.Store, materializer *Materializer, clock domain.Clock, logger *slog.Logger) *PeekService {
	return &PeekService{
		store:        store,
		materializer: materializer,
		clock:        clock,
		logger:       logger.With("component", "peek_service"),
	}
}

// Peek reports false when the category has nothing to deliver. Peeking repeatedly without a
// dequeue returns the same document.
func (s *PeekService) Peek(ctx context.Context, req PeekRequest) (*PeekedDocument, bool, error) {
	ctx, span := tracer.Start(ctx, "PeekService.Peek")
	defer span.End()
	span.SetAttributes(
		attribute.String("edi.receiver", req.Receiver.String()),
		attribute.String("edi.category", req.Category.String()),
	)

	doc, found, err := s.peek(ctx, req)
	switch {
	case err != nil:
		peeksCounter.WithLabelValues(req.Category.String(), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "peek failed")
	case !found:
		peeksCounter.WithLabelValues(req.Category.String(), "empty").Inc()
	default:
		peeksCounter.WithLabelValues(req.Category.String(), "found").Inc()
	}
	return doc, found, err
}

func (s *PeekService) peek(ctx context.Context, req PeekRequest) (*PeekedDocument, bool, error) {
	b, err := s.selectBundle(ctx, req)
	if err != nil || b == nil {
		return nil, false, err
	}

	materialized, err := s.materializer.Materialize(ctx, b, req.Format)
	if err != nil {
		return nil, false, err
	}
	return &PeekedDocument{
		BundleID:     b.ID(),
		MessageID:    b.MessageID(),
		DocumentType: b.DocumentType(),
		Format:       materialized.Document.Format,
		Payload:      materialized.Payload,
	}, true, nil
}

// selectBundle returns nil when there is nothing to deliver.
func (s *PeekService) selectBundle(ctx context.Context, req PeekRequest) (*domain.Bundle, error) {
	var (
		selected *domain.Bundle
		closed   bool
	)
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		q, err := tx.ActorMessageQueues().GetForUpdate(ctx, req.Receiver)
		if err != nil {
			if errors.Is(err, domain.ErrActorMessageQueueNotFound) {
				return nil
			}
			return err
		}
		id, found := q.Peek(req.Category, s.clock.Now()).BundleID()
		if !found {
			return nil
		}
		b, ok := q.Bundle(id)
		if !ok {
			return fmt.Errorf("peeked bundle %s missing from queue %s", id, q.ID())
		}
		closed = len(q.ChangedBundles()) > 0
		if err := tx.ActorMessageQueues().SaveBundles(ctx, q); err != nil {
			return err
		}
		selected = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if closed {
		bundlesClosedCounter.WithLabelValues(string(domain.CloseReasonPeeked)).Inc()
		s.logger.DebugContext(ctx, "Bundle closed by peek", "bundle_id", selected.ID(), "receiver", req.Receiver.String())
	}
	return selected, nil
}
