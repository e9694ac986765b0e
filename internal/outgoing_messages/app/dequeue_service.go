package app

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// DequeueRequest acknowledges a peeked document by its message id.
type DequeueRequest struct {
	MessageID string
	Receiver  domain.Receiver
}

type DequeueService struct {
	store  domain.Store
	clock  domain.Clock
	logger *slog.Logger
}

func NewDequeueService(store domain.Store, clock domain.Clock, logger *slog.Logger) *DequeueService {
	return &DequeueService{
		store:  store,
		clock:  clock,
		logger: logger.With("component", "dequeue_service"),
	}
}

// Dequeue removes the bundle from the actor's mailbox. A message id that is unknown or belongs
// to another actor yields domain.ErrBundleNotFound, a bundle that was never peeked
// domain.ErrBundleNotClosed. Dequeuing twice succeeds, also after the retention sweep removed
// the bundle.
func (s *DequeueService) Dequeue(ctx context.Context, req DequeueRequest) error {
	ctx, span := tracer.Start(ctx, "DequeueService.Dequeue")
	defer span.End()
	span.SetAttributes(attribute.String("edi.message_id", req.MessageID))

	err := s.dequeue(ctx, req)
	switch {
	case err == nil:
		dequeuesCounter.WithLabelValues("success").Inc()
		return nil
	case errors.Is(err, domain.ErrBundleNotFound):
		dequeuesCounter.WithLabelValues("not_found").Inc()
	case errors.Is(err, domain.ErrBundleNotClosed):
		dequeuesCounter.WithLabelValues("not_closed").Inc()
	default:
		dequeuesCounter.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "dequeue failed")
	}
	return err
}

func (s *DequeueService) dequeue(ctx context.Context, req DequeueRequest) error {
	return s.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		b, err := tx.Bundles().GetByMessageID(ctx, req.MessageID)
		if errors.Is(err, domain.ErrBundleNotFound) {
			return s.dequeuedBeforeSweep(ctx, tx, req)
		}
		if err != nil {
			return err
		}
		if b.Receiver() != req.Receiver {
			s.logger.WarnContext(ctx, "Dequeue of a bundle owned by another actor",
				"message_id", req.MessageID, "requested_by", req.Receiver.String())
			return domain.ErrBundleNotFound
		}

		// Lock the mailbox so the state change is ordered with enqueue and peek.
		q, err := tx.ActorMessageQueues().GetForUpdate(ctx, req.Receiver)
		if err != nil {
			return err
		}
		pending, ok := q.Bundle(b.ID())
		if !ok {
			return nil
		}
		if pending.IsDequeued() {
			return nil
		}
		if err := pending.Dequeue(s.clock.Now()); err != nil {
			return err
		}
		if err := tx.Bundles().Save(ctx, pending); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "Bundle dequeued", "bundle_id", pending.ID(), "message_id", req.MessageID)
		return nil
	})
}

// dequeuedBeforeSweep answers a repeated dequeue of a bundle the retention sweep already removed.
// Only dequeued bundles are swept, and their archive entry stays behind.
func (s *DequeueService) dequeuedBeforeSweep(ctx context.Context, tx domain.Repositories, req DequeueRequest) error {
	archived, err := tx.ArchivedMessages().GetByMessageID(ctx, req.MessageID)
	if errors.Is(err, domain.ErrArchivedMessageNotFound) {
		return domain.ErrBundleNotFound
	}
	if err != nil {
		return err
	}
	if archived.Receiver != req.Receiver {
		return domain.ErrBundleNotFound
	}
	s.logger.DebugContext(ctx, "Dequeue of an already swept bundle", "bundle_id", archived.BundleID, "message_id", req.MessageID)
	return nil
}
