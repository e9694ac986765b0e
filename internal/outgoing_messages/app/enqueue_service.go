package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// ErrInvalidRecord indicates a message record that is not a JSON object.
var ErrInvalidRecord = errors.New("outgoing message record must be a JSON object")

// EnqueueOutgoingMessage is a produced message handed over for delivery.
type EnqueueOutgoingMessage struct {
	DocumentType   domain.DocumentType
	Receiver       domain.Receiver
	Sender         domain.Sender
	BusinessReason domain.BusinessReason
	ProcessID      string
	Record         []byte
}

// BundleSizes resolves the maximum number of messages per bundle for a category.
type BundleSizes struct {
	Default     int
	PerCategory map[domain.MessageCategory]int
}

// NewBundleSizes builds the limits from configuration keyed by category name. Unknown names
// are ignored.
func NewBundleSizes(defaultSize int, perCategory map[string]int) BundleSizes {
	sizes := BundleSizes{Default: defaultSize, PerCategory: make(map[domain.MessageCategory]int)}
	for name, size := range perCategory {
		category, err := domain.ParseMessageCategory(name)
		if err != nil || size < 1 {
			continue
		}
		sizes.PerCategory[category] = size
	}
	return sizes
}

func (s BundleSizes) For(category domain.MessageCategory) int {
	if size, ok := s.PerCategory[category]; ok {
		return size
	}
	return s.Default
}

// EnqueueService routes produced messages into the bundles of their receiver's queue.
type EnqueueService struct {
	store  domain.Store
	files  domain.FileStorage
	sizes  BundleSizes
	clock  domain.Clock
	logger *slog.Logger
}

func NewEnqueueService(store domain.Store, files domain.FileStorage, sizes BundleSizes, clock domain.Clock, logger *slog.Logger) *EnqueueService {
	return &EnqueueService{
		store:  store,
		files:  files,
		sizes:  sizes,
		clock:  clock,
		logger: logger.With("component", "enqueue_service"),
	}
}

// Enqueue stores the record, then creates the message and routes it while the receiver's queue
// is locked. The stored record is removed again when routing fails.
func (s *EnqueueService) Enqueue(ctx context.Context, in EnqueueOutgoingMessage) (domain.OutgoingMessageID, domain.BundleID, error) {
	ctx, span := tracer.Start(ctx, "EnqueueService.Enqueue", trace.WithAttributes(
		attribute.String("edi.receiver", in.Receiver.String()),
		attribute.String("edi.document_type", in.DocumentType.String()),
	))
	defer span.End()

	category := in.DocumentType.Category()
	msgID, bundleID, err := s.enqueue(ctx, in)
	if err != nil {
		messagesEnqueuedCounter.WithLabelValues(category.String(), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		return domain.OutgoingMessageID{}, domain.BundleID{}, err
	}
	messagesEnqueuedCounter.WithLabelValues(category.String(), "success").Inc()
	span.SetAttributes(attribute.String("edi.bundle_id", bundleID.String()))
	return msgID, bundleID, nil
}

func (s *EnqueueService) enqueue(ctx context.Context, in EnqueueOutgoingMessage) (domain.OutgoingMessageID, domain.BundleID, error) {
	if !gjson.ValidBytes(in.Record) || !gjson.ParseBytes(in.Record).IsObject() {
		return domain.OutgoingMessageID{}, domain.BundleID{}, ErrInvalidRecord
	}

	msg := domain.CreateOutgoingMessage(domain.NewOutgoingMessage{
		DocumentType:   in.DocumentType,
		Receiver:       in.Receiver,
		Sender:         in.Sender,
		BusinessReason: in.BusinessReason,
		ProcessID:      in.ProcessID,
		Record:         in.Record,
	}, s.clock.Now())

	if err := s.files.Upload(ctx, msg.FileStorageReference(), msg.Record()); err != nil {
		return domain.OutgoingMessageID{}, domain.BundleID{}, fmt.Errorf("store record of message %s: %w", msg.ID(), err)
	}

	var (
		bundleID domain.BundleID
		closed   []*domain.Bundle
	)
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		q, err := tx.ActorMessageQueues().GetOrCreateForUpdate(ctx, msg.Receiver())
		if err != nil {
			return err
		}
		routedAt := s.clock.Now()
		bundleID, err = q.Route(msg, s.sizes.For(msg.Category()), routedAt)
		if err != nil {
			return fmt.Errorf("route message %s: %w", msg.ID(), err)
		}
		closed = closedDuring(q.ChangedBundles(), routedAt)
		if err := tx.ActorMessageQueues().SaveBundles(ctx, q); err != nil {
			return err
		}
		return tx.OutgoingMessages().Add(ctx, msg)
	})
	if err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), msg.FileStorageReference()); delErr != nil {
			s.logger.WarnContext(ctx, "Failed to remove record of unrouted message", "message_id", msg.ID(), "error", delErr)
		}
		return domain.OutgoingMessageID{}, domain.BundleID{}, err
	}

	for _, b := range closed {
		bundlesClosedCounter.WithLabelValues(string(b.CloseReason())).Inc()
	}
	s.logger.DebugContext(ctx, "Outgoing message enqueued",
		"message_id", msg.ID(), "bundle_id", bundleID, "receiver", msg.Receiver().String(), "document_type", msg.DocumentType())
	return msg.ID(), bundleID, nil
}

// closedDuring returns the bundles closed at now.
func closedDuring(bundles []*domain.Bundle, now time.Time) []*domain.Bundle {
	var out []*domain.Bundle
	for _, b := range bundles {
		if at, ok := b.ClosedAt(); ok && at.Equal(now) {
			out = append(out, b)
		}
	}
	return out
}
