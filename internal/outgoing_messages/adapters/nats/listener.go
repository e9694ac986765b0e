// Package nats routes messages produced by other subsystems into actor queues. Producers
// publish structured mode CloudEvents whose data is an app.EnqueueRequest.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"

	"github.com/edigateway/golang_services/internal/outgoing_messages/app"
	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// OutgoingMessageProducedEventType is the only event type the listener accepts.
const OutgoingMessageProducedEventType = "edi.outgoing_message.produced"

// ErrMalformedEvent marks events that can never be processed.
var ErrMalformedEvent = errors.New("malformed outgoing message event")

type Enqueuer interface {
	Enqueue(ctx context.Context, in app.EnqueueOutgoingMessage) (domain.OutgoingMessageID, domain.BundleID, error)
}

// Subscriber is satisfied by *messagebroker.NATSClient.
type Subscriber interface {
	SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) error
}

type Listener struct {
	enqueuer       Enqueuer
	validate       *validator.Validate
	logger         *slog.Logger
	handlerTimeout time.Duration
}

func NewListener(enqueuer Enqueuer, logger *slog.Logger) *Listener {
	return &Listener{
		enqueuer:       enqueuer,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger.With("component", "nats_listener"),
		handlerTimeout: 30 * time.Second,
	}
}

// Run consumes subject in the queue group until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, sub Subscriber, subject, queueGroup string) error {
	l.logger.InfoContext(ctx, "Starting outgoing message consumer", "subject", subject, "queue_group", queueGroup)
	return sub.SubscribeToSubjectWithQueue(ctx, subject, queueGroup, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, l.handlerTimeout)
		defer cancel()
		if err := l.Handle(msgCtx, msg.Data); err != nil {
			if errors.Is(err, ErrMalformedEvent) {
				l.logger.WarnContext(msgCtx, "Dropping malformed event", "subject", msg.Subject, "error", err)
				return
			}
			l.logger.ErrorContext(msgCtx, "Failed to enqueue outgoing message", "subject", msg.Subject, "error", err)
		}
	})
}

// Handle decodes one event and enqueues its message. Decoding and validation failures wrap
// ErrMalformedEvent.
func (l *Listener) Handle(ctx context.Context, data []byte) error {
	var event cloudevents.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type() != OutgoingMessageProducedEventType {
		return fmt.Errorf("%w: unexpected event type %q", ErrMalformedEvent, event.Type())
	}

	var req app.EnqueueRequest
	if err := event.DataAs(&req); err != nil {
		return fmt.Errorf("%w: event %s: %v", ErrMalformedEvent, event.ID(), err)
	}
	if err := l.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: event %s: %v", ErrMalformedEvent, event.ID(), err)
	}
	cmd, err := req.ToCommand()
	if err != nil {
		return fmt.Errorf("%w: event %s: %v", ErrMalformedEvent, event.ID(), err)
	}

	msgID, bundleID, err := l.enqueuer.Enqueue(ctx, cmd)
	if err != nil {
		if errors.Is(err, app.ErrInvalidRecord) {
			return fmt.Errorf("%w: event %s: %v", ErrMalformedEvent, event.ID(), err)
		}
		return fmt.Errorf("enqueue event %s: %w", event.ID(), err)
	}
	l.logger.DebugContext(ctx, "Event enqueued", "event_id", event.ID(), "message_id", msgID, "bundle_id", bundleID)
	return nil
}
