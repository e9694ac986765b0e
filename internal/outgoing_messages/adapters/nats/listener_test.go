package nats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edigateway/golang_services/internal/outgoing_messages/app"
	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

type MockEnqueuer struct{ mock.Mock }

func (m *MockEnqueuer) Enqueue(ctx context.Context, in app.EnqueueOutgoingMessage) (domain.OutgoingMessageID, domain.BundleID, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.OutgoingMessageID), args.Get(1).(domain.BundleID), args.Error(2)
}

// fakeSubscriber delivers the queued payloads synchronously.
type fakeSubscriber struct {
	payloads [][]byte
	subject  string
	queue    string
}

func (s *fakeSubscriber) SubscribeToSubjectWithQueue(_ context.Context, subject, queueGroup string, handler nats.MsgHandler) error {
	s.subject, s.queue = subject, queueGroup
	for _, p := range s.payloads {
		handler(&nats.Msg{Subject: subject, Data: p})
	}
	return nil
}

func newListener(enqueuer Enqueuer) *Listener {
	return NewListener(enqueuer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func producedEvent(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetSource("wholesale")
	e.SetType(eventType)
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, data))
	out, err := json.Marshal(e)
	require.NoError(t, err)
	return out
}

func validRequest() app.EnqueueRequest {
	return app.EnqueueRequest{
		DocumentType:   "NotifyAggregatedMeasureData",
		ReceiverNumber: "5790001330583",
		ReceiverRole:   "DDQ",
		SenderNumber:   "5790001330552",
		SenderRole:     "DGL",
		BusinessReason: "D04",
		Record:         json.RawMessage(`{"quantity":1}`),
	}
}

func TestListener_Handle(t *testing.T) {
	enqueuer := &MockEnqueuer{}
	enqueuer.On("Enqueue", mock.Anything, mock.MatchedBy(func(in app.EnqueueOutgoingMessage) bool {
		return in.Receiver.Number == "5790001330583" && string(in.Record) == `{"quantity":1}`
	})).Return(domain.NewOutgoingMessageID(), domain.NewBundleID(), nil).Once()

	err := newListener(enqueuer).Handle(context.Background(), producedEvent(t, OutgoingMessageProducedEventType, validRequest()))
	require.NoError(t, err)
	enqueuer.AssertExpectations(t)
}

func TestListener_HandleMalformed(t *testing.T) {
	invalid := validRequest()
	invalid.ReceiverRole = "nobody"
	missing := validRequest()
	missing.DocumentType = ""

	tests := map[string][]byte{
		"not json":         []byte(`not json`),
		"no envelope":      []byte(`{"document_type":"NotifyAggregatedMeasureData"}`),
		"wrong type":       producedEvent(t, "edi.something_else", validRequest()),
		"data not request": producedEvent(t, OutgoingMessageProducedEventType, []int{1, 2}),
		"invalid actor":    producedEvent(t, OutgoingMessageProducedEventType, invalid),
		"missing field":    producedEvent(t, OutgoingMessageProducedEventType, missing),
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			enqueuer := &MockEnqueuer{}
			err := newListener(enqueuer).Handle(context.Background(), payload)
			assert.ErrorIs(t, err, ErrMalformedEvent)
			enqueuer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
		})
	}
}

func TestListener_HandleEnqueueFailure(t *testing.T) {
	enqueuer := &MockEnqueuer{}
	boom := errors.New("database unavailable")
	enqueuer.On("Enqueue", mock.Anything, mock.Anything).Return(domain.OutgoingMessageID{}, domain.BundleID{}, boom).Once()

	err := newListener(enqueuer).Handle(context.Background(), producedEvent(t, OutgoingMessageProducedEventType, validRequest()))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMalformedEvent)
}

func TestListener_Run(t *testing.T) {
	enqueuer := &MockEnqueuer{}
	enqueuer.On("Enqueue", mock.Anything, mock.Anything).Return(domain.NewOutgoingMessageID(), domain.NewBundleID(), nil).Once()

	sub := &fakeSubscriber{payloads: [][]byte{
		[]byte(`garbage`),
		producedEvent(t, OutgoingMessageProducedEventType, validRequest()),
	}}
	err := newListener(enqueuer).Run(context.Background(), sub, "edi.outgoing_messages.enqueue", "outgoing_messages_service")
	require.NoError(t, err)

	assert.Equal(t, "edi.outgoing_messages.enqueue", sub.subject)
	assert.Equal(t, "outgoing_messages_service", sub.queue)
	enqueuer.AssertExpectations(t)
}
