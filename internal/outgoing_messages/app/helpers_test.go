package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edigateway/golang_services/internal/outgoing_messages/documents"
	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
	"github.com/edigateway/golang_services/internal/outgoing_messages/repository/sqlite"
	"github.com/edigateway/golang_services/internal/platform/filestorage"
)

var testStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Every reading is distinct so creation order is unambiguous.
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, data)
	return nil
}

type testEnv struct {
	store     *sqlite.Store
	files     *filestorage.MemoryStorage
	clock     *testClock
	publisher *recordingPublisher
	enqueue   *EnqueueService
	peek      *PeekService
	dequeue   *DequeueService
	logger    *slog.Logger
}

func newTestEnv(t *testing.T, maxBundleSize int) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "outgoing.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	factory, err := documents.NewDefaultDocumentFactory()
	require.NoError(t, err)

	env := &testEnv{
		store:     store,
		files:     filestorage.NewMemoryStorage(),
		clock:     &testClock{now: testStart},
		publisher: &recordingPublisher{},
		logger:    logger,
	}
	materializer := NewMaterializer(store, env.files, factory, env.publisher, "edi.market_document.created", env.clock, logger)
	env.enqueue = NewEnqueueService(store, env.files, NewBundleSizes(maxBundleSize, nil), env.clock, logger)
	env.peek = NewPeekService(store, materializer, env.clock, logger)
	env.dequeue = NewDequeueService(store, env.clock, logger)
	return env
}

func energySupplier() domain.Receiver {
	return domain.Receiver{Number: "5790001330583", Role: domain.ActorRoleEnergySupplier}
}

func gridOperator() domain.Receiver {
	return domain.Receiver{Number: "5790001330590", Role: domain.ActorRoleGridAccessProvider}
}

func dataHub() domain.Sender {
	return domain.Sender{Number: "5790001330552", Role: domain.ActorRoleDataHubAdministrator}
}

func aggregation(receiver domain.Receiver, record string) EnqueueOutgoingMessage {
	return EnqueueOutgoingMessage{
		DocumentType:   domain.DocumentTypeNotifyAggregatedMeasureData,
		Receiver:       receiver,
		Sender:         dataHub(),
		BusinessReason: domain.BusinessReasonBalanceFixing,
		ProcessID:      "process-1",
		Record:         []byte(record),
	}
}

func (e *testEnv) mustEnqueue(t *testing.T, in EnqueueOutgoingMessage) domain.BundleID {
	t.Helper()
	_, bundleID, err := e.enqueue.Enqueue(context.Background(), in)
	require.NoError(t, err)
	return bundleID
}

func (e *testEnv) mustPeek(t *testing.T, receiver domain.Receiver, category domain.MessageCategory, format domain.DocumentFormat) *PeekedDocument {
	t.Helper()
	doc, found, err := e.peek.Peek(context.Background(), PeekRequest{Receiver: receiver, Category: category, Format: format})
	require.NoError(t, err)
	require.True(t, found, "expected a document to peek")
	return doc
}
