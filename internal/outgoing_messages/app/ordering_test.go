package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
	"github.com/edigateway/golang_services/internal/platform/filestorage"
)

// gatedStorage holds the first upload until release is closed.
type gatedStorage struct {
	*filestorage.MemoryStorage
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStorage(next *filestorage.MemoryStorage) *gatedStorage {
	return &gatedStorage{MemoryStorage: next, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStorage) Upload(ctx context.Context, ref domain.FileStorageReference, data []byte) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.MemoryStorage.Upload(ctx, ref, data)
}

type enqueueResult struct {
	bundleID domain.BundleID
	err      error
}

// startSlowEnqueue begins an enqueue that stops inside the record upload.
func startSlowEnqueue(t *testing.T, env *testEnv, maxBundleSize int, in EnqueueOutgoingMessage) (*gatedStorage, <-chan enqueueResult) {
	t.Helper()
	gated := newGatedStorage(env.files)
	svc := NewEnqueueService(env.store, gated, NewBundleSizes(maxBundleSize, nil), env.clock, env.logger)
	done := make(chan enqueueResult, 1)
	go func() {
		_, bundleID, err := svc.Enqueue(context.Background(), in)
		done <- enqueueResult{bundleID: bundleID, err: err}
	}()
	select {
	case <-gated.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("slow enqueue never reached the upload")
	}
	return gated, done
}

func waitEnqueue(t *testing.T, done <-chan enqueueResult) domain.BundleID {
	t.Helper()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		return res.bundleID
	case <-time.After(5 * time.Second):
		t.Fatal("slow enqueue did not finish")
		return domain.BundleID{}
	}
}

func TestPeek_SlowProducerDoesNotOvertakePeekedBundle(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	gated, done := startSlowEnqueue(t, env, 10, aggregation(energySupplier(), `{"quantity":"slow"}`))

	fastBundle := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":"fast"}`))
	first := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatXML)
	require.Equal(t, fastBundle, first.BundleID)

	// Another instance with a lagging clock finishes the slow enqueue.
	env.clock.Advance(-time.Hour)
	close(gated.release)
	slowBundle := waitEnqueue(t, done)
	require.NotEqual(t, fastBundle, slowBundle)

	again := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatXML)
	assert.Equal(t, first.BundleID, again.BundleID)
	assert.Equal(t, first.MessageID, again.MessageID)
	assert.Equal(t, first.Payload, again.Payload)

	require.NoError(t, env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: first.MessageID, Receiver: energySupplier()}))
	next := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatXML)
	assert.Equal(t, slowBundle, next.BundleID)
	assert.Contains(t, string(next.Payload), "<quantity>slow</quantity>")
}

func TestPeek_RendersMessagesInBundleOrder(t *testing.T) {
	env := newTestEnv(t, 10)

	gated, done := startSlowEnqueue(t, env, 10, aggregation(energySupplier(), `{"quantity":"slow"}`))
	fastBundle := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":"fast"}`))
	close(gated.release)
	require.Equal(t, fastBundle, waitEnqueue(t, done))

	doc := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatXML)
	payload := string(doc.Payload)
	fastAt := strings.Index(payload, "<quantity>fast</quantity>")
	slowAt := strings.Index(payload, "<quantity>slow</quantity>")
	require.NotEqual(t, -1, fastAt)
	require.NotEqual(t, -1, slowAt)
	// The slow message was created first but joined the bundle second.
	assert.Less(t, fastAt, slowAt)
}
