package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

func TestEnqueue_RollsOverFullBundles(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	a := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	b := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":2}`))
	c := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":3}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	first, err := env.store.Bundles().GetByID(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, domain.BundleClosed, first.State())
	assert.Equal(t, domain.CloseReasonFull, first.CloseReason())

	second, err := env.store.Bundles().GetByID(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, domain.BundleOpen, second.State())
	assert.Equal(t, 3, env.files.Len())
}

func TestEnqueue_SeparatesReceiversAndBusinessReasons(t *testing.T) {
	env := newTestEnv(t, 10)

	base := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	other := env.mustEnqueue(t, aggregation(gridOperator(), `{"quantity":1}`))
	correction := aggregation(energySupplier(), `{"quantity":1}`)
	correction.BusinessReason = domain.BusinessReasonCorrection
	corrected := env.mustEnqueue(t, correction)

	assert.NotEqual(t, base, other)
	assert.NotEqual(t, base, corrected)
	assert.Equal(t, base, env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":2}`)))
}

func TestEnqueue_UsesPerCategoryBundleSize(t *testing.T) {
	env := newTestEnv(t, 100)
	env.enqueue.sizes = NewBundleSizes(100, map[string]int{"aggregations": 1, "bogus": 5})

	a := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	b := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":2}`))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 100, env.enqueue.sizes.For(domain.MessageCategoryMasterData))
}

func TestEnqueue_RejectsInvalidRecord(t *testing.T) {
	env := newTestEnv(t, 10)

	for _, record := range []string{``, `not json`, `[1,2]`, `"text"`} {
		_, _, err := env.enqueue.Enqueue(context.Background(), aggregation(energySupplier(), record))
		assert.ErrorIs(t, err, ErrInvalidRecord, "record %q", record)
	}
	assert.Zero(t, env.files.Len())
}

type failingStore struct {
	domain.Store
	err error
}

func (s failingStore) WithinTransaction(context.Context, func(context.Context, domain.Repositories) error) error {
	return s.err
}

func TestEnqueue_RemovesRecordWhenRoutingFails(t *testing.T) {
	env := newTestEnv(t, 10)
	boom := errors.New("database unavailable")
	svc := NewEnqueueService(failingStore{Store: env.store, err: boom}, env.files, NewBundleSizes(10, nil), env.clock, env.logger)

	_, _, err := svc.Enqueue(context.Background(), aggregation(energySupplier(), `{"quantity":1}`))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, env.files.Len())
}

func TestPeek_EmptyMailbox(t *testing.T) {
	env := newTestEnv(t, 10)

	doc, found, err := env.peek.Peek(context.Background(), PeekRequest{
		Receiver: energySupplier(), Category: domain.MessageCategoryAggregations, Format: domain.DocumentFormatJSON,
	})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, doc)

	env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	_, found, err = env.peek.Peek(context.Background(), PeekRequest{
		Receiver: energySupplier(), Category: domain.MessageCategoryMasterData, Format: domain.DocumentFormatJSON,
	})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPeek_ClosesOpenBundleAndIsRepeatable(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	bundleID := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":2}`))

	first := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatJSON)
	assert.Equal(t, bundleID, first.BundleID)
	assert.Equal(t, domain.DocumentFormatJSON, first.Format)
	series := gjson.GetBytes(first.Payload, "NotifyAggregatedMeasureData_MarketDocument.Series")
	require.True(t, series.IsArray())
	assert.Equal(t, int64(1), series.Array()[0].Get("quantity").Int())
	assert.Equal(t, int64(2), series.Array()[1].Get("quantity").Int())

	b, err := env.store.Bundles().GetByID(ctx, bundleID)
	require.NoError(t, err)
	assert.Equal(t, domain.CloseReasonPeeked, b.CloseReason())

	// Messages arriving after the peek start a new bundle.
	later := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":3}`))
	assert.NotEqual(t, bundleID, later)

	again := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatXML)
	assert.Equal(t, first.MessageID, again.MessageID)
	assert.Equal(t, first.Payload, again.Payload)
	assert.Equal(t, domain.DocumentFormatJSON, again.Format)

	require.Len(t, env.publisher.events, 1)
	event := env.publisher.events[0]
	assert.Equal(t, MarketDocumentCreatedEventType, gjson.GetBytes(event, "type").String())
	assert.Equal(t, bundleID.String(), gjson.GetBytes(event, "data.bundle_id").String())
	assert.Len(t, gjson.GetBytes(event, "data.checksum").String(), 64)
}

func TestPeekDequeue_DeliversBundlesInOrder(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	first := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	second := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":2}`))

	doc := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatXML)
	assert.Equal(t, first, doc.BundleID)
	assert.Contains(t, string(doc.Payload), "<quantity>1</quantity>")

	require.NoError(t, env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: doc.MessageID, Receiver: energySupplier()}))
	// Repeating the dequeue is harmless.
	require.NoError(t, env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: doc.MessageID, Receiver: energySupplier()}))

	next := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatEbix)
	assert.Equal(t, second, next.BundleID)
	assert.Equal(t, domain.DocumentFormatEbix, next.Format)
	require.NoError(t, env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: next.MessageID, Receiver: energySupplier()}))

	_, found, err := env.peek.Peek(ctx, PeekRequest{
		Receiver: energySupplier(), Category: domain.MessageCategoryAggregations, Format: domain.DocumentFormatJSON,
	})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDequeue_Errors(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	bundleID := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	open, err := env.store.Bundles().GetByID(ctx, bundleID)
	require.NoError(t, err)

	err = env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: open.MessageID(), Receiver: energySupplier()})
	assert.ErrorIs(t, err, domain.ErrBundleNotClosed)

	err = env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: "unknown", Receiver: energySupplier()})
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)

	doc := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatJSON)
	err = env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: doc.MessageID, Receiver: gridOperator()})
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)

	stillPending, err := env.store.Bundles().GetByID(ctx, bundleID)
	require.NoError(t, err)
	assert.False(t, stillPending.IsDequeued())
}

func TestPeek_NoWriterForFormat(t *testing.T) {
	env := newTestEnv(t, 10)
	in := aggregation(energySupplier(), `{"reason":"E18"}`)
	in.DocumentType = domain.DocumentTypeRejectRequestAggregatedMeasureData
	env.mustEnqueue(t, in)

	_, _, err := env.peek.Peek(context.Background(), PeekRequest{
		Receiver: energySupplier(), Category: domain.MessageCategoryAggregations, Format: domain.DocumentFormatEbix,
	})
	assert.ErrorIs(t, err, domain.ErrNoDocumentWriter)
	assert.Equal(t, 1, env.files.Len())

	// The bundle stays closed and can still be fetched in a supported format.
	doc := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatXML)
	assert.Equal(t, domain.DocumentFormatXML, doc.Format)
}

func TestEnqueue_ConcurrentProducersKeepOneOpenBundle(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	const producers = 40
	var wg sync.WaitGroup
	errs := make(chan error, producers)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := env.enqueue.Enqueue(ctx, aggregation(energySupplier(), fmt.Sprintf(`{"quantity":%d}`, i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var bundles []*domain.Bundle
	err := env.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		q, err := tx.ActorMessageQueues().GetForUpdate(ctx, energySupplier())
		if err != nil {
			return err
		}
		bundles = q.Bundles()
		return nil
	})
	require.NoError(t, err)

	require.Len(t, bundles, producers/10)
	open, total := 0, 0
	for _, b := range bundles {
		assert.LessOrEqual(t, b.MessageCount(), 10)
		total += b.MessageCount()
		if !b.IsClosed() {
			open++
		}
		msgs, err := env.store.OutgoingMessages().ListByBundleID(ctx, b.ID())
		require.NoError(t, err)
		assert.Len(t, msgs, b.MessageCount())
	}
	assert.Equal(t, producers, total)
	assert.LessOrEqual(t, open, 1)
}

func TestPeek_ConcurrentPeeksMaterializeOnce(t *testing.T) {
	env := newTestEnv(t, 10)
	for i := 0; i < 3; i++ {
		env.mustEnqueue(t, aggregation(energySupplier(), fmt.Sprintf(`{"quantity":%d}`, i)))
	}

	const peekers = 8
	var wg sync.WaitGroup
	results := make([]*PeekedDocument, peekers)
	errs := make([]error, peekers)
	for i := 0; i < peekers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, _, err := env.peek.Peek(context.Background(), PeekRequest{
				Receiver: energySupplier(), Category: domain.MessageCategoryAggregations, Format: domain.DocumentFormatJSON,
			})
			results[i], errs[i] = doc, err
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].BundleID, results[i].BundleID)
		assert.Equal(t, results[0].Payload, results[i].Payload)
	}
	// Three records, one document and one archive copy; losing attempts cleaned up after themselves.
	assert.Equal(t, 5, env.files.Len())
	assert.Len(t, env.publisher.events, 1)
}

func TestRetentionSweeper_Sweep(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":1}`))
	doc := env.mustPeek(t, energySupplier(), domain.MessageCategoryAggregations, domain.DocumentFormatJSON)
	require.NoError(t, env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: doc.MessageID, Receiver: energySupplier()}))
	pending := env.mustEnqueue(t, aggregation(energySupplier(), `{"quantity":2}`))
	require.Equal(t, 4, env.files.Len())

	sweeper, err := NewRetentionSweeper(env.store, env.files, RetentionConfig{Cron: "0 3 * * *", Period: 24 * time.Hour, BatchSize: 1}, env.clock, env.logger)
	require.NoError(t, err)

	deleted, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	env.clock.Advance(25 * time.Hour)
	deleted, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = env.store.Bundles().GetByID(ctx, doc.BundleID)
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)
	_, err = env.store.Bundles().GetByID(ctx, pending)
	assert.NoError(t, err)
	// The pending record and the archive copy remain.
	assert.Equal(t, 2, env.files.Len())

	// Repeating the dequeue after the sweep still succeeds for the owner only.
	require.NoError(t, env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: doc.MessageID, Receiver: energySupplier()}))
	err = env.dequeue.Dequeue(ctx, DequeueRequest{MessageID: doc.MessageID, Receiver: gridOperator()})
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)
}

func TestNewRetentionSweeper_Validation(t *testing.T) {
	env := newTestEnv(t, 10)

	_, err := NewRetentionSweeper(env.store, env.files, RetentionConfig{Cron: "not a cron", Period: time.Hour}, env.clock, env.logger)
	assert.Error(t, err)
	_, err = NewRetentionSweeper(env.store, env.files, RetentionConfig{Cron: "@daily"}, env.clock, env.logger)
	assert.Error(t, err)

	s, err := NewRetentionSweeper(env.store, env.files, RetentionConfig{Cron: "@daily", Period: time.Hour}, env.clock, env.logger)
	require.NoError(t, err)
	assert.Equal(t, 500, s.cfg.BatchSize)
}
