package app

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/sha3"

	"github.com/edigateway/golang_services/internal/outgoing_messages/documents"
	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// MarketDocumentCreatedEventType is the CloudEvents type published after a bundle is first
// rendered.
const MarketDocumentCreatedEventType = "edi.market_document.created"

// Publisher sends notifications. *messagebroker.NATSClient satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// MaterializedDocument is a market document together with its payload.
type MaterializedDocument struct {
	Document *domain.MarketDocument
	Payload  []byte
}

// MarketDocumentCreated is the data of the MarketDocumentCreatedEventType event.
type MarketDocumentCreated struct {
	BundleID       string `json:"bundle_id"`
	MessageID      string `json:"message_id"`
	ReceiverNumber string `json:"receiver_number"`
	ReceiverRole   string `json:"receiver_role"`
	DocumentType   string `json:"document_type"`
	Format         string `json:"format"`
	Checksum       string `json:"checksum"`
}

// Materializer renders a closed bundle into its market document exactly once. Concurrent
// attempts for the same bundle all return the document of the attempt that was stored first.
type Materializer struct {
	store     domain.Store
	files     domain.FileStorage
	factory   *documents.DocumentFactory
	publisher Publisher
	subject   string
	clock     domain.Clock
	logger    *slog.Logger
}

// NewMaterializer creates a Materializer. Notifications are disabled when publisher is nil or
// subject is empty.
func NewMaterializer(store domain.Store, files domain.FileStorage, factory *documents.DocumentFactory, publisher Publisher, subject string, clock domain.Clock, logger *slog.Logger) *Materializer {
	return &Materializer{
		store:     store,
		files:     files,
		factory:   factory,
		publisher: publisher,
		subject:   subject,
		clock:     clock,
		logger:    logger.With("component", "materializer"),
	}
}

// Materialize returns the market document of b, rendering it in the requested format when the
// bundle has none yet. An existing document is returned as stored, whatever its format.
func (m *Materializer) Materialize(ctx context.Context, b *domain.Bundle, format domain.DocumentFormat) (*MaterializedDocument, error) {
	ctx, span := tracer.Start(ctx, "Materializer.Materialize")
	defer span.End()
	span.SetAttributes(
		attribute.String("edi.bundle_id", b.ID().String()),
		attribute.String("edi.format", format.String()),
	)

	start := time.Now()
	doc, outcome, err := m.materialize(ctx, b, format)
	materializationDurationHist.WithLabelValues(format.String()).Observe(time.Since(start).Seconds())
	materializationsCounter.WithLabelValues(format.String(), outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "materialization failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("edi.materialization", outcome))
	return doc, nil
}

func (m *Materializer) materialize(ctx context.Context, b *domain.Bundle, format domain.DocumentFormat) (*MaterializedDocument, string, error) {
	existing, err := m.load(ctx, b.ID())
	if err == nil {
		return existing, "cache_hit", nil
	}
	if !errors.Is(err, domain.ErrMarketDocumentNotFound) {
		return nil, "error", err
	}

	msgs, err := m.store.OutgoingMessages().ListByBundleID(ctx, b.ID())
	if err != nil {
		return nil, "error", fmt.Errorf("load messages of bundle %s: %w", b.ID(), err)
	}
	if len(msgs) == 0 {
		return nil, "error", fmt.Errorf("bundle %s has no messages", b.ID())
	}
	records := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		record, err := m.files.Download(ctx, msg.FileStorageReference())
		if err != nil {
			return nil, "error", fmt.Errorf("load record of message %s: %w", msg.ID(), err)
		}
		records = append(records, record)
	}

	now := m.clock.Now()
	sender := msgs[0].Sender()
	payload, err := m.factory.Write(ctx, format, documents.OutgoingMessageHeader{
		MessageID:      b.MessageID(),
		DocumentType:   b.DocumentType(),
		BusinessReason: b.BusinessReason(),
		Sender:         sender,
		Receiver:       b.Receiver(),
		CreatedAt:      now,
	}, records)
	if err != nil {
		return nil, "error", fmt.Errorf("render bundle %s as %s: %w", b.ID(), format, err)
	}

	sum := sha3.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])
	doc := domain.NewMarketDocument(b.ID(), format, domain.MarketDocumentReference(b.ID(), uuid.New()), now)
	archived := domain.NewArchivedMessage(b, sender, format, checksum, now)

	if err := m.files.Upload(ctx, doc.FileStorageReference, payload); err != nil {
		return nil, "error", fmt.Errorf("store document of bundle %s: %w", b.ID(), err)
	}
	if err := m.files.Upload(ctx, archived.FileStorageReference, payload); err != nil {
		m.discard(ctx, doc.FileStorageReference)
		return nil, "error", fmt.Errorf("store archive copy of bundle %s: %w", b.ID(), err)
	}

	err = m.store.WithinTransaction(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if err := tx.MarketDocuments().Add(ctx, doc); err != nil {
			return err
		}
		return tx.ArchivedMessages().Add(ctx, archived)
	})
	if err != nil {
		m.discard(ctx, doc.FileStorageReference, archived.FileStorageReference)
		if !errors.Is(err, domain.ErrDuplicateMarketDocument) {
			return nil, "error", err
		}
		m.logger.InfoContext(ctx, "Bundle was materialized concurrently, using stored document", "bundle_id", b.ID())
		winner, err := m.load(ctx, b.ID())
		if err != nil {
			return nil, "error", err
		}
		return winner, "conflict", nil
	}

	m.logger.InfoContext(ctx, "Market document created",
		"bundle_id", b.ID(), "message_id", b.MessageID(), "format", format, "messages", len(msgs))
	m.notify(ctx, b, doc, checksum)
	return &MaterializedDocument{Document: doc, Payload: payload}, "rendered", nil
}

func (m *Materializer) load(ctx context.Context, bundleID domain.BundleID) (*MaterializedDocument, error) {
	doc, err := m.store.MarketDocuments().GetByBundleID(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	payload, err := m.files.Download(ctx, doc.FileStorageReference)
	if err != nil {
		return nil, fmt.Errorf("load document of bundle %s: %w", bundleID, err)
	}
	return &MaterializedDocument{Document: doc, Payload: payload}, nil
}

func (m *Materializer) discard(ctx context.Context, refs ...domain.FileStorageReference) {
	ctx = context.WithoutCancel(ctx)
	for _, ref := range refs {
		if err := m.files.Delete(ctx, ref); err != nil {
			m.logger.WarnContext(ctx, "Failed to delete unused upload", "reference", ref, "error", err)
		}
	}
}

func (m *Materializer) notify(ctx context.Context, b *domain.Bundle, doc *domain.MarketDocument, checksum string) {
	if m.publisher == nil || m.subject == "" {
		return
	}
	data, err := newMarketDocumentCreatedEvent(b, doc, checksum)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to build market document event", "bundle_id", b.ID(), "error", err)
		return
	}
	if err := m.publisher.Publish(ctx, m.subject, data); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish market document event", "bundle_id", b.ID(), "error", err)
	}
}

func newMarketDocumentCreatedEvent(b *domain.Bundle, doc *domain.MarketDocument, checksum string) ([]byte, error) {
	e := cloudevents.NewEvent()
	e.SetID(doc.ID.String())
	e.SetType(MarketDocumentCreatedEventType)
	e.SetSource("outgoing_messages_service")
	e.SetSubject(b.MessageID())
	e.SetTime(doc.CreatedAt)
	if err := e.SetData(cloudevents.ApplicationJSON, MarketDocumentCreated{
		BundleID:       b.ID().String(),
		MessageID:      b.MessageID(),
		ReceiverNumber: b.Receiver().Number.String(),
		ReceiverRole:   b.Receiver().Role.String(),
		DocumentType:   b.DocumentType().String(),
		Format:         doc.Format.String(),
		Checksum:       checksum,
	}); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}
