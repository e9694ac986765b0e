package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileStorageReference locates a blob in file storage.
type FileStorageReference string

func (r FileStorageReference) String() string { return string(r) }

// OutgoingMessageReference is where the serialized record of a message is kept.
func OutgoingMessageReference(id OutgoingMessageID) FileStorageReference {
	return FileStorageReference("outgoing-messages/" + id.String())
}

// MarketDocumentReference is unique per materialization attempt, so a losing concurrent attempt
// never overwrites the payload of the winner.
func MarketDocumentReference(bundleID BundleID, attempt uuid.UUID) FileStorageReference {
	return FileStorageReference(fmt.Sprintf("market-documents/%s/%s", bundleID, attempt))
}

// ArchivedMessageReference partitions archive copies by day.
func ArchivedMessageReference(id ArchivedMessageID, createdAt time.Time) FileStorageReference {
	t := createdAt.UTC()
	return FileStorageReference(fmt.Sprintf("archived-messages/%04d/%02d/%02d/%s", t.Year(), t.Month(), t.Day(), id))
}

// MarketDocument is the rendered document of one bundle. There is at most one per bundle.
type MarketDocument struct {
	ID                   MarketDocumentID
	BundleID             BundleID
	Format               DocumentFormat
	FileStorageReference FileStorageReference
	CreatedAt            time.Time
}

// NewMarketDocument creates a document for a payload stored under ref.
func NewMarketDocument(bundleID BundleID, format DocumentFormat, ref FileStorageReference, now time.Time) *MarketDocument {
	return &MarketDocument{
		ID:                   NewMarketDocumentID(),
		BundleID:             bundleID,
		Format:               format,
		FileStorageReference: ref,
		CreatedAt:            now.UTC(),
	}
}

// ArchivedMessage is the immutable audit copy written when a bundle is first materialized.
type ArchivedMessage struct {
	ID                   ArchivedMessageID
	BundleID             BundleID
	MessageID            string
	DocumentType         DocumentType
	BusinessReason       BusinessReason
	Format               DocumentFormat
	Sender               Sender
	Receiver             Receiver
	CreatedAt            time.Time
	FileStorageReference FileStorageReference
	Checksum             string // hex encoded SHA3-256 of the payload
}

// NewArchivedMessage describes the archive copy of the document rendered for b.
func NewArchivedMessage(b *Bundle, sender Sender, format DocumentFormat, checksum string, now time.Time) *ArchivedMessage {
	id := NewArchivedMessageID()
	return &ArchivedMessage{
		ID:                   id,
		BundleID:             b.ID(),
		MessageID:            b.MessageID(),
		DocumentType:         b.DocumentType(),
		BusinessReason:       b.BusinessReason(),
		Format:               format,
		Sender:               sender,
		Receiver:             b.Receiver(),
		CreatedAt:            now.UTC(),
		FileStorageReference: ArchivedMessageReference(id, now),
		Checksum:             checksum,
	}
}
