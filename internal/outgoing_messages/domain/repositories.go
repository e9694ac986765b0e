package domain

import (
	"context"
	"time"
)

// ActorMessageQueueRepository persists mailboxes together with their pending bundles.
type ActorMessageQueueRepository interface {
	// GetOrCreateForUpdate returns the receiver's queue, creating it on first use, and locks it
	// for the rest of the transaction.
	GetOrCreateForUpdate(ctx context.Context, receiver Receiver) (*ActorMessageQueue, error)
	// GetForUpdate locks and returns an existing queue or ErrActorMessageQueueNotFound.
	GetForUpdate(ctx context.Context, receiver Receiver) (*ActorMessageQueue, error)
	// SaveBundles upserts the bundles the queue reports as changed.
	SaveBundles(ctx context.Context, q *ActorMessageQueue) error
}

type OutgoingMessageRepository interface {
	Add(ctx context.Context, msg *OutgoingMessage) error
	// ListByBundleID returns the bundle's messages in submission order.
	ListByBundleID(ctx context.Context, id BundleID) ([]*OutgoingMessage, error)
	DeleteByBundleID(ctx context.Context, id BundleID) error
}

type BundleRepository interface {
	GetByID(ctx context.Context, id BundleID) (*Bundle, error)
	GetByMessageID(ctx context.Context, messageID string) (*Bundle, error)
	Save(ctx context.Context, b *Bundle) error
	// ListDequeuedBefore returns up to limit bundles dequeued before the cutoff, oldest first.
	ListDequeuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Bundle, error)
	Delete(ctx context.Context, id BundleID) error
}

type MarketDocumentRepository interface {
	GetByBundleID(ctx context.Context, id BundleID) (*MarketDocument, error)
	// Add returns ErrDuplicateMarketDocument when the bundle already has a document.
	Add(ctx context.Context, doc *MarketDocument) error
	DeleteByBundleID(ctx context.Context, id BundleID) error
}

type ArchivedMessageRepository interface {
	Add(ctx context.Context, msg *ArchivedMessage) error
	GetByID(ctx context.Context, id ArchivedMessageID) (*ArchivedMessage, error)
	// GetByMessageID returns ErrArchivedMessageNotFound when no document was archived under messageID.
	GetByMessageID(ctx context.Context, messageID string) (*ArchivedMessage, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	ActorMessageQueues() ActorMessageQueueRepository
	OutgoingMessages() OutgoingMessageRepository
	Bundles() BundleRepository
	MarketDocuments() MarketDocumentRepository
	ArchivedMessages() ArchivedMessageRepository
}

// Transactor runs fn in a single transaction. The transaction commits when fn returns nil and
// rolls back otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

// Store is the persistence backend: transactional work plus plain reads.
type Store interface {
	Transactor
	Repositories
}

// FileStorage keeps the payload blobs referenced by messages, documents and archive entries.
type FileStorage interface {
	Upload(ctx context.Context, ref FileStorageReference, data []byte) error
	// Download returns ErrFileNotFound for an unknown reference.
	Download(ctx context.Context, ref FileStorageReference) ([]byte, error)
	// Delete is a no-op for an unknown reference.
	Delete(ctx context.Context, ref FileStorageReference) error
}
