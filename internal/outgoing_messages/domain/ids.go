package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// BundleID identifies a Bundle. Bundle ids are UUIDv7 so their byte order follows creation time.
type BundleID uuid.UUID

// NewBundleID returns a time ordered bundle id.
func NewBundleID() BundleID {
	return BundleID(uuid.Must(uuid.NewV7()))
}

// ParseBundleID parses the canonical string form of a bundle id.
func ParseBundleID(s string) (BundleID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return BundleID{}, fmt.Errorf("invalid bundle id %q: %w", s, err)
	}
	return BundleID(id), nil
}

func (id BundleID) String() string { return uuid.UUID(id).String() }

// UUID exposes the underlying value for persistence adapters.
func (id BundleID) UUID() uuid.UUID { return uuid.UUID(id) }

// IsZero reports whether the id was never set.
func (id BundleID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// OutgoingMessageID identifies an OutgoingMessage.
type OutgoingMessageID uuid.UUID

func NewOutgoingMessageID() OutgoingMessageID {
	return OutgoingMessageID(uuid.Must(uuid.NewV7()))
}

func (id OutgoingMessageID) String() string { return uuid.UUID(id).String() }
func (id OutgoingMessageID) UUID() uuid.UUID { return uuid.UUID(id) }

// MarketDocumentID identifies a MarketDocument.
type MarketDocumentID uuid.UUID

func NewMarketDocumentID() MarketDocumentID { return MarketDocumentID(uuid.New()) }

func (id MarketDocumentID) String() string { return uuid.UUID(id).String() }
func (id MarketDocumentID) UUID() uuid.UUID { return uuid.UUID(id) }

// ArchivedMessageID identifies an ArchivedMessage.
type ArchivedMessageID uuid.UUID

func NewArchivedMessageID() ArchivedMessageID { return ArchivedMessageID(uuid.New()) }

func (id ArchivedMessageID) String() string { return uuid.UUID(id).String() }
func (id ArchivedMessageID) UUID() uuid.UUID { return uuid.UUID(id) }

// ActorMessageQueueID identifies an ActorMessageQueue.
type ActorMessageQueueID uuid.UUID

func NewActorMessageQueueID() ActorMessageQueueID { return ActorMessageQueueID(uuid.New()) }

func (id ActorMessageQueueID) String() string { return uuid.UUID(id).String() }
func (id ActorMessageQueueID) UUID() uuid.UUID { return uuid.UUID(id) }
