package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddResult tells the router whether a message made it into a bundle.
type AddResult int

const (
	Added AddResult = iota + 1
	RejectedBundleClosed
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case RejectedBundleClosed:
		return "rejected_bundle_closed"
	default:
		return "unknown"
	}
}

// CloseReason records why a bundle stopped accepting messages.
type CloseReason string

const (
	CloseReasonNone                CloseReason = ""
	CloseReasonFull                CloseReason = "full"
	CloseReasonPeeked              CloseReason = "peeked"
	CloseReasonDocumentTypeChanged CloseReason = "document_type_changed"
)

// BundleState is derived from the closed and dequeued timestamps.
type BundleState string

const (
	BundleOpen     BundleState = "open"
	BundleClosed   BundleState = "closed"
	BundleDequeued BundleState = "dequeued"
)

// Bundle collects the messages that are delivered to one receiver as a single document.
type Bundle struct {
	id              BundleID
	queueID         ActorMessageQueueID
	sequence        int64
	receiver        Receiver
	messageID       string
	category        MessageCategory
	businessReason  BusinessReason
	documentType    DocumentType
	maxMessageCount int
	messageCount    int
	createdAt       time.Time
	closedAt        *time.Time
	closeReason     CloseReason
	dequeuedAt      *time.Time
}

// NewBundle opens an empty bundle.
func NewBundle(queueID ActorMessageQueueID, receiver Receiver, documentType DocumentType, reason BusinessReason, maxMessageCount int, now time.Time) *Bundle {
	return &Bundle{
		id:              NewBundleID(),
		queueID:         queueID,
		receiver:        receiver,
		messageID:       uuid.NewString(),
		category:        documentType.Category(),
		businessReason:  reason,
		documentType:    documentType,
		maxMessageCount: maxMessageCount,
		createdAt:       now.UTC(),
	}
}

// BundleSnapshot is the persisted shape of a Bundle.
type BundleSnapshot struct {
	ID              BundleID
	QueueID         ActorMessageQueueID
	Sequence        int64
	Receiver        Receiver
	MessageID       string
	Category        MessageCategory
	BusinessReason  BusinessReason
	DocumentType    DocumentType
	MaxMessageCount int
	MessageCount    int
	CreatedAt       time.Time
	ClosedAt        *time.Time
	CloseReason     CloseReason
	DequeuedAt      *time.Time
}

func BundleFromPersistedState(s BundleSnapshot) *Bundle {
	return &Bundle{
		id:              s.ID,
		queueID:         s.QueueID,
		sequence:        s.Sequence,
		receiver:        s.Receiver,
		messageID:       s.MessageID,
		category:        s.Category,
		businessReason:  s.BusinessReason,
		documentType:    s.DocumentType,
		maxMessageCount: s.MaxMessageCount,
		messageCount:    s.MessageCount,
		createdAt:       s.CreatedAt,
		closedAt:        s.ClosedAt,
		closeReason:     s.CloseReason,
		dequeuedAt:      s.DequeuedAt,
	}
}

func (b *Bundle) Snapshot() BundleSnapshot {
	return BundleSnapshot{
		ID:              b.id,
		QueueID:         b.queueID,
		Sequence:        b.sequence,
		Receiver:        b.receiver,
		MessageID:       b.messageID,
		Category:        b.category,
		BusinessReason:  b.businessReason,
		DocumentType:    b.documentType,
		MaxMessageCount: b.maxMessageCount,
		MessageCount:    b.messageCount,
		CreatedAt:       b.createdAt,
		ClosedAt:        b.closedAt,
		CloseReason:     b.closeReason,
		DequeuedAt:      b.dequeuedAt,
	}
}

func (b *Bundle) ID() BundleID { return b.id }
func (b *Bundle) QueueID() ActorMessageQueueID { return b.queueID }
func (b *Bundle) Receiver() Receiver { return b.receiver }

// Sequence is the bundle's position in its queue, assigned when the queue opens it.
func (b *Bundle) Sequence() int64 { return b.sequence }

func (b *Bundle) MessageID() string { return b.messageID }
func (b *Bundle) Category() MessageCategory { return b.category }
func (b *Bundle) BusinessReason() BusinessReason { return b.businessReason }
func (b *Bundle) DocumentType() DocumentType { return b.documentType }
func (b *Bundle) MaxMessageCount() int { return b.maxMessageCount }
func (b *Bundle) MessageCount() int { return b.messageCount }
func (b *Bundle) CreatedAt() time.Time { return b.createdAt }
func (b *Bundle) CloseReason() CloseReason { return b.closeReason }
func (b *Bundle) IsClosed() bool { return b.closedAt != nil }
func (b *Bundle) IsDequeued() bool { return b.dequeuedAt != nil }

func (b *Bundle) ClosedAt() (time.Time, bool) {
	if b.closedAt == nil {
		return time.Time{}, false
	}
	return *b.closedAt, true
}

func (b *Bundle) DequeuedAt() (time.Time, bool) {
	if b.dequeuedAt == nil {
		return time.Time{}, false
	}
	return *b.dequeuedAt, true
}

func (b *Bundle) State() BundleState {
	switch {
	case b.dequeuedAt != nil:
		return BundleDequeued
	case b.closedAt != nil:
		return BundleClosed
	default:
		return BundleOpen
	}
}

// Add appends msg. A closed bundle rejects the message without touching it; the caller has to
// route it into another bundle. Reaching the cap closes the bundle.
func (b *Bundle) Add(msg *OutgoingMessage, now time.Time) (AddResult, error) {
	if b.IsClosed() || b.messageCount >= b.maxMessageCount {
		return RejectedBundleClosed, nil
	}
	if msg.DocumentType() != b.documentType {
		return 0, fmt.Errorf("bundle %s carries %s, message %s is %s", b.id, b.documentType, msg.ID(), msg.DocumentType())
	}
	if err := msg.AssignToBundle(b.id); err != nil {
		return 0, err
	}
	b.messageCount++
	msg.bundlePosition = b.messageCount
	if b.messageCount >= b.maxMessageCount {
		b.Close(now, CloseReasonFull)
	}
	return Added, nil
}

// Close stops the bundle from accepting messages. It reports whether this call closed it.
func (b *Bundle) Close(now time.Time, reason CloseReason) bool {
	if b.closedAt != nil {
		return false
	}
	t := now.UTC()
	b.closedAt = &t
	b.closeReason = reason
	return true
}

// Dequeue marks the bundle as received by the actor. Repeating it is a no-op.
func (b *Bundle) Dequeue(now time.Time) error {
	if b.dequeuedAt != nil {
		return nil
	}
	if b.closedAt == nil {
		return fmt.Errorf("%w: %s", ErrBundleNotClosed, b.messageID)
	}
	t := now.UTC()
	b.dequeuedAt = &t
	return nil
}
