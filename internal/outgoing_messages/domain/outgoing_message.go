package domain

import (
	"fmt"
	"time"
)

// OutgoingMessage is one produced market message waiting to be delivered to its receiver.
// Everything except the bundle assignment and the published flag is fixed at creation.
type OutgoingMessage struct {
	id                   OutgoingMessageID
	documentType         DocumentType
	receiver             Receiver
	sender               Sender
	businessReason       BusinessReason
	processID            string
	record               []byte
	fileStorageReference FileStorageReference
	assignedBundleID     *BundleID
	bundlePosition       int
	published            bool
	createdAt            time.Time
}

// NewOutgoingMessage holds the inputs for creating an OutgoingMessage.
type NewOutgoingMessage struct {
	DocumentType   DocumentType
	Receiver       Receiver
	Sender         Sender
	BusinessReason BusinessReason
	ProcessID      string
	Record         []byte // serialized message record, rendered later by a document writer
}

// CreateOutgoingMessage builds a new, unbundled message. The record is stored under a reference
// derived from the message id.
func CreateOutgoingMessage(in NewOutgoingMessage, now time.Time) *OutgoingMessage {
	id := NewOutgoingMessageID()
	return &OutgoingMessage{
		id:                   id,
		documentType:         in.DocumentType,
		receiver:             in.Receiver,
		sender:               in.Sender,
		businessReason:       in.BusinessReason,
		processID:            in.ProcessID,
		record:               in.Record,
		fileStorageReference: OutgoingMessageReference(id),
		createdAt:            now.UTC(),
	}
}

// OutgoingMessageSnapshot is the persisted shape of an OutgoingMessage.
type OutgoingMessageSnapshot struct {
	ID                   OutgoingMessageID
	DocumentType         DocumentType
	Receiver             Receiver
	Sender               Sender
	BusinessReason       BusinessReason
	ProcessID            string
	FileStorageReference FileStorageReference
	AssignedBundleID     *BundleID
	BundlePosition       int
	Published            bool
	CreatedAt            time.Time
}

// OutgoingMessageFromPersistedState rebuilds a message loaded from storage. The record is not
// part of the row and must be downloaded through FileStorageReference.
func OutgoingMessageFromPersistedState(s OutgoingMessageSnapshot) *OutgoingMessage {
	return &OutgoingMessage{
		id:                   s.ID,
		documentType:         s.DocumentType,
		receiver:             s.Receiver,
		sender:               s.Sender,
		businessReason:       s.BusinessReason,
		processID:            s.ProcessID,
		fileStorageReference: s.FileStorageReference,
		assignedBundleID:     s.AssignedBundleID,
		bundlePosition:       s.BundlePosition,
		published:            s.Published,
		createdAt:            s.CreatedAt,
	}
}

// Snapshot returns the persisted shape of the message.
func (m *OutgoingMessage) Snapshot() OutgoingMessageSnapshot {
	return OutgoingMessageSnapshot{
		ID:                   m.id,
		DocumentType:         m.documentType,
		Receiver:             m.receiver,
		Sender:               m.sender,
		BusinessReason:       m.businessReason,
		ProcessID:            m.processID,
		FileStorageReference: m.fileStorageReference,
		AssignedBundleID:     m.assignedBundleID,
		BundlePosition:       m.bundlePosition,
		Published:            m.published,
		CreatedAt:            m.createdAt,
	}
}

func (m *OutgoingMessage) ID() OutgoingMessageID { return m.id }
func (m *OutgoingMessage) DocumentType() DocumentType { return m.documentType }
func (m *OutgoingMessage) Receiver() Receiver { return m.receiver }
func (m *OutgoingMessage) Sender() Sender { return m.sender }
func (m *OutgoingMessage) BusinessReason() BusinessReason { return m.businessReason }
func (m *OutgoingMessage) ProcessID() string { return m.processID }
func (m *OutgoingMessage) Record() []byte { return m.record }
func (m *OutgoingMessage) FileStorageReference() FileStorageReference { return m.fileStorageReference }
func (m *OutgoingMessage) IsPublished() bool { return m.published }
func (m *OutgoingMessage) CreatedAt() time.Time { return m.createdAt }

// BundlePosition is the 1-based order in which the message entered its bundle, 0 when unbundled.
func (m *OutgoingMessage) BundlePosition() int { return m.bundlePosition }

// Category is the peek category derived from the document type.
func (m *OutgoingMessage) Category() MessageCategory { return m.documentType.Category() }

// AssignedBundleID returns the bundle the message belongs to, if any.
func (m *OutgoingMessage) AssignedBundleID() (BundleID, bool) {
	if m.assignedBundleID == nil {
		return BundleID{}, false
	}
	return *m.assignedBundleID, true
}

// AssignToBundle attaches the message to a bundle. Membership is write-once: assigning the same
// bundle again is a no-op, assigning a different one fails.
func (m *OutgoingMessage) AssignToBundle(id BundleID) error {
	if m.assignedBundleID != nil {
		if *m.assignedBundleID == id {
			return nil
		}
		return fmt.Errorf("%w: message %s is in bundle %s", ErrMessageAlreadyBundled, m.id, m.assignedBundleID)
	}
	m.assignedBundleID = &id
	m.published = true
	return nil
}
