package domain

import (
	"fmt"
	"sort"
	"time"
)

// ActorMessageQueue is the mailbox of one actor in one role. It holds the bundles that have not
// been dequeued yet, in creation order.
type ActorMessageQueue struct {
	id       ActorMessageQueueID
	receiver Receiver
	bundles  []*Bundle
	changed  map[BundleID]struct{}
}

func NewActorMessageQueue(receiver Receiver) *ActorMessageQueue {
	return &ActorMessageQueue{
		id:       NewActorMessageQueueID(),
		receiver: receiver,
		changed:  make(map[BundleID]struct{}),
	}
}

// ActorMessageQueueFromPersistedState rebuilds a queue with its pending bundles.
func ActorMessageQueueFromPersistedState(id ActorMessageQueueID, receiver Receiver, bundles []*Bundle) *ActorMessageQueue {
	sorted := make([]*Bundle, len(bundles))
	copy(sorted, bundles)
	sortBundles(sorted)
	return &ActorMessageQueue{
		id:       id,
		receiver: receiver,
		bundles:  sorted,
		changed:  make(map[BundleID]struct{}),
	}
}

func (q *ActorMessageQueue) ID() ActorMessageQueueID { return q.id }
func (q *ActorMessageQueue) Receiver() Receiver { return q.receiver }

// Bundles returns the pending bundles in creation order.
func (q *ActorMessageQueue) Bundles() []*Bundle {
	out := make([]*Bundle, len(q.bundles))
	copy(out, q.bundles)
	return out
}

// ChangedBundles returns the bundles created or modified since the queue was loaded.
func (q *ActorMessageQueue) ChangedBundles() []*Bundle {
	var out []*Bundle
	for _, b := range q.bundles {
		if _, ok := q.changed[b.ID()]; ok {
			out = append(out, b)
		}
	}
	return out
}

// ClearChanges is called once the changed bundles have been persisted.
func (q *ActorMessageQueue) ClearChanges() {
	q.changed = make(map[BundleID]struct{})
}

// OpenBundle returns the bundle currently accepting messages for the category and business reason.
func (q *ActorMessageQueue) OpenBundle(category MessageCategory, reason BusinessReason) (*Bundle, bool) {
	for _, b := range q.bundles {
		if b.Category() == category && b.BusinessReason() == reason && !b.IsClosed() {
			return b, true
		}
	}
	return nil, false
}

// Route puts msg into the open bundle for its category and business reason, opening a new bundle
// when there is none, when the open one carries another document type, or when the open one
// rejects the message because it was closed in the meantime.
func (q *ActorMessageQueue) Route(msg *OutgoingMessage, maxBundleSize int, now time.Time) (BundleID, error) {
	if maxBundleSize < 1 {
		return BundleID{}, ErrInvalidMaxBundleSize
	}
	if msg.Receiver() != q.receiver {
		return BundleID{}, fmt.Errorf("%w: queue %s, message %s", ErrWrongReceiver, q.receiver, msg.Receiver())
	}
	category := msg.Category()

	// A fresh bundle always accepts, so at most two attempts are needed.
	for attempt := 0; attempt < 2; attempt++ {
		b, ok := q.OpenBundle(category, msg.BusinessReason())
		if ok && b.DocumentType() != msg.DocumentType() {
			b.Close(now, CloseReasonDocumentTypeChanged)
			q.markChanged(b)
			ok = false
		}
		if !ok {
			b = NewBundle(q.id, q.receiver, msg.DocumentType(), msg.BusinessReason(), maxBundleSize, now)
			b.sequence = q.nextSequence()
			q.bundles = append(q.bundles, b)
		}

		result, err := b.Add(msg, now)
		if err != nil {
			return BundleID{}, err
		}
		q.markChanged(b)
		if result == Added {
			return b.ID(), nil
		}
		// Rejected while open means the persisted count already reached the cap.
		b.Close(now, CloseReasonFull)
	}
	return BundleID{}, fmt.Errorf("message %s could not be added to a bundle", msg.ID())
}

// Peek selects the next bundle to deliver in the category: the oldest one not yet dequeued.
// An open bundle holding messages is closed so nothing more can be appended before delivery.
func (q *ActorMessageQueue) Peek(category MessageCategory, now time.Time) PeekResult {
	for _, b := range q.bundles {
		if b.Category() != category || b.IsDequeued() {
			continue
		}
		if b.IsClosed() {
			return FoundPeekResult(b.ID())
		}
		if b.MessageCount() == 0 {
			continue
		}
		b.Close(now, CloseReasonPeeked)
		q.markChanged(b)
		return FoundPeekResult(b.ID())
	}
	return EmptyPeekResult()
}

// Bundle looks up a pending bundle by id.
func (q *ActorMessageQueue) Bundle(id BundleID) (*Bundle, bool) {
	for _, b := range q.bundles {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

// nextSequence places a new bundle behind every pending one, whatever the clock says.
func (q *ActorMessageQueue) nextSequence() int64 {
	var last int64
	for _, b := range q.bundles {
		if b.sequence > last {
			last = b.sequence
		}
	}
	return last + 1
}

func (q *ActorMessageQueue) markChanged(b *Bundle) {
	q.changed[b.ID()] = struct{}{}
}

func sortBundles(bundles []*Bundle) {
	sort.SliceStable(bundles, func(i, j int) bool {
		a, b := bundles[i], bundles[j]
		if a.sequence != b.sequence {
			return a.sequence < b.sequence
		}
		if !a.CreatedAt().Equal(b.CreatedAt()) {
			return a.CreatedAt().Before(b.CreatedAt())
		}
		return a.ID().String() < b.ID().String()
	})
}
