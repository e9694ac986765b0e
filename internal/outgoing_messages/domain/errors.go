package domain

import "errors"

var (
	// ErrActorMessageQueueNotFound indicates the receiver has never been routed a message.
	ErrActorMessageQueueNotFound = errors.New("actor message queue not found")
	// ErrBundleNotFound indicates no bundle matched the lookup (or it belongs to another actor).
	ErrBundleNotFound = errors.New("bundle not found")
	// ErrBundleNotClosed indicates a dequeue of a bundle that was never peeked.
	ErrBundleNotClosed = errors.New("bundle is not closed")
	// ErrMessageAlreadyBundled indicates an attempt to move a message to a second bundle.
	ErrMessageAlreadyBundled = errors.New("outgoing message already assigned to another bundle")
	// ErrMarketDocumentNotFound indicates the bundle has not been materialized yet.
	ErrMarketDocumentNotFound = errors.New("market document not found")
	// ErrDuplicateMarketDocument indicates a market document already exists for the bundle.
	ErrDuplicateMarketDocument = errors.New("market document already exists for bundle")
	// ErrArchivedMessageNotFound indicates no archive entry with the given id.
	ErrArchivedMessageNotFound = errors.New("archived message not found")
	// ErrNoDocumentWriter indicates no registered writer handles the document type and format.
	ErrNoDocumentWriter = errors.New("no document writer registered for document type and format")
	// ErrWrongReceiver indicates a message routed into the queue of a different actor.
	ErrWrongReceiver = errors.New("outgoing message is addressed to another receiver")
	// ErrInvalidMaxBundleSize indicates a bundle size limit below one.
	ErrInvalidMaxBundleSize = errors.New("max bundle size must be at least 1")
	// ErrFileNotFound indicates the file storage has no object under the reference.
	ErrFileNotFound = errors.New("file not found in storage")

	ErrInvalidActorNumber     = errors.New("invalid actor number")
	ErrUnknownActorRole       = errors.New("unknown actor role")
	ErrUnknownMessageCategory = errors.New("unknown message category")
	ErrUnknownDocumentType    = errors.New("unknown document type")
	ErrUnknownDocumentFormat  = errors.New("unknown document format")
	ErrUnknownBusinessReason  = errors.New("unknown business reason")
)
