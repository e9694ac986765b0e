package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testReceiver(t *testing.T) Receiver {
	t.Helper()
	r, err := NewActor("5790001330583", "DDQ")
	require.NoError(t, err)
	return r
}

func testSender(t *testing.T) Sender {
	t.Helper()
	s, err := NewActor("5790001330552", "DGL")
	require.NoError(t, err)
	return s
}

func newTestMessage(t *testing.T, receiver Receiver, docType DocumentType, reason BusinessReason) *OutgoingMessage {
	t.Helper()
	return CreateOutgoingMessage(NewOutgoingMessage{
		DocumentType:   docType,
		Receiver:       receiver,
		Sender:         testSender(t),
		BusinessReason: reason,
		ProcessID:      "process-1",
		Record:         []byte(`{"quantity":1}`),
	}, testNow)
}
