package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

func TestEnqueueRequest_ToCommand(t *testing.T) {
	req := EnqueueRequest{
		DocumentType:   "NotifyAggregatedMeasureData",
		ReceiverNumber: "5790001330583",
		ReceiverRole:   "EnergySupplier",
		SenderNumber:   "5790001330552",
		SenderRole:     "DGL",
		BusinessReason: "D04",
		ProcessID:      "p-1",
		Record:         json.RawMessage(`{"quantity":1}`),
	}

	cmd, err := req.ToCommand()
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentTypeNotifyAggregatedMeasureData, cmd.DocumentType)
	assert.Equal(t, energySupplier(), cmd.Receiver)
	assert.Equal(t, dataHub(), cmd.Sender)
	assert.Equal(t, domain.BusinessReasonBalanceFixing, cmd.BusinessReason)
	assert.JSONEq(t, `{"quantity":1}`, string(cmd.Record))
}

func TestEnqueueRequest_ToCommandCollectsErrors(t *testing.T) {
	req := EnqueueRequest{
		DocumentType:   "Unknown",
		ReceiverNumber: "123",
		ReceiverRole:   "DDQ",
		SenderNumber:   "5790001330552",
		SenderRole:     "nobody",
		BusinessReason: "D04",
	}

	_, err := req.ToCommand()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownDocumentType)
	assert.ErrorIs(t, err, domain.ErrInvalidActorNumber)
	assert.ErrorIs(t, err, domain.ErrUnknownActorRole)
}
