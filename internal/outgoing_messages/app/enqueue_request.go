package app

import (
	"encoding/json"
	"errors"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// EnqueueRequest is the wire form of a produced message, shared by the HTTP and NATS adapters.
type EnqueueRequest struct {
	DocumentType   string          `json:"document_type" validate:"required"`
	ReceiverNumber string          `json:"receiver_number" validate:"required"`
	ReceiverRole   string          `json:"receiver_role" validate:"required"`
	SenderNumber   string          `json:"sender_number" validate:"required"`
	SenderRole     string          `json:"sender_role" validate:"required"`
	BusinessReason string          `json:"business_reason" validate:"required"`
	ProcessID      string          `json:"process_id" validate:"omitempty,max=100"`
	Record         json.RawMessage `json:"record" validate:"required"`
}

// ToCommand parses the request into domain values. All parse errors are returned together.
func (r EnqueueRequest) ToCommand() (EnqueueOutgoingMessage, error) {
	var errs []error
	documentType, err := domain.ParseDocumentType(r.DocumentType)
	errs = append(errs, err)
	receiver, err := domain.NewActor(r.ReceiverNumber, r.ReceiverRole)
	errs = append(errs, err)
	sender, err := domain.NewActor(r.SenderNumber, r.SenderRole)
	errs = append(errs, err)
	reason, err := domain.ParseBusinessReason(r.BusinessReason)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return EnqueueOutgoingMessage{}, err
	}
	return EnqueueOutgoingMessage{
		DocumentType:   documentType,
		Receiver:       receiver,
		Sender:         sender,
		BusinessReason: reason,
		ProcessID:      r.ProcessID,
		Record:         []byte(r.Record),
	}, nil
}
