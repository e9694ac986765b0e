package documents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// JSONWriter renders every document type as a CIM JSON market document.
type JSONWriter struct{}

func NewJSONWriter() *JSONWriter { return &JSONWriter{} }

func (w *JSONWriter) HandlesType(dt domain.DocumentType) bool {
	_, ok := typeCodes[dt]
	return ok
}

func (w *JSONWriter) HandlesFormat(f domain.DocumentFormat) bool { return f == domain.DocumentFormatJSON }

type cimParticipant struct {
	MRID string `json:"mRID"`
	Role string `json:"marketRole.type"`
}

type cimJSONDocument struct {
	MRID            string            `json:"mRID"`
	Type            string            `json:"type"`
	BusinessReason  string            `json:"process.processType"`
	Sender          cimParticipant    `json:"sender_MarketParticipant"`
	Receiver        cimParticipant    `json:"receiver_MarketParticipant"`
	CreatedDateTime string            `json:"createdDateTime"`
	Series          []json.RawMessage `json:"Series"`
}

func (w *JSONWriter) Write(ctx context.Context, header OutgoingMessageHeader, records [][]byte) ([]byte, error) {
	doc := cimJSONDocument{
		MRID:            header.MessageID,
		Type:            typeCode(header.DocumentType),
		BusinessReason:  header.BusinessReason.String(),
		Sender:          cimParticipant{MRID: header.Sender.Number.String(), Role: header.Sender.Role.String()},
		Receiver:        cimParticipant{MRID: header.Receiver.Number.String(), Role: header.Receiver.Role.String()},
		CreatedDateTime: createdDateTime(header.CreatedAt),
		Series:          make([]json.RawMessage, 0, len(records)),
	}
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(record) {
			return nil, fmt.Errorf("record %d of message %s is not valid JSON", i, header.MessageID)
		}
		doc.Series = append(doc.Series, json.RawMessage(record))
	}

	envelope := map[string]cimJSONDocument{header.DocumentType.String() + "_MarketDocument": doc}
	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s document: %w", header.DocumentType, err)
	}
	return out, nil
}
