// Package documents renders bundles into market documents.
package documents

import (
	"context"
	"time"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// OutgoingMessageHeader is the document level information shared by every message in a bundle.
type OutgoingMessageHeader struct {
	MessageID      string
	DocumentType   domain.DocumentType
	BusinessReason domain.BusinessReason
	Sender         domain.Sender
	Receiver       domain.Receiver
	CreatedAt      time.Time
}

// DocumentWriter renders the message records of one bundle. Records are JSON objects in
// submission order.
type DocumentWriter interface {
	HandlesType(domain.DocumentType) bool
	HandlesFormat(domain.DocumentFormat) bool
	Write(ctx context.Context, header OutgoingMessageHeader, records [][]byte) ([]byte, error)
}

// typeCodes are the CIM document type codes.
var typeCodes = map[domain.DocumentType]string{
	domain.DocumentTypeNotifyAggregatedMeasureData:        "E31",
	domain.DocumentTypeNotifyWholesaleServices:            "E31",
	domain.DocumentTypeRejectRequestAggregatedMeasureData: "ERR",
	domain.DocumentTypeRejectRequestWholesaleSettlement:   "ERR",
	domain.DocumentTypeNotifyValidatedMeasureData:         "E66",
	domain.DocumentTypeAccountingPointCharacteristics:     "E07",
	domain.DocumentTypeConfirmRequestChangeOfSupplier:     "414",
	domain.DocumentTypeRejectRequestChangeOfSupplier:      "414",
}

func typeCode(t domain.DocumentType) string {
	if code, ok := typeCodes[t]; ok {
		return code
	}
	return "E44"
}

func createdDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
