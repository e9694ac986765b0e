package documents

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

const cimNamespacePrefix = "urn:ediel.org:measure:"

// XMLWriter renders every document type as a CIM XML market document.
type XMLWriter struct{}

func NewXMLWriter() *XMLWriter { return &XMLWriter{} }

func (w *XMLWriter) HandlesType(dt domain.DocumentType) bool {
	_, ok := typeCodes[dt]
	return ok
}

func (w *XMLWriter) HandlesFormat(f domain.DocumentFormat) bool { return f == domain.DocumentFormatXML }

func (w *XMLWriter) Write(ctx context.Context, header OutgoingMessageHeader, records [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: header.DocumentType.String() + "_MarketDocument"},
		Attr: []xml.Attr{attr("xmlns", cimNamespacePrefix+header.DocumentType.String()+":0:1")},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	if err := w.writeHeader(enc, header); err != nil {
		return nil, fmt.Errorf("writing %s header: %w", header.DocumentType, err)
	}
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := encodeRecord(enc, "Series", record); err != nil {
			return nil, fmt.Errorf("record %d of message %s: %w", i, header.MessageID, err)
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *XMLWriter) writeHeader(enc *xml.Encoder, h OutgoingMessageHeader) error {
	steps := []func() error{
		func() error { return textElement(enc, "mRID", h.MessageID) },
		func() error { return textElement(enc, "type", typeCode(h.DocumentType)) },
		func() error { return textElement(enc, "process.processType", h.BusinessReason.String()) },
		func() error {
			return textElement(enc, "sender_MarketParticipant.mRID", h.Sender.Number.String(), attr("codingScheme", codingScheme(h.Sender.Number)))
		},
		func() error { return textElement(enc, "sender_MarketParticipant.marketRole.type", h.Sender.Role.String()) },
		func() error {
			return textElement(enc, "receiver_MarketParticipant.mRID", h.Receiver.Number.String(), attr("codingScheme", codingScheme(h.Receiver.Number)))
		},
		func() error { return textElement(enc, "receiver_MarketParticipant.marketRole.type", h.Receiver.Role.String()) },
		func() error { return textElement(enc, "createdDateTime", createdDateTime(h.CreatedAt)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
