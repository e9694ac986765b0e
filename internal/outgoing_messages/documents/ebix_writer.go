package documents

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// ebixDocumentNames lists the document types that have an ebIX schema.
var ebixDocumentNames = map[domain.DocumentType]string{
	domain.DocumentTypeNotifyAggregatedMeasureData:    "DK_AggregatedMeteredDataTimeSeries",
	domain.DocumentTypeNotifyWholesaleServices:        "DK_NotifyAggregatedWholesaleServices",
	domain.DocumentTypeNotifyValidatedMeasureData:     "DK_MeteredDataTimeSeries",
	domain.DocumentTypeAccountingPointCharacteristics: "DK_AccountingPointCharacteristics",
}

// EbixWriter renders the document types that exist in the ebIX format.
type EbixWriter struct{}

func NewEbixWriter() *EbixWriter { return &EbixWriter{} }

func (w *EbixWriter) HandlesType(dt domain.DocumentType) bool {
	_, ok := ebixDocumentNames[dt]
	return ok
}

func (w *EbixWriter) HandlesFormat(f domain.DocumentFormat) bool { return f == domain.DocumentFormatEbix }

func (w *EbixWriter) Write(ctx context.Context, header OutgoingMessageHeader, records [][]byte) ([]byte, error) {
	name, ok := ebixDocumentNames[header.DocumentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNoDocumentWriter, header.DocumentType, domain.DocumentFormatEbix)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	root := xml.StartElement{
		Name: xml.Name{Local: name},
		Attr: []xml.Attr{attr("xmlns", "un:unece:260:data:EEM-"+name)},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	if err := w.writeHeader(enc, header); err != nil {
		return nil, fmt.Errorf("writing ebIX header: %w", err)
	}
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := encodeRecord(enc, "PayloadEnergyTimeSeries", record); err != nil {
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

func (w *EbixWriter) writeHeader(enc *xml.Encoder, h OutgoingMessageHeader) error {
	hdr := xml.StartElement{Name: xml.Name{Local: "HeaderEnergyDocument"}}
	if err := enc.EncodeToken(hdr); err != nil {
		return err
	}
	if err := textElement(enc, "Identification", h.MessageID); err != nil {
		return err
	}
	if err := textElement(enc, "DocumentType", typeCode(h.DocumentType), attr("listAgencyIdentifier", "260")); err != nil {
		return err
	}
	if err := textElement(enc, "Creation", createdDateTime(h.CreatedAt)); err != nil {
		return err
	}
	if err := ebixParty(enc, "SenderEnergyParty", h.Sender.Number); err != nil {
		return err
	}
	if err := ebixParty(enc, "RecipientEnergyParty", h.Receiver.Number); err != nil {
		return err
	}
	if err := enc.EncodeToken(hdr.End()); err != nil {
		return err
	}

	ctxEl := xml.StartElement{Name: xml.Name{Local: "ProcessEnergyContext"}}
	if err := enc.EncodeToken(ctxEl); err != nil {
		return err
	}
	if err := textElement(enc, "EnergyBusinessProcess", h.BusinessReason.String(), attr("listAgencyIdentifier", "260")); err != nil {
		return err
	}
	if err := textElement(enc, "EnergyBusinessProcessRole", h.Receiver.Role.String(), attr("listAgencyIdentifier", "6")); err != nil {
		return err
	}
	return enc.EncodeToken(ctxEl.End())
}

func ebixParty(enc *xml.Encoder, name string, n domain.ActorNumber) error {
	party := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(party); err != nil {
		return err
	}
	agency := "9"
	if codingScheme(n) == "A01" {
		agency = "305"
	}
	if err := textElement(enc, "Identification", n.String(), attr("schemeAgencyIdentifier", agency)); err != nil {
		return err
	}
	return enc.EncodeToken(party.End())
}
