package domain

import (
	"fmt"
	"strings"
)

// MessageCategory groups document types an actor peeks together.
type MessageCategory string

const (
	MessageCategoryAggregations MessageCategory = "aggregations"
	MessageCategoryMasterData   MessageCategory = "master_data"
	MessageCategoryMeasureData  MessageCategory = "measure_data"
	MessageCategoryNone         MessageCategory = "none"
)

// MessageCategories lists every category in a stable order.
var MessageCategories = []MessageCategory{
	MessageCategoryAggregations,
	MessageCategoryMasterData,
	MessageCategoryMeasureData,
	MessageCategoryNone,
}

func ParseMessageCategory(s string) (MessageCategory, error) {
	value := strings.ToLower(strings.TrimSpace(s))
	value = strings.ReplaceAll(value, "-", "_")
	switch value {
	case "masterdata":
		value = string(MessageCategoryMasterData)
	case "measuredata":
		value = string(MessageCategoryMeasureData)
	}
	for _, c := range MessageCategories {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMessageCategory, s)
}

func (c MessageCategory) String() string { return string(c) }

// DocumentType names the market document a message is rendered into.
type DocumentType string

const (
	DocumentTypeNotifyAggregatedMeasureData        DocumentType = "NotifyAggregatedMeasureData"
	DocumentTypeNotifyWholesaleServices            DocumentType = "NotifyWholesaleServices"
	DocumentTypeRejectRequestAggregatedMeasureData DocumentType = "RejectRequestAggregatedMeasureData"
	DocumentTypeRejectRequestWholesaleSettlement   DocumentType = "RejectRequestWholesaleSettlement"
	DocumentTypeNotifyValidatedMeasureData         DocumentType = "NotifyValidatedMeasureData"
	DocumentTypeAccountingPointCharacteristics     DocumentType = "AccountingPointCharacteristics"
	DocumentTypeConfirmRequestChangeOfSupplier     DocumentType = "ConfirmRequestChangeOfSupplier"
	DocumentTypeRejectRequestChangeOfSupplier      DocumentType = "RejectRequestChangeOfSupplier"
)

var documentTypeCategories = map[DocumentType]MessageCategory{
	DocumentTypeNotifyAggregatedMeasureData:        MessageCategoryAggregations,
	DocumentTypeNotifyWholesaleServices:            MessageCategoryAggregations,
	DocumentTypeRejectRequestAggregatedMeasureData: MessageCategoryAggregations,
	DocumentTypeRejectRequestWholesaleSettlement:   MessageCategoryAggregations,
	DocumentTypeNotifyValidatedMeasureData:         MessageCategoryMeasureData,
	DocumentTypeAccountingPointCharacteristics:     MessageCategoryMasterData,
	DocumentTypeConfirmRequestChangeOfSupplier:     MessageCategoryMasterData,
	DocumentTypeRejectRequestChangeOfSupplier:      MessageCategoryMasterData,
}

// DocumentTypes lists every known document type in a stable order.
var DocumentTypes = []DocumentType{
	DocumentTypeNotifyAggregatedMeasureData,
	DocumentTypeNotifyWholesaleServices,
	DocumentTypeRejectRequestAggregatedMeasureData,
	DocumentTypeRejectRequestWholesaleSettlement,
	DocumentTypeNotifyValidatedMeasureData,
	DocumentTypeAccountingPointCharacteristics,
	DocumentTypeConfirmRequestChangeOfSupplier,
	DocumentTypeRejectRequestChangeOfSupplier,
}

func ParseDocumentType(s string) (DocumentType, error) {
	value := strings.TrimSpace(s)
	for _, dt := range DocumentTypes {
		if strings.EqualFold(string(dt), value) {
			return dt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
}

// Category returns the peek category the document type is delivered in.
func (t DocumentType) Category() MessageCategory {
	if c, ok := documentTypeCategories[t]; ok {
		return c
	}
	return MessageCategoryNone
}

func (t DocumentType) String() string { return string(t) }

// DocumentFormat is the wire format a bundle is rendered in.
type DocumentFormat string

const (
	DocumentFormatJSON DocumentFormat = "json"
	DocumentFormatXML  DocumentFormat = "xml"
	DocumentFormatEbix DocumentFormat = "ebix"
)

// DocumentFormats lists every known format.
var DocumentFormats = []DocumentFormat{DocumentFormatJSON, DocumentFormatXML, DocumentFormatEbix}

// ParseDocumentFormat accepts the short name or a media type such as application/xml.
func ParseDocumentFormat(s string) (DocumentFormat, error) {
	value := strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(value, ";"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	value = strings.TrimPrefix(value, "application/")
	for _, f := range DocumentFormats {
		if string(f) == value {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocumentFormat, s)
}

// ContentType is the media type the rendered document is served with.
func (f DocumentFormat) ContentType() string {
	switch f {
	case DocumentFormatJSON:
		return "application/json"
	case DocumentFormatEbix:
		return "application/ebix"
	default:
		return "application/xml"
	}
}

func (f DocumentFormat) String() string { return string(f) }

// BusinessReason is the regulatory process a message belongs to, as a DataHub code.
type BusinessReason string

const (
	BusinessReasonMoveIn                 BusinessReason = "E65"
	BusinessReasonChangeOfSupplier       BusinessReason = "E03"
	BusinessReasonBalanceFixing          BusinessReason = "D04"
	BusinessReasonPreliminaryAggregation BusinessReason = "D03"
	BusinessReasonWholesaleFixing        BusinessReason = "D05"
	BusinessReasonCorrection             BusinessReason = "D32"
	BusinessReasonPeriodicMetering       BusinessReason = "E23"
)

var businessReasonNames = map[string]BusinessReason{
	"movein":                 BusinessReasonMoveIn,
	"changeofsupplier":       BusinessReasonChangeOfSupplier,
	"balancefixing":          BusinessReasonBalanceFixing,
	"preliminaryaggregation": BusinessReasonPreliminaryAggregation,
	"wholesalefixing":        BusinessReasonWholesaleFixing,
	"correction":             BusinessReasonCorrection,
	"periodicmetering":       BusinessReasonPeriodicMetering,
}

// ParseBusinessReason accepts the code (D04) or the name (BalanceFixing).
func ParseBusinessReason(s string) (BusinessReason, error) {
	value := strings.TrimSpace(s)
	for _, br := range businessReasonNames {
		if strings.EqualFold(string(br), value) {
			return br, nil
		}
	}
	if br, ok := businessReasonNames[strings.ToLower(value)]; ok {
		return br, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBusinessReason, s)
}

func (r BusinessReason) String() string { return string(r) }
