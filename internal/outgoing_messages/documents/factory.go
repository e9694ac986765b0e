package documents

import (
	"context"
	"fmt"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

type writerKey struct {
	documentType domain.DocumentType
	format       domain.DocumentFormat
}

// DocumentFactory selects the writer for a document type and format. The table is built once
// from an explicit writer list.
type DocumentFactory struct {
	writers map[writerKey]DocumentWriter
}

// NewDocumentFactory probes every writer against all known types and formats. Two writers
// claiming the same pair is an error.
func NewDocumentFactory(writers ...DocumentWriter) (*DocumentFactory, error) {
	f := &DocumentFactory{writers: make(map[writerKey]DocumentWriter)}
	for _, w := range writers {
		for _, dt := range domain.DocumentTypes {
			if !w.HandlesType(dt) {
				continue
			}
			for _, format := range domain.DocumentFormats {
				if !w.HandlesFormat(format) {
					continue
				}
				key := writerKey{documentType: dt, format: format}
				if existing, ok := f.writers[key]; ok {
					return nil, fmt.Errorf("document writers %T and %T both handle %s/%s", existing, w, dt, format)
				}
				f.writers[key] = w
			}
		}
	}
	return f, nil
}

// NewDefaultDocumentFactory registers the JSON, XML and ebIX writers.
func NewDefaultDocumentFactory() (*DocumentFactory, error) {
	return NewDocumentFactory(NewJSONWriter(), NewXMLWriter(), NewEbixWriter())
}

// Writer returns ErrNoDocumentWriter when nothing is registered for the pair.
func (f *DocumentFactory) Writer(documentType domain.DocumentType, format domain.DocumentFormat) (DocumentWriter, error) {
	w, ok := f.writers[writerKey{documentType: documentType, format: format}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNoDocumentWriter, documentType, format)
	}
	return w, nil
}

func (f *DocumentFactory) Supports(documentType domain.DocumentType, format domain.DocumentFormat) bool {
	_, ok := f.writers[writerKey{documentType: documentType, format: format}]
	return ok
}

// Write renders records with the writer registered for the header's document type and format.
func (f *DocumentFactory) Write(ctx context.Context, format domain.DocumentFormat, header OutgoingMessageHeader, records [][]byte) ([]byte, error) {
	w, err := f.Writer(header.DocumentType, format)
	if err != nil {
		return nil, err
	}
	return w.Write(ctx, header, records)
}
