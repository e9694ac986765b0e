package documents

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

func testHeader(t *testing.T, dt domain.DocumentType) OutgoingMessageHeader {
	t.Helper()
	sender, err := domain.NewActor("5790001330552", "DGL")
	require.NoError(t, err)
	receiver, err := domain.NewActor("5790001330583", "DDQ")
	require.NoError(t, err)
	return OutgoingMessageHeader{
		MessageID:      "5b2c6c2e-7d0b-4bb4-9c1a-9a3f0c6c1e11",
		DocumentType:   dt,
		BusinessReason: domain.BusinessReasonBalanceFixing,
		Sender:         sender,
		Receiver:       receiver,
		CreatedAt:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

type fakeWriter struct {
	types  map[domain.DocumentType]bool
	format domain.DocumentFormat
}

func (f fakeWriter) HandlesType(dt domain.DocumentType) bool { return f.types[dt] }
func (f fakeWriter) HandlesFormat(format domain.DocumentFormat) bool { return format == f.format }
func (f fakeWriter) Write(context.Context, OutgoingMessageHeader, [][]byte) ([]byte, error) {
	return []byte("fake"), nil
}

func TestNewDocumentFactory(t *testing.T) {
	t.Run("default writers cover json and xml for every type", func(t *testing.T) {
		f, err := NewDefaultDocumentFactory()
		require.NoError(t, err)
		for _, dt := range domain.DocumentTypes {
			assert.True(t, f.Supports(dt, domain.DocumentFormatJSON), dt)
			assert.True(t, f.Supports(dt, domain.DocumentFormatXML), dt)
		}
		assert.True(t, f.Supports(domain.DocumentTypeNotifyAggregatedMeasureData, domain.DocumentFormatEbix))
		assert.False(t, f.Supports(domain.DocumentTypeRejectRequestChangeOfSupplier, domain.DocumentFormatEbix))
	})

	t.Run("overlapping writers are rejected", func(t *testing.T) {
		overlap := fakeWriter{types: map[domain.DocumentType]bool{domain.DocumentTypeNotifyWholesaleServices: true}, format: domain.DocumentFormatJSON}
		_, err := NewDocumentFactory(NewJSONWriter(), overlap)
		assert.Error(t, err)
	})

	t.Run("missing writer", func(t *testing.T) {
		f, err := NewDocumentFactory(NewJSONWriter())
		require.NoError(t, err)
		_, err = f.Writer(domain.DocumentTypeNotifyWholesaleServices, domain.DocumentFormatXML)
		assert.ErrorIs(t, err, domain.ErrNoDocumentWriter)

		_, err = f.Write(context.Background(), domain.DocumentFormatEbix, testHeader(t, domain.DocumentTypeNotifyWholesaleServices), nil)
		assert.ErrorIs(t, err, domain.ErrNoDocumentWriter)
	})
}

func TestJSONWriter_Write(t *testing.T) {
	header := testHeader(t, domain.DocumentTypeNotifyAggregatedMeasureData)
	records := [][]byte{[]byte(`{"mRID":"A","quantity":1}`), []byte(`{"mRID":"B","quantity":2}`)}

	out, err := NewJSONWriter().Write(context.Background(), header, records)
	require.NoError(t, err)

	var doc map[string]struct {
		MRID   string            `json:"mRID"`
		Type   string            `json:"type"`
		Series []json.RawMessage `json:"Series"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	body, ok := doc["NotifyAggregatedMeasureData_MarketDocument"]
	require.True(t, ok)
	assert.Equal(t, header.MessageID, body.MRID)
	assert.Equal(t, "E31", body.Type)
	require.Len(t, body.Series, 2)
	assert.JSONEq(t, `{"mRID":"A","quantity":1}`, string(body.Series[0]))
	assert.JSONEq(t, `{"mRID":"B","quantity":2}`, string(body.Series[1]))
}

func TestJSONWriter_RejectsInvalidRecord(t *testing.T) {
	_, err := NewJSONWriter().Write(context.Background(), testHeader(t, domain.DocumentTypeNotifyWholesaleServices), [][]byte{[]byte("{not json")})
	assert.Error(t, err)
}

func TestXMLWriter_Write(t *testing.T) {
	header := testHeader(t, domain.DocumentTypeNotifyAggregatedMeasureData)
	records := [][]byte{
		[]byte(`{"mRID":"A","Period":{"resolution":"PT1H","Point":[{"position":1},{"position":2}]},"note":null}`),
		[]byte(`{"mRID":"B","1st":"x"}`),
	}

	out, err := NewXMLWriter().Write(context.Background(), header, records)
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, "<?xml"))
	assert.Contains(t, doc, `<NotifyAggregatedMeasureData_MarketDocument xmlns="urn:ediel.org:measure:NotifyAggregatedMeasureData:0:1">`)
	assert.Contains(t, doc, `<sender_MarketParticipant.mRID codingScheme="A10">5790001330552</sender_MarketParticipant.mRID>`)
	assert.Contains(t, doc, `<Series><mRID>A</mRID><Period><resolution>PT1H</resolution><Point><position>1</position></Point><Point><position>2</position></Point></Period></Series>`)
	assert.Contains(t, doc, `<Series><mRID>B</mRID><_1st>x</_1st></Series>`)
	assert.NotContains(t, doc, "note")
	assert.Less(t, strings.Index(doc, "<mRID>A</mRID>"), strings.Index(doc, "<mRID>B</mRID>"))
}

func TestXMLWriter_RejectsNonObjectRecord(t *testing.T) {
	_, err := NewXMLWriter().Write(context.Background(), testHeader(t, domain.DocumentTypeNotifyWholesaleServices), [][]byte{[]byte(`[1,2]`)})
	assert.Error(t, err)
}

func TestEbixWriter_Write(t *testing.T) {
	header := testHeader(t, domain.DocumentTypeNotifyValidatedMeasureData)
	out, err := NewEbixWriter().Write(context.Background(), header, [][]byte{[]byte(`{"quantity":"12.5"}`)})
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, `<DK_MeteredDataTimeSeries xmlns="un:unece:260:data:EEM-DK_MeteredDataTimeSeries">`)
	assert.Contains(t, doc, `<Identification>5b2c6c2e-7d0b-4bb4-9c1a-9a3f0c6c1e11</Identification>`)
	assert.Contains(t, doc, `<PayloadEnergyTimeSeries><quantity>12.5</quantity></PayloadEnergyTimeSeries>`)

	_, err = NewEbixWriter().Write(context.Background(), testHeader(t, domain.DocumentTypeRejectRequestChangeOfSupplier), nil)
	assert.ErrorIs(t, err, domain.ErrNoDocumentWriter)
}
