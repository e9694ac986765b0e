package documents

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

func textElement(enc *xml.Encoder, name, value string, attrs ...xml.Attr) error {
	return enc.EncodeElement(value, xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// codingScheme is the identification scheme attribute for an actor number: GS1 for GLN, EIC otherwise.
func codingScheme(n domain.ActorNumber) string {
	if len(n) == 13 {
		return "A10"
	}
	return "A01"
}

// encodeRecord writes one JSON record as an element named name. Object keys keep their order
// in the record, arrays become repeated elements and nulls are omitted.
func encodeRecord(enc *xml.Encoder, name string, record []byte) error {
	if !gjson.ValidBytes(record) {
		return errors.New("record is not valid JSON")
	}
	value := gjson.ParseBytes(record)
	if !value.IsObject() {
		return fmt.Errorf("record must be a JSON object, got %s", value.Type)
	}
	return encodeJSONValue(enc, name, value)
}

func encodeJSONValue(enc *xml.Encoder, name string, value gjson.Result) error {
	switch {
	case value.IsObject():
		start := xml.StartElement{Name: xml.Name{Local: name}}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		var err error
		value.ForEach(func(key, v gjson.Result) bool {
			err = encodeJSONValue(enc, elementName(key.String()), v)
			return err == nil
		})
		if err != nil {
			return err
		}
		return enc.EncodeToken(start.End())
	case value.IsArray():
		var err error
		value.ForEach(func(_, v gjson.Result) bool {
			err = encodeJSONValue(enc, name, v)
			return err == nil
		})
		return err
	case value.Type == gjson.Null:
		return nil
	default:
		return textElement(enc, name, value.String())
	}
}

// elementName turns a JSON key into a valid XML element name.
func elementName(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
			b.WriteRune(r)
		case i == 0 && unicode.IsDigit(r):
			b.WriteRune('_')
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
