package auditlog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

var errNotRecord = errors.New("not an AUDIT_RECORD element")

const recordElement = "AUDIT_RECORD"

type xmlAuditRecord struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Fields  []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// The XML decoder already resolves entities once; values written by older
// servers can carry a second level of escaping, so it is applied again.
var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&amp;", "&",
)

// attrWhitespace normalizes literal line breaks and tabs to spaces, as XML
// attribute-value normalization requires and encoding/xml does not do.
// Character references such as &#10; are resolved later and survive.
var attrWhitespace = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ")

func unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}

// decodeFragment turns an assembled fragment into a Record.
func decodeFragment(f fragment) (Record, error) {
	if f.schema == schemaNone {
		return nil, errNotRecord
	}

	text := f.text
	if f.schema == schemaLegacy {
		text = attrWhitespace.Replace(text)
	}
	var x xmlAuditRecord
	if err := xml.Unmarshal([]byte(text), &x); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	if x.XMLName.Local != recordElement {
		return nil, errNotRecord
	}

	if f.schema == schemaNew {
		return newFormatRecord(x), nil
	}
	return legacyRecord(x), nil
}

// legacyRecord extracts fields from AUDIT_RECORD attributes.
func legacyRecord(x xmlAuditRecord) Record {
	values := make(map[string]string, len(x.Attrs))
	for _, a := range x.Attrs {
		values[a.Name.Local] = a.Value
	}
	return buildRecord(values, []string{FieldName, FieldTimestamp}, optionalFields)
}

// newFormatRecord extracts fields from AUDIT_RECORD child elements.
func newFormatRecord(x xmlAuditRecord) Record {
	values := make(map[string]string, len(x.Fields))
	for _, f := range x.Fields {
		values[f.XMLName.Local] = f.Value
	}
	optional := make([]string, 0, len(optionalFields)+len(newFormatOptionalFields))
	optional = append(optional, optionalFields...)
	optional = append(optional, newFormatOptionalFields...)
	return buildRecord(values, []string{FieldName, FieldTimestamp, FieldRecordID}, optional)
}

func buildRecord(values map[string]string, mandatory, optional []string) Record {
	rec := make(Record, len(mandatory)+len(optional))
	for _, f := range mandatory {
		rec[f] = unescape(values[f])
	}
	for _, f := range optional {
		if v := values[f]; v != "" {
			rec[f] = unescape(v)
		}
	}
	return rec
}
