// Package violation_report holds the violation report a browser sends to the
// collector, restricted to a fixed set of fields.
package violation_report

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	cspErrors "github.com/Motmedel/csp_go/pkg/content_security_policy/errors"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
)

const (
	FieldBlockedURI         = "blockedURI"
	FieldColumnNumber       = "columnNumber"
	FieldDisposition        = "disposition"
	FieldDocumentURI        = "documentURI"
	FieldEffectiveDirective = "effectiveDirective"
	FieldLineNumber         = "lineNumber"
	FieldOriginalPolicy     = "originalPolicy"
	FieldReferrer           = "referrer"
	FieldSample             = "sample"
	FieldSourceFile         = "sourceFile"
	FieldStatusCode         = "statusCode"
	FieldViolatedDirective  = "violatedDirective"
)

// Canonical field order.
var fieldNames = []string{
	FieldBlockedURI,
	FieldColumnNumber,
	FieldDisposition,
	FieldDocumentURI,
	FieldEffectiveDirective,
	FieldLineNumber,
	FieldOriginalPolicy,
	FieldReferrer,
	FieldSample,
	FieldSourceFile,
	FieldStatusCode,
	FieldViolatedDirective,
}

// Names used by the legacy `csp-report` envelope and the Reporting API, in
// order of precedence after the canonical name.
var aliases = map[string][]string{
	FieldBlockedURI:         {"blocked-uri", "blockedURL"},
	FieldColumnNumber:       {"column-number"},
	FieldDocumentURI:        {"document-uri", "documentURL"},
	FieldEffectiveDirective: {"effective-directive"},
	FieldLineNumber:         {"line-number"},
	FieldOriginalPolicy:     {"original-policy"},
	FieldSample:             {"script-sample"},
	FieldSourceFile:         {"source-file"},
	FieldStatusCode:         {"status-code"},
	FieldViolatedDirective:  {"violated-directive"},
}

// Fields holding integers. Browsers send them as numbers or strings.
var numericFields = []string{FieldColumnNumber, FieldLineNumber, FieldStatusCode}

const (
	legacyEnvelopeKey   = "csp-report"
	reportingApiType    = "csp-violation"
	reportingApiTypeKey = "type"
	reportingApiBodyKey = "body"
)

func FieldNames() []string {
	return slices.Clone(fieldNames)
}

func IsField(name string) bool {
	return slices.Contains(fieldNames, name)
}

// Report maps field names to string or json.Number values. Missing fields are
// absent from the map.
type Report map[string]any

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, motmedelErrors.New(cspErrors.ErrEmptyBody)
	}
	if trimmed[0] != '{' {
		return nil, motmedelErrors.New(cspErrors.ErrNotAnObject, string(trimmed))
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &object); err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("json unmarshal: %w", err), string(trimmed))
	}
	if object == nil {
		return nil, motmedelErrors.New(cspErrors.ErrNotAnObject, string(trimmed))
	}

	return object, nil
}

func decodeValue(name string, raw json.RawMessage) (any, bool, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, false, motmedelErrors.New(fmt.Errorf("json decode: %w", err), name)
	}

	switch typedValue := value.(type) {
	case nil:
		return nil, false, nil
	case string, json.Number:
		if slices.Contains(numericFields, name) {
			return normalizeNumber(typedValue), true, nil
		}
		return typedValue, true, nil
	default:
		return nil, false, motmedelErrors.New(
			fmt.Errorf("%w: %s", cspErrors.ErrUnsupportedValue, name),
			string(raw),
		)
	}
}

// normalizeNumber renders an integral value as a json.Number in its shortest
// decimal form, so that 5, 5.0 and "5" are the same value. Other values are
// kept.
func normalizeNumber(value any) any {
	var text string
	switch typedValue := value.(type) {
	case string:
		text = strings.TrimSpace(typedValue)
	case json.Number:
		text = typedValue.String()
	default:
		return value
	}

	if integer, err := strconv.ParseInt(text, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(integer, 10))
	}
	if float, err := strconv.ParseFloat(text, 64); err == nil && float == math.Trunc(float) && math.Abs(float) < 1<<53 {
		return json.Number(strconv.FormatInt(int64(float), 10))
	}

	return value
}

func isReportingApiViolation(object map[string]json.RawMessage) bool {
	rawType, ok := object[reportingApiTypeKey]
	return ok && string(bytes.TrimSpace(rawType)) == `"`+reportingApiType+`"`
}

// Parse decodes a report body. Besides a flat object of the known fields, the
// legacy `{"csp-report": {...}}` envelope and a single Reporting API
// `csp-violation` report are accepted. Unknown fields are dropped.
func Parse(data []byte) (Report, error) {
	object, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	if envelope, ok := object[legacyEnvelopeKey]; ok {
		object, err = decodeObject(envelope)
		if err != nil {
			return nil, fmt.Errorf("decode object (legacy envelope): %w", err)
		}
	} else if isReportingApiViolation(object) {
		body, ok := object[reportingApiBodyKey]
		if !ok {
			return nil, motmedelErrors.New(cspErrors.ErrNotAnObject, string(data))
		}
		object, err = decodeObject(body)
		if err != nil {
			return nil, fmt.Errorf("decode object (reporting api body): %w", err)
		}
	}

	report := make(Report)
	for _, name := range fieldNames {
		for _, key := range slices.Concat([]string{name}, aliases[name]) {
			raw, ok := object[key]
			if !ok {
				continue
			}

			value, present, err := decodeValue(name, raw)
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}

			report[name] = value
			break
		}
	}

	return report, nil
}

// ParseBatch decodes a Reporting API delivery, a JSON array of reports. The
// csp-violation reports are returned in order; reports of other types are
// skipped. Entries that cannot be decoded are left out and their errors are
// joined into the returned error.
func ParseBatch(data []byte) ([]Report, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, motmedelErrors.New(cspErrors.ErrEmptyBody)
	}
	if trimmed[0] != '[' {
		return nil, motmedelErrors.New(cspErrors.ErrNotAnArray, string(trimmed))
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("json unmarshal: %w", err), string(trimmed))
	}

	var reports []Report
	var errs []error
	for i, entry := range entries {
		object, err := decodeObject(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("decode object (entry %d): %w", i, err))
			continue
		}
		if !isReportingApiViolation(object) {
			continue
		}

		report, err := Parse(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse (entry %d): %w", i, err))
			continue
		}
		reports = append(reports, report)
	}

	return reports, errors.Join(errs...)
}

// Without returns a copy of the report without the named fields.
func (report Report) Without(names ...string) Report {
	result := make(Report, len(report))
	for name, value := range report {
		if slices.Contains(names, name) {
			continue
		}
		result[name] = value
	}
	return result
}

// Value renders a field as a string.
func (report Report) Value(name string) (string, bool) {
	value, ok := report[name]
	if !ok {
		return "", false
	}

	switch typedValue := value.(type) {
	case string:
		return typedValue, true
	case json.Number:
		return typedValue.String(), true
	default:
		return fmt.Sprintf("%v", typedValue), true
	}
}

// Canonical renders the report as a JSON object with the fields in canonical
// order.
func (report Report) Canonical() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')

	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)

	first := true
	for _, name := range fieldNames {
		value, ok := report[name]
		if !ok {
			continue
		}
		if !first {
			buffer.WriteByte(',')
		}
		first = false

		if err := encoder.Encode(name); err != nil {
			return nil, motmedelErrors.New(fmt.Errorf("json encode: %w", err), name)
		}
		buffer.Truncate(buffer.Len() - 1)
		buffer.WriteByte(':')

		if err := encoder.Encode(value); err != nil {
			return nil, motmedelErrors.New(fmt.Errorf("json encode: %w", err), value)
		}
		buffer.Truncate(buffer.Len() - 1)
	}

	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// Digest is the URL-safe base64 SHA-256 of the canonical form.
func (report Report) Digest() (string, error) {
	canonical, err := report.Canonical()
	if err != nil {
		return "", fmt.Errorf("canonical: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
