package violation_report

import (
	"encoding/json"
	"errors"
	"testing"

	cspErrors "github.com/Motmedel/csp_go/pkg/content_security_policy/errors"
	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected Report
		wantErr  error
	}{
		{
			name:  "flat object",
			input: `{"blockedURI":"https://evil.example","lineNumber":12,"disposition":"enforce","unknown":"x"}`,
			expected: Report{
				FieldBlockedURI:  "https://evil.example",
				FieldLineNumber:  json.Number("12"),
				FieldDisposition: "enforce",
			},
		},
		{
			name:     "null is absent",
			input:    `{"sample":null,"referrer":""}`,
			expected: Report{FieldReferrer: ""},
		},
		{
			name:  "legacy envelope",
			input: `{"csp-report":{"blocked-uri":"inline","violated-directive":"script-src","script-sample":"alert(1)","status-code":200}}`,
			expected: Report{
				FieldBlockedURI:        "inline",
				FieldViolatedDirective: "script-src",
				FieldSample:            "alert(1)",
				FieldStatusCode:        json.Number("200"),
			},
		},
		{
			name:  "reporting api",
			input: `{"type":"csp-violation","url":"https://example.com/","body":{"blockedURL":"eval","documentURL":"https://example.com/","effectiveDirective":"script-src-elem"}}`,
			expected: Report{
				FieldBlockedURI:         "eval",
				FieldDocumentURI:        "https://example.com/",
				FieldEffectiveDirective: "script-src-elem",
			},
		},
		{
			name:     "canonical name wins over alias",
			input:    `{"blockedURI":"a","blocked-uri":"b"}`,
			expected: Report{FieldBlockedURI: "a"},
		},
		{
			name:     "legacy alias wins over reporting api alias",
			input:    `{"csp-report":{"blockedURL":"https://b.example","blocked-uri":"https://a.example","documentURL":"d2","document-uri":"d1"}}`,
			expected: Report{FieldBlockedURI: "https://a.example", FieldDocumentURI: "d1"},
		},
		{
			name:     "null canonical name falls back to alias",
			input:    `{"blockedURI":null,"blocked-uri":"b"}`,
			expected: Report{FieldBlockedURI: "b"},
		},
		{
			name:  "numeric fields normalized",
			input: `{"lineNumber":"5","columnNumber":7.0,"statusCode":" 200 ","sourceFile":"5"}`,
			expected: Report{
				FieldLineNumber:   json.Number("5"),
				FieldColumnNumber: json.Number("7"),
				FieldStatusCode:   json.Number("200"),
				FieldSourceFile:   "5",
			},
		},
		{
			name:     "non-integral numeric field kept",
			input:    `{"lineNumber":"unknown","columnNumber":1.5}`,
			expected: Report{FieldLineNumber: "unknown", FieldColumnNumber: json.Number("1.5")},
		},
		{
			name:     "empty object",
			input:    `{}`,
			expected: Report{},
		},
		{name: "empty body", input: "  ", wantErr: cspErrors.ErrEmptyBody},
		{name: "array", input: `[{"blockedURI":"a"}]`, wantErr: cspErrors.ErrNotAnObject},
		{name: "string", input: `"report"`, wantErr: cspErrors.ErrNotAnObject},
		{name: "null", input: `null`, wantErr: cspErrors.ErrNotAnObject},
		{name: "nested value", input: `{"sample":{"a":1}}`, wantErr: cspErrors.ErrUnsupportedValue},
		{name: "boolean value", input: `{"lineNumber":true}`, wantErr: cspErrors.ErrUnsupportedValue},
		{name: "legacy envelope not an object", input: `{"csp-report":"x"}`, wantErr: cspErrors.ErrNotAnObject},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			report, err := Parse([]byte(testCase.input))
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("expected error %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(testCase.expected, report); diff != "" {
				t.Errorf("report mismatch (-expected +got):\n%s", diff)
			}
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()

		if _, err := Parse([]byte(`{"blockedURI":`)); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	report := Report{
		FieldViolatedDirective: "script-src",
		FieldLineNumber:        json.Number("3"),
		FieldBlockedURI:        "https://cdn.example/<x>&y",
	}

	canonical, err := report.Canonical()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"blockedURI":"https://cdn.example/<x>&y","lineNumber":3,"violatedDirective":"script-src"}`
	if diff := cmp.Diff(expected, string(canonical)); diff != "" {
		t.Errorf("canonical mismatch (-expected +got):\n%s", diff)
	}

	empty, err := Report{}.Canonical()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(empty) != "{}" {
		t.Errorf("expected {}, got %s", empty)
	}
}

func TestDigest(t *testing.T) {
	t.Parallel()

	first, err := Parse([]byte(`{"sourceFile":"a.js","lineNumber":1,"blockedURI":"eval"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Parse([]byte(`{"blockedURI":"eval","sourceFile":"a.js","lineNumber":1,"extra":"ignored"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	firstDigest, err := first.Digest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secondDigest, err := second.Digest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if firstDigest != secondDigest {
		t.Errorf("expected equal digests for reordered reports, got %q and %q", firstDigest, secondDigest)
	}

	thirdDigest, err := first.Without(FieldSourceFile).Digest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thirdDigest == firstDigest {
		t.Error("expected a different digest after removing a field")
	}
}

func TestDigestStable(t *testing.T) {
	t.Parallel()

	input := []byte(`{"csp-report":{"blocked-uri":"https://a.example","blockedURL":"https://b.example","document-uri":"https://example.com/","documentURL":"https://example.org/"}}`)

	digests := make(map[string]struct{})
	for range 200 {
		report, err := Parse(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		digest, err := report.Digest()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		digests[digest] = struct{}{}
	}

	if len(digests) != 1 {
		t.Errorf("expected one digest across parses, got %d", len(digests))
	}
}

func TestDigestNumericRepresentation(t *testing.T) {
	t.Parallel()

	var digests []string
	for _, input := range []string{`{"lineNumber":5}`, `{"lineNumber":"5"}`, `{"line-number":5.0}`} {
		report, err := Parse([]byte(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		digest, err := report.Digest()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		digests = append(digests, digest)
	}

	if digests[0] != digests[1] || digests[0] != digests[2] {
		t.Errorf("expected equal digests, got %v", digests)
	}
}

func TestParseBatch(t *testing.T) {
	t.Parallel()

	input := `[
		{"type":"csp-violation","body":{"blockedURL":"eval","lineNumber":3}},
		{"type":"network-error","body":{"blockedURL":"x"}},
		{"type":"csp-violation","body":"x"},
		"x",
		{"type":"csp-violation","body":{"blockedURL":"inline"}}
	]`

	reports, err := ParseBatch([]byte(input))
	if !errors.Is(err, cspErrors.ErrNotAnObject) {
		t.Errorf("expected the malformed entries to be reported, got %v", err)
	}

	expected := []Report{
		{FieldBlockedURI: "eval", FieldLineNumber: json.Number("3")},
		{FieldBlockedURI: "inline"},
	}
	if diff := cmp.Diff(expected, reports); diff != "" {
		t.Errorf("reports mismatch (-expected +got):\n%s", diff)
	}

	for _, testCase := range []struct {
		input   string
		wantErr error
	}{
		{input: " ", wantErr: cspErrors.ErrEmptyBody},
		{input: `{"type":"csp-violation","body":{}}`, wantErr: cspErrors.ErrNotAnArray},
	} {
		if _, err := ParseBatch([]byte(testCase.input)); !errors.Is(err, testCase.wantErr) {
			t.Errorf("ParseBatch(%q): expected error %v, got %v", testCase.input, testCase.wantErr, err)
		}
	}

	reports, err = ParseBatch([]byte(`[]`))
	if err != nil || len(reports) != 0 {
		t.Errorf("expected no reports and no error, got %v, %v", reports, err)
	}
}

func TestWithout(t *testing.T) {
	t.Parallel()

	report := Report{FieldSourceFile: "a.js", FieldSample: "x", FieldReferrer: "r"}
	result := report.Without(FieldSourceFile, FieldSample, "notAField")

	if diff := cmp.Diff(Report{FieldReferrer: "r"}, result); diff != "" {
		t.Errorf("report mismatch (-expected +got):\n%s", diff)
	}
	if len(report) != 3 {
		t.Error("expected the original report to be unchanged")
	}
}

func TestValue(t *testing.T) {
	t.Parallel()

	report := Report{FieldDisposition: "report", FieldColumnNumber: json.Number("7")}

	if value, ok := report.Value(FieldDisposition); !ok || value != "report" {
		t.Errorf("unexpected disposition value %q, %v", value, ok)
	}
	if value, ok := report.Value(FieldColumnNumber); !ok || value != "7" {
		t.Errorf("unexpected column number value %q, %v", value, ok)
	}
	if _, ok := report.Value(FieldSample); ok {
		t.Error("expected an absent field")
	}
}

func TestFieldNames(t *testing.T) {
	t.Parallel()

	names := FieldNames()
	if len(names) != 12 {
		t.Fatalf("expected 12 field names, got %d", len(names))
	}
	names[0] = "changed"
	if FieldNames()[0] != FieldBlockedURI {
		t.Error("expected field names to be a copy")
	}
}
