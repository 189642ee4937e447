package report_script

import (
	"strings"
	"testing"
)

func TestScript(t *testing.T) {
	t.Parallel()

	source := string(Script())
	for _, expected := range []string{"securitypolicyviolation", IntakeParameter, "application/csp-report", "violatedDirective"} {
		if !strings.Contains(source, expected) {
			t.Errorf("expected the script to contain %q", expected)
		}
	}

	copied := Script()
	copied[0] = 'x'
	if Script()[0] == 'x' {
		t.Error("expected Script to return a copy")
	}
}

func TestMarkup(t *testing.T) {
	t.Parallel()

	markup := Markup("")
	if !strings.HasPrefix(markup, "<script>") || !strings.HasSuffix(markup, "</script>") {
		t.Errorf("unexpected markup %q", markup[:20])
	}
	if strings.Count(markup, "</script>") != 1 {
		t.Error("expected a single script element")
	}

	withNonce := Markup(`abc"def`)
	if !strings.HasPrefix(withNonce, `<script nonce="abc&#34;def">`) {
		t.Errorf("expected an escaped nonce attribute, got %q", withNonce[:30])
	}
}
