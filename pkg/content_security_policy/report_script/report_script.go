// Package report_script provides the client script that posts violation
// reports back to the collector.
package report_script

import (
	"bytes"
	_ "embed"
	"html"
	"slices"
)

// IntakeParameter is the query parameter identifying report intake requests.
const IntakeParameter = "csp-violations"

//go:embed report-uri.js
var script []byte

func Script() []byte {
	return slices.Clone(script)
}

// Markup returns an inline script element. A non-empty nonce is added as the
// element's nonce attribute.
func Markup(nonce string) string {
	var buffer bytes.Buffer
	buffer.WriteString("<script")
	if nonce != "" {
		buffer.WriteString(` nonce="`)
		buffer.WriteString(html.EscapeString(nonce))
		buffer.WriteString(`"`)
	}
	buffer.WriteString(">")
	buffer.Write(script)
	buffer.WriteString("</script>")
	return buffer.String()
}
