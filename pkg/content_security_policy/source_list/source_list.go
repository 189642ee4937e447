// Package source_list validates stored directive values against the CSP
// serialized-source-list grammar.
package source_list

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	cspErrors "github.com/Motmedel/csp_go/pkg/content_security_policy/errors"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	goabnf "github.com/pandatix/go-abnf"
)

//go:embed grammar.txt
var grammar []byte

const rootRuleName = "serialized-source-list"

var SourceListGrammar *goabnf.Grammar

// Validate reports whether a directive value is a well-formed source list.
// An empty value is valid: it disables the directive.
func Validate(value string) error {
	normalized := strings.Join(strings.Fields(value), " ")
	if normalized == "" {
		return nil
	}

	paths, err := goabnf.Parse([]byte(normalized), SourceListGrammar, rootRuleName)
	if err != nil {
		return motmedelErrors.New(
			fmt.Errorf("%w: goabnf parse: %w", cspErrors.ErrInvalidSource, err),
			normalized,
		)
	}
	if len(paths) == 0 {
		return motmedelErrors.New(
			fmt.Errorf("%w: %w", cspErrors.ErrInvalidSource, motmedelErrors.ErrSyntaxError),
			normalized,
		)
	}

	return nil
}

func init() {
	// ABNF rules are terminated by CRLF.
	data := bytes.ReplaceAll(grammar, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))

	var err error
	SourceListGrammar, err = goabnf.ParseABNF(data)
	if err != nil {
		panic(fmt.Sprintf("could not parse source list grammar: %v", err))
	}
}
