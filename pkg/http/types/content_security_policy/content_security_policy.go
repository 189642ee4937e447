package content_security_policy

import (
	"slices"
	"strings"

	"github.com/Motmedel/csp_go/pkg/utils"
)

const HeaderName = "Content-Security-Policy"

type DirectiveI interface {
	GetName() string
	String() string
}

// Directive is a directive with its value split into source-expression tokens.
type Directive struct {
	Name   string   `json:"name,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
}

func (directive *Directive) GetName() string {
	return directive.Name
}

func (directive *Directive) String() string {
	var tokens []string
	for _, token := range directive.Tokens {
		if token != "" {
			tokens = append(tokens, token)
		}
	}

	if directive.Name == "" || len(tokens) == 0 {
		return ""
	}

	return directive.Name + " " + strings.Join(tokens, " ")
}

// RawDirective is a serialized directive emitted verbatim.
type RawDirective struct {
	Raw string `json:"raw,omitempty"`
}

func (rawDirective *RawDirective) GetName() string {
	name, _, _ := strings.Cut(strings.TrimSpace(rawDirective.Raw), " ")
	return name
}

func (rawDirective *RawDirective) String() string {
	return strings.TrimSpace(rawDirective.Raw)
}

type ContentSecurityPolicy struct {
	Directives      []DirectiveI `json:"directives"`
	OtherDirectives []DirectiveI `json:"other_directives"`
}

// GetDirectives returns every directive with the name, in emission order.
func (csp *ContentSecurityPolicy) GetDirectives(name string) []DirectiveI {
	var directives []DirectiveI
	for _, directive := range slices.Concat(csp.Directives, csp.OtherDirectives) {
		if utils.IsNil(directive) {
			continue
		}
		if directive.GetName() == name {
			directives = append(directives, directive)
		}
	}

	return directives
}

func (csp *ContentSecurityPolicy) String() string {
	var policies []string
	for _, directive := range slices.Concat(csp.Directives, csp.OtherDirectives) {
		if utils.IsNil(directive) {
			continue
		}

		if policyString := directive.String(); policyString != "" {
			policies = append(policies, policyString)
		}
	}

	return strings.Join(policies, "; ")
}
