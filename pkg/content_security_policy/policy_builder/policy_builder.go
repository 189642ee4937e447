// Package policy_builder assembles the Content-Security-Policy header value.
package policy_builder

import (
	"strings"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/directive_registry"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/policy_config"
	contentSecurityPolicyTypes "github.com/Motmedel/csp_go/pkg/http/types/content_security_policy"
)

// ParseOtherDirectives returns the trimmed, non-empty lines of the free-text
// block, in order.
func ParseOtherDirectives(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

// BuildPolicy returns the structured policy: the registered directives in
// registry order followed by the other directives verbatim. Directive names
// are not deduplicated.
func BuildPolicy(config *policy_config.PolicyConfig) *contentSecurityPolicyTypes.ContentSecurityPolicy {
	policy := &contentSecurityPolicyTypes.ContentSecurityPolicy{}
	if config == nil {
		return policy
	}

	for _, name := range directive_registry.List() {
		tokens := config.DirectiveValue(name)
		if len(tokens) == 0 {
			continue
		}

		policy.Directives = append(
			policy.Directives,
			&contentSecurityPolicyTypes.Directive{Name: string(name), Tokens: tokens},
		)
	}

	for _, line := range ParseOtherDirectives(config.DirectivesOther) {
		policy.OtherDirectives = append(policy.OtherDirectives, &contentSecurityPolicyTypes.RawDirective{Raw: line})
	}

	return policy
}

// Build returns the header value. An empty string means no header is to be sent.
func Build(config *policy_config.PolicyConfig) string {
	return BuildPolicy(config).String()
}
