package delivery_gate

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/directive_registry"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	contentSecurityPolicyTypes "github.com/Motmedel/csp_go/pkg/http/types/content_security_policy"
)

const nonceSize = 18

func newNonce() (string, error) {
	data := make([]byte, nonceSize)
	if _, err := rand.Read(data); err != nil {
		return "", motmedelErrors.NewWithTrace(fmt.Errorf("rand read: %w", err))
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func directiveTokens(directive contentSecurityPolicyTypes.DirectiveI) []string {
	switch typedDirective := directive.(type) {
	case *contentSecurityPolicyTypes.Directive:
		return slices.Clone(typedDirective.Tokens)
	default:
		fields := strings.Fields(directive.String())
		if len(fields) == 0 {
			return nil
		}
		return fields[1:]
	}
}

// allowsInlineScripts reports whether the source list lets an inline script
// without a nonce run. 'unsafe-inline' is ignored next to a nonce, a hash or
// 'strict-dynamic'.
func allowsInlineScripts(tokens []string) bool {
	unsafeInline := false
	for _, token := range tokens {
		switch lowered := strings.ToLower(token); {
		case lowered == "'unsafe-inline'":
			unsafeInline = true
		case lowered == "'strict-dynamic'",
			strings.HasPrefix(lowered, "'nonce-"),
			strings.HasPrefix(lowered, "'sha256-"),
			strings.HasPrefix(lowered, "'sha384-"),
			strings.HasPrefix(lowered, "'sha512-"):
			return false
		}
	}
	return unsafeInline
}

// effectiveScriptDirective returns the directive governing script elements. Of
// duplicate directives the first one applies.
func effectiveScriptDirective(policy *contentSecurityPolicyTypes.ContentSecurityPolicy) contentSecurityPolicyTypes.DirectiveI {
	for _, name := range []directive_registry.DirectiveName{directive_registry.ScriptSrc, directive_registry.DefaultSrc} {
		if directives := policy.GetDirectives(string(name)); len(directives) != 0 {
			return directives[0]
		}
	}
	return nil
}

// permitNonce amends the policy so that a script element carrying the nonce
// may run, and reports whether the nonce is needed. It is not when scripts are
// unrestricted or inline scripts are already allowed. A lone 'none' is
// replaced.
func permitNonce(policy *contentSecurityPolicyTypes.ContentSecurityPolicy, nonce string) bool {
	if policy == nil {
		return false
	}

	governing := effectiveScriptDirective(policy)
	if governing == nil {
		return false
	}

	tokens := directiveTokens(governing)
	if allowsInlineScripts(tokens) {
		return false
	}

	tokens = slices.DeleteFunc(tokens, func(token string) bool {
		return strings.EqualFold(token, "'none'")
	})
	amended := &contentSecurityPolicyTypes.Directive{
		Name:   string(directive_registry.ScriptSrc),
		Tokens: append(tokens, "'nonce-"+nonce+"'"),
	}

	if governing.GetName() != string(directive_registry.ScriptSrc) {
		policy.Directives = append(policy.Directives, amended)
		return true
	}

	for _, directives := range [][]contentSecurityPolicyTypes.DirectiveI{policy.Directives, policy.OtherDirectives} {
		if index := slices.Index(directives, governing); index >= 0 {
			directives[index] = amended
			break
		}
	}

	return true
}
