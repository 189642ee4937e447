package policy_config

import (
	"maps"
	"strings"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/directive_registry"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/report_config"
)

// PolicyConfig is the configuration a policy is assembled from. It is built
// once per request and not modified afterwards.
type PolicyConfig struct {
	Directives      map[directive_registry.DirectiveName][]string
	DirectivesOther string
	Deploy          bool
	Debug           bool
	Report          *report_config.Config
}

type Option func(*PolicyConfig)

func New(options ...Option) *PolicyConfig {
	config := &PolicyConfig{
		Directives: make(map[directive_registry.DirectiveName][]string),
		Report:     report_config.New(),
	}

	for _, option := range options {
		if option != nil {
			option(config)
		}
	}

	return config
}

// Tokenize splits a directive value into source-expression tokens.
func Tokenize(value string) []string {
	return strings.Fields(value)
}

// WithDirective sets the value of a directive. A name outside the registry is
// appended to the other directives instead.
func WithDirective(name directive_registry.DirectiveName, value string) Option {
	return func(config *PolicyConfig) {
		tokens := Tokenize(value)

		if !directive_registry.IsRegistered(name) {
			if name == "" {
				return
			}
			line := strings.TrimSpace(string(name) + " " + strings.Join(tokens, " "))
			if config.DirectivesOther != "" {
				config.DirectivesOther += "\n"
			}
			config.DirectivesOther += line
			return
		}

		if len(tokens) == 0 {
			delete(config.Directives, name)
			return
		}
		config.Directives[name] = tokens
	}
}

func WithDirectivesOther(directivesOther string) Option {
	return func(config *PolicyConfig) {
		config.DirectivesOther = directivesOther
	}
}

func WithDeploy(deploy bool) Option {
	return func(config *PolicyConfig) {
		config.Deploy = deploy
	}
}

func WithDebug(debug bool) Option {
	return func(config *PolicyConfig) {
		config.Debug = debug
	}
}

func WithReport(report *report_config.Config) Option {
	return func(config *PolicyConfig) {
		if report == nil {
			report = report_config.New()
		}
		config.Report = report
	}
}

// DirectiveValue returns the tokens of a registered directive; nil when disabled.
func (config *PolicyConfig) DirectiveValue(name directive_registry.DirectiveName) []string {
	if config == nil {
		return nil
	}
	return config.Directives[name]
}

func (config *PolicyConfig) IsEnabled(name directive_registry.DirectiveName) bool {
	return len(config.DirectiveValue(name)) != 0
}

// ReportEnabled reports whether violation-report collection is switched on.
func (config *PolicyConfig) ReportEnabled() bool {
	return config != nil && config.Report != nil && config.Report.Enable
}

func (config *PolicyConfig) Clone() *PolicyConfig {
	if config == nil {
		return nil
	}

	clone := *config
	clone.Directives = maps.Clone(config.Directives)
	if clone.Directives == nil {
		clone.Directives = make(map[directive_registry.DirectiveName][]string)
	}
	return &clone
}
