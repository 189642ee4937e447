// Package stored_config turns stored configuration values, keyed by the
// directive registry's storage keys, into a PolicyConfig.
package stored_config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/directive_registry"
	cspErrors "github.com/Motmedel/csp_go/pkg/content_security_policy/errors"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/source_list"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/policy_config"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/report_config"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/violation_report"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	KeyDeploy         = "deploy"
	KeyDebug          = "debug"
	KeyReport         = "report"
	KeyReportEndpoint = "reportEndpoint"
	KeyReportExclude  = "reportExclude"
	KeyReportFilters  = "reportFilters"
)

type Values map[string]any

// Parse decodes a YAML mapping. An empty document yields empty values.
func Parse(data []byte) (Values, error) {
	var values Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("%w: yaml unmarshal: %w", cspErrors.ErrConfig, err))
	}
	if values == nil {
		values = make(Values)
	}

	return values, nil
}

func configError(key string, value any, cause error) *cspErrors.ConfigError {
	return &cspErrors.ConfigError{Key: key, Value: fmt.Sprint(value), Cause: cause}
}

func unsupportedType(value any) error {
	return fmt.Errorf("%w: %T", motmedelErrors.ErrConversionNotOk, value)
}

// text renders a scalar or a list of scalars, joining list items with sep.
func text(value any, sep string) (string, error) {
	switch typedValue := value.(type) {
	case nil:
		return "", nil
	case string:
		return typedValue, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(typedValue), nil
	case []any:
		parts := make([]string, 0, len(typedValue))
		for _, item := range typedValue {
			if _, isList := item.([]any); isList {
				return "", unsupportedType(item)
			}
			part, err := text(item, sep)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return strings.Join(parts, sep), nil
	default:
		return "", unsupportedType(value)
	}
}

// list splits a string on newlines, or takes the items of a list.
func list(value any) ([]string, error) {
	var lines []string
	switch typedValue := value.(type) {
	case []any:
		for _, item := range typedValue {
			line, err := text(item, " ")
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
	default:
		joined, err := text(value, "\n")
		if err != nil {
			return nil, err
		}
		lines = strings.Split(strings.ReplaceAll(joined, "\r\n", "\n"), "\n")
	}

	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return result, nil
}

func boolean(value any) (bool, error) {
	switch typedValue := value.(type) {
	case nil:
		return false, nil
	case bool:
		return typedValue, nil
	case int:
		return typedValue != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(typedValue)) {
		case "", "0", "false", "no", "off":
			return false, nil
		case "1", "true", "yes", "on":
			return true, nil
		}
	}
	return false, unsupportedType(value)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func validateEndpoint(endpoint string) error {
	parsedUrl, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("url parse: %w", err)
	}
	if (parsedUrl.Scheme != "http" && parsedUrl.Scheme != "https") || parsedUrl.Host == "" {
		return motmedelErrors.New(
			fmt.Errorf("%w: not an absolute http url", motmedelErrors.ErrValidationError),
			endpoint,
		)
	}
	return nil
}

// ToPolicyConfig builds a configuration from stored values. Values that cannot
// be used are left out and reported as *errors.ConfigError; they never make
// the conversion fail. With validate, directive values are checked against
// the source list grammar and the report settings are checked as well.
func ToPolicyConfig(values Values, validate bool) (*policy_config.PolicyConfig, []error) {
	var errs []error
	var options []policy_config.Option
	var reportOptions []report_config.Option

	for _, key := range slices.Sorted(maps.Keys(values)) {
		value := values[key]

		if name, ok := directive_registry.Lookup(key); ok {
			directiveValue, err := text(value, " ")
			if err != nil {
				errs = append(errs, configError(key, value, err))
				continue
			}
			if validate {
				if err := source_list.Validate(directiveValue); err != nil {
					errs = append(errs, configError(key, directiveValue, err))
					continue
				}
			}
			options = append(options, policy_config.WithDirective(name, directiveValue))
			continue
		}

		switch key {
		case directive_registry.OtherStorageKey:
			lines, err := list(value)
			if err != nil {
				errs = append(errs, configError(key, value, err))
				continue
			}
			options = append(options, policy_config.WithDirectivesOther(strings.Join(lines, "\n")))
		case KeyDeploy, KeyDebug, KeyReport:
			enabled, err := boolean(value)
			if err != nil {
				errs = append(errs, configError(key, value, err))
				continue
			}
			switch key {
			case KeyDeploy:
				options = append(options, policy_config.WithDeploy(enabled))
			case KeyDebug:
				options = append(options, policy_config.WithDebug(enabled))
			default:
				reportOptions = append(reportOptions, report_config.WithEnable(enabled))
			}
		case KeyReportEndpoint:
			endpoint, err := text(value, "")
			if err != nil {
				errs = append(errs, configError(key, value, err))
				continue
			}
			endpoint = strings.TrimSpace(endpoint)
			if endpoint == "" {
				continue
			}
			if validate {
				if err := validateEndpoint(endpoint); err != nil {
					errs = append(errs, configError(key, endpoint, err))
					continue
				}
			}
			reportOptions = append(reportOptions, report_config.WithEndpoint(endpoint))
		case KeyReportExclude:
			var names []string
			if items, ok := value.([]any); ok {
				for _, item := range items {
					name, err := text(item, "")
					if err != nil {
						errs = append(errs, configError(key, item, err))
						continue
					}
					names = append(names, name)
				}
			} else {
				joined, err := text(value, " ")
				if err != nil {
					errs = append(errs, configError(key, value, err))
					continue
				}
				names = strings.FieldsFunc(joined, func(r rune) bool {
					return r == ',' || unicode.IsSpace(r)
				})
			}
			for _, name := range names {
				if validate && !violation_report.IsField(name) {
					errs = append(errs, configError(key, name, motmedelErrors.ErrNotInMap))
					continue
				}
				reportOptions = append(reportOptions, report_config.WithExclude(name))
			}
		case KeyReportFilters:
			filters, ok := value.(map[string]any)
			if !ok {
				if value != nil {
					errs = append(errs, configError(key, value, unsupportedType(value)))
				}
				continue
			}
			for _, name := range slices.Sorted(maps.Keys(filters)) {
				filterOptions, err := filterOption(key+"."+name, name, filters[name], validate)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				reportOptions = append(reportOptions, filterOptions)
			}
		default:
			if name, ok := strings.CutPrefix(key, KeyReportFilters); ok && name != "" {
				filterOptions, err := filterOption(key, lowerFirst(name), value, validate)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				reportOptions = append(reportOptions, filterOptions)
				continue
			}
			if validate {
				errs = append(errs, configError(key, value, motmedelErrors.ErrNotInMap))
			}
		}
	}

	options = append(options, policy_config.WithReport(report_config.New(reportOptions...)))
	return policy_config.New(options...), errs
}

func filterOption(key string, name string, value any, validate bool) (report_config.Option, error) {
	if validate && !violation_report.IsField(name) {
		return nil, configError(key, name, motmedelErrors.ErrNotInMap)
	}

	ignoreValues, err := list(value)
	if err != nil {
		return nil, configError(key, value, err)
	}

	return report_config.WithFilter(name, ignoreValues...), nil
}
