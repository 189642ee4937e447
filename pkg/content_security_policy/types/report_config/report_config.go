package report_config

import (
	"maps"
	"slices"
)

// Config controls violation-report collection. Exclude and Filters are keyed
// by report field name, e.g. "sourceFile" or "disposition".
type Config struct {
	Enable   bool
	Endpoint string
	Exclude  []string
	Filters  map[string][]string
}

type Option func(*Config)

func New(options ...Option) *Config {
	config := &Config{}
	for _, option := range options {
		if option != nil {
			option(config)
		}
	}

	return config
}

func WithEnable(enable bool) Option {
	return func(config *Config) {
		config.Enable = enable
	}
}

func WithEndpoint(endpoint string) Option {
	return func(config *Config) {
		config.Endpoint = endpoint
	}
}

func WithExclude(names ...string) Option {
	return func(config *Config) {
		config.Exclude = append(config.Exclude, names...)
	}
}

// WithFilter adds values of a field for which reports are ignored.
func WithFilter(name string, ignoreValues ...string) Option {
	return func(config *Config) {
		if config.Filters == nil {
			config.Filters = make(map[string][]string)
		}
		config.Filters[name] = append(config.Filters[name], ignoreValues...)
	}
}

func (config *Config) IsExcluded(name string) bool {
	return config != nil && slices.Contains(config.Exclude, name)
}

// IsFiltered reports whether the field value is a configured ignore value.
func (config *Config) IsFiltered(name string, value string) bool {
	if config == nil {
		return false
	}
	return slices.Contains(config.Filters[name], value)
}

// FilterNames returns the filtered field names in sorted order.
func (config *Config) FilterNames() []string {
	if config == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(config.Filters))
}

func (config *Config) HasEndpoint() bool {
	return config != nil && config.Endpoint != ""
}
