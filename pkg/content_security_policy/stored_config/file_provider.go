package stored_config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/policy_config"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
)

// FileProvider reads the configuration from a YAML file. The file is read
// again only when its modification time or size changes; until then every
// request shares the same snapshot, which callers must not modify.
type FileProvider struct {
	Path     string
	Validate bool
	Logger   *slog.Logger

	mutex   sync.Mutex
	modTime time.Time
	size    int64
	config  *policy_config.PolicyConfig
}

type Option func(*FileProvider)

func WithValidate(validate bool) Option {
	return func(provider *FileProvider) {
		provider.Validate = validate
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(provider *FileProvider) {
		provider.Logger = logger
	}
}

func NewFileProvider(path string, options ...Option) *FileProvider {
	provider := &FileProvider{Path: path, Validate: true}
	for _, option := range options {
		if option != nil {
			option(provider)
		}
	}

	return provider
}

func (provider *FileProvider) PolicyConfig(context.Context, *http.Request) (*policy_config.PolicyConfig, error) {
	if provider.Path == "" {
		return nil, motmedelErrors.NewWithTrace(fmt.Errorf("%w: path", motmedelErrors.ErrZeroValue))
	}

	info, err := os.Stat(provider.Path)
	if err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("os stat: %w", err), provider.Path)
	}

	provider.mutex.Lock()
	defer provider.mutex.Unlock()

	if provider.config != nil && info.ModTime().Equal(provider.modTime) && info.Size() == provider.size {
		return provider.config, nil
	}

	data, err := os.ReadFile(provider.Path)
	if err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("os read file: %w", err), provider.Path)
	}

	values, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	config, configErrs := ToPolicyConfig(values, provider.Validate)
	for _, configErr := range configErrs {
		motmedelLogError.LogWarning(
			"A stored configuration value is unusable and was left out.",
			configErr,
			provider.Logger,
			slog.String("path", provider.Path),
		)
	}

	provider.config = config
	provider.modTime = info.ModTime()
	provider.size = info.Size()

	return config, nil
}
