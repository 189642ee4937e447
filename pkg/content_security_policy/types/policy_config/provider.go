package policy_config

import (
	"context"
	"net/http"
)

// Provider returns the configuration snapshot for one request. The returned
// value is not modified afterwards.
type Provider interface {
	PolicyConfig(ctx context.Context, request *http.Request) (*PolicyConfig, error)
}

type ProviderFunc func(ctx context.Context, request *http.Request) (*PolicyConfig, error)

func (f ProviderFunc) PolicyConfig(ctx context.Context, request *http.Request) (*PolicyConfig, error) {
	return f(ctx, request)
}

// Static always provides the same configuration.
type Static struct {
	Config *PolicyConfig
}

func (static *Static) PolicyConfig(context.Context, *http.Request) (*PolicyConfig, error) {
	return static.Config, nil
}
