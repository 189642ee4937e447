// Package http_forwarder posts violation reports to a collection endpoint.
package http_forwarder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_forwarder"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	motmedelHttpUtils "github.com/Motmedel/csp_go/pkg/http/utils"
)

const DefaultTimeout = 5 * time.Second

type Forwarder struct {
	Endpoint   string
	HttpClient *http.Client
	Timeout    time.Duration
}

type Option func(*Forwarder)

func WithHttpClient(httpClient *http.Client) Option {
	return func(forwarder *Forwarder) {
		if httpClient != nil {
			forwarder.HttpClient = httpClient
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(forwarder *Forwarder) {
		forwarder.Timeout = timeout
	}
}

func New(endpoint string, options ...Option) *Forwarder {
	forwarder := &Forwarder{
		Endpoint:   endpoint,
		HttpClient: &http.Client{},
		Timeout:    DefaultTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(forwarder)
		}
	}

	return forwarder
}

func (forwarder *Forwarder) Forward(ctx context.Context, report []byte) error {
	if forwarder.Endpoint == "" {
		return motmedelErrors.NewWithTrace(fmt.Errorf("%w: endpoint", motmedelErrors.ErrZeroValue))
	}

	if forwarder.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, forwarder.Timeout)
		defer cancel()
	}

	_, _, err := motmedelHttpUtils.SendRequest(
		ctx,
		forwarder.HttpClient,
		http.MethodPost,
		forwarder.Endpoint,
		report,
		func(request *http.Request) error {
			request.Header.Set("Content-Type", report_forwarder.ContentType)
			return nil
		},
	)
	if err != nil {
		return motmedelErrors.New(fmt.Errorf("send request: %w", err), forwarder.Endpoint)
	}

	return nil
}
