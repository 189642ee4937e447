// Package report_forwarder defines where accepted violation reports are sent.
package report_forwarder

import (
	"context"
	"errors"
	"fmt"
)

// ContentType is the media type reports are forwarded with.
const ContentType = "application/csp-report"

// Forwarder delivers one canonical report. Forward is called at most once
// per report; implementations do not retry.
type Forwarder interface {
	Forward(ctx context.Context, report []byte) error
}

type ForwarderFunc func(ctx context.Context, report []byte) error

func (f ForwarderFunc) Forward(ctx context.Context, report []byte) error {
	return f(ctx, report)
}

// Multi forwards to every forwarder and joins the errors.
type Multi []Forwarder

func (multi Multi) Forward(ctx context.Context, report []byte) error {
	var errs []error
	for i, forwarder := range multi {
		if forwarder == nil {
			continue
		}
		if err := forwarder.Forward(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("forward (%d): %w", i, err))
		}
	}

	return errors.Join(errs...)
}
