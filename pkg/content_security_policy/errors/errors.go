package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfig        = errors.New("configuration error")
	ErrBadRequest    = errors.New("bad request")
	ErrForwardFailed = errors.New("forward failed")

	ErrNilConfig        = errors.New("nil config")
	ErrNilIndex         = errors.New("nil deduplication index")
	ErrEmptyBody        = errors.New("empty body")
	ErrBodyTooLarge     = errors.New("body too large")
	ErrContentType      = errors.New("unsupported content type")
	ErrNotAnObject      = errors.New("report is not an object")
	ErrNotAnArray       = errors.New("reports are not an array")
	ErrUnsupportedValue = errors.New("unsupported field value")
	ErrInvalidSource    = errors.New("invalid source list")
)

// ConfigError is a stored value that could not be used. The affected
// directive is omitted rather than failing the request.
type ConfigError struct {
	Key   string
	Value string
	Cause error
}

func (configError *ConfigError) Error() string {
	message := fmt.Sprintf("%s: %q", ErrConfig.Error(), configError.Key)
	if configError.Cause != nil {
		message += ": " + configError.Cause.Error()
	}
	return message
}

func (configError *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func (configError *ConfigError) Unwrap() error {
	return configError.Cause
}

func (configError *ConfigError) GetInput() any {
	return configError.Value
}

type IngestErrorKind int

const (
	KindBadRequest IngestErrorKind = iota + 1
	KindForwardFailed
)

func (kind IngestErrorKind) String() string {
	switch kind {
	case KindBadRequest:
		return "bad_request"
	case KindForwardFailed:
		return "forward_failed"
	default:
		return "unknown"
	}
}

// IngestError is a failure while ingesting a single violation report.
type IngestError struct {
	Kind  IngestErrorKind
	Cause error
}

func (ingestError *IngestError) Error() string {
	var message string
	switch ingestError.Kind {
	case KindBadRequest:
		message = ErrBadRequest.Error()
	case KindForwardFailed:
		message = ErrForwardFailed.Error()
	default:
		message = "ingest error"
	}

	if ingestError.Cause != nil {
		message += ": " + ingestError.Cause.Error()
	}
	return message
}

func (ingestError *IngestError) Is(target error) bool {
	switch ingestError.Kind {
	case KindBadRequest:
		return target == ErrBadRequest
	case KindForwardFailed:
		return target == ErrForwardFailed
	default:
		return false
	}
}

func (ingestError *IngestError) Unwrap() error {
	return ingestError.Cause
}

func (ingestError *IngestError) GetCode() string {
	return ingestError.Kind.String()
}

func NewBadRequestError(cause error) *IngestError {
	return &IngestError{Kind: KindBadRequest, Cause: cause}
}

func NewForwardFailedError(cause error) *IngestError {
	return &IngestError{Kind: KindForwardFailed, Cause: cause}
}
