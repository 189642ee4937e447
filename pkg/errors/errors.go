package errors

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

var (
	ErrSyntaxError      = errors.New("syntax error")
	ErrConversionNotOk  = errors.New("conversion not ok")
	ErrValidationError  = errors.New("validation error")
	ErrNotInMap         = errors.New("not in map")
	ErrZeroValue        = errors.New("zero value")
	ErrContextZeroValue = errors.New("context zero value")
)

func CollectWrappedErrors(err error) []error {
	var results []error

	queue := []error{err}

	for len(queue) > 0 {
		poppedErr := queue[0]
		queue = queue[1:]

		if poppedErr == nil {
			continue
		}

		if poppedErr != err {
			results = append(results, poppedErr)
		}

		switch typedErr := poppedErr.(type) {
		case interface{ Unwrap() error }:
			unwrappedErr := typedErr.Unwrap()
			if unwrappedErr == nil {
				continue
			}

			queue = append(queue, unwrappedErr)
		case interface{ Unwrap() []error }:
			for _, unwrappedErr := range typedErr.Unwrap() {
				if unwrappedErr == nil {
					continue
				}

				queue = append(queue, unwrappedErr)
			}
		}
	}

	return results
}

func removeFunctionFromStackTrace(stackTrace, funcName string) string {
	lines := strings.Split(stackTrace, "\n")
	filtered := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		// Skip the function line and the file/line line after it.
		if strings.HasPrefix(lines[i], funcName+"(") {
			i++
		} else {
			filtered = append(filtered, lines[i])
		}
	}
	return strings.Join(filtered, "\n")
}

func getFunctionName(f any) string {
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}

func CaptureStackTrace() string {
	buf := make([]byte, 64<<10)
	return strings.TrimSpace(
		removeFunctionFromStackTrace(string(buf[:runtime.Stack(buf, false)]), getFunctionName(CaptureStackTrace)),
	)
}

type CodeErrorI interface {
	Error() string
	GetCode() string
}

type StackTraceErrorI interface {
	Error() string
	GetStackTrace() string
}

type InputErrorI interface {
	Error() string
	GetInput() any
}

type Error struct {
	Message    string
	Cause      error
	Input      any
	Code       string
	StackTrace string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) GetCause() error {
	return err.Cause
}

func (err *Error) GetInput() any {
	return err.Input
}

func (err *Error) GetCode() string {
	return err.Code
}

func (err *Error) GetStackTrace() string {
	return err.StackTrace
}

func (err *Error) Unwrap() error {
	return err.Cause
}

type ExtendedError struct {
	error
	Input      any
	Code       string
	StackTrace string
}

func (err *ExtendedError) GetInput() any {
	return err.Input
}

func (err *ExtendedError) GetCode() string {
	return err.Code
}

func (err *ExtendedError) GetStackTrace() string {
	return err.StackTrace
}

func (err *ExtendedError) Unwrap() error {
	return err.error
}

func makeError(e any, input ...any) *ExtendedError {
	var err error

	// `e` is expected to be an `error` or a string; anything else is formatted.
	switch typedE := e.(type) {
	case error:
		err = typedE
	case string:
		err = errors.New(typedE)
	default:
		err = fmt.Errorf("%v", typedE)
	}

	var errInput any
	switch len(input) {
	case 0:
	case 1:
		errInput = input[0]
	default:
		errInput = input
	}

	return &ExtendedError{error: err, Input: errInput}
}

// New decorates an error with the input that caused it.
func New(e any, input ...any) *ExtendedError {
	return makeError(e, input...)
}

// NewWithTrace is New with the caller's stack trace attached.
func NewWithTrace(e any, input ...any) *ExtendedError {
	extendedErr := makeError(e, input...)
	extendedErr.StackTrace = removeFunctionFromStackTrace(
		CaptureStackTrace(),
		getFunctionName(NewWithTrace),
	)

	return extendedErr
}
