package errors

import "errors"

var (
	ErrNilProblemDetail = errors.New("nil problem detail")
)
