package errors

import "errors"

var (
	ErrNilToken         = errors.New("nil token")
	ErrEmptyTokenString = errors.New("empty token string")
	ErrEmptySigningKey  = errors.New("empty signing key")
	ErrNilMethod        = errors.New("nil method")
	ErrUnexpectedClaims = errors.New("unexpected claims type")
)
