package jwt

import (
	"fmt"

	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	jwtErrors "github.com/Motmedel/csp_go/pkg/jwt/errors"
	"github.com/Motmedel/csp_go/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Validate parses an HMAC-signed token and returns its claims. Registered
// claims (exp, nbf, iat) are validated by the parser.
func Validate(tokenString string, key []byte, options ...jwt.ParserOption) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, motmedelErrors.NewWithTrace(jwtErrors.ErrEmptyTokenString)
	}

	if len(key) == 0 {
		return nil, motmedelErrors.NewWithTrace(jwtErrors.ErrEmptySigningKey)
	}

	parsedToken, err := jwt.Parse(
		tokenString,
		func(token *jwt.Token) (any, error) {
			if token == nil {
				return nil, motmedelErrors.NewWithTrace(jwtErrors.ErrNilToken)
			}

			tokenMethod := token.Method
			if _, ok := tokenMethod.(*jwt.SigningMethodHMAC); !ok {
				return nil, motmedelErrors.NewWithTrace(
					fmt.Errorf("%w: %T", motmedelErrors.ErrConversionNotOk, tokenMethod),
					tokenMethod,
				)
			}

			return key, nil
		},
		options...,
	)
	if err != nil {
		return nil, motmedelErrors.NewWithTrace(
			fmt.Errorf("%w: jwt parse: %w", motmedelErrors.ErrValidationError, err),
		)
	}
	if parsedToken == nil {
		return nil, motmedelErrors.NewWithTrace(jwtErrors.ErrNilToken)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, motmedelErrors.NewWithTrace(
			fmt.Errorf("%w: %T", jwtErrors.ErrUnexpectedClaims, parsedToken.Claims),
		)
	}

	return claims, nil
}

// Sign produces a signed token string for the claims.
func Sign(claims jwt.MapClaims, key []byte, method jwt.SigningMethod) (string, error) {
	if len(key) == 0 {
		return "", motmedelErrors.NewWithTrace(jwtErrors.ErrEmptySigningKey)
	}

	if utils.IsNil(method) {
		return "", motmedelErrors.NewWithTrace(jwtErrors.ErrNilMethod)
	}

	token := jwt.NewWithClaims(method, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", motmedelErrors.NewWithTrace(fmt.Errorf("token signed string: %w", err), token)
	}

	return signedToken, nil
}
