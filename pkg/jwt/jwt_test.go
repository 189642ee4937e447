package jwt

import (
	"errors"
	"testing"
	"time"

	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	jwtErrors "github.com/Motmedel/csp_go/pkg/jwt/errors"
	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("test-signing-key")

func TestValidate(t *testing.T) {
	t.Parallel()

	valid, err := Sign(jwt.MapClaims{"sub": "admin", "superuser": true}, testKey, jwt.SigningMethodHS256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	expired, err := Sign(
		jwt.MapClaims{"sub": "admin", "exp": time.Now().Add(-time.Hour).Unix()},
		testKey,
		jwt.SigningMethodHS256,
	)
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}

	otherKey, err := Sign(jwt.MapClaims{"sub": "admin"}, []byte("other-key"), jwt.SigningMethodHS256)
	if err != nil {
		t.Fatalf("sign other key: %v", err)
	}

	testCases := []struct {
		name      string
		token     string
		key       []byte
		wantErr   error
		wantClaim any
	}{
		{name: "valid", token: valid, key: testKey, wantClaim: true},
		{name: "expired", token: expired, key: testKey, wantErr: motmedelErrors.ErrValidationError},
		{name: "wrong key", token: otherKey, key: testKey, wantErr: motmedelErrors.ErrValidationError},
		{name: "garbage", token: "not-a-token", key: testKey, wantErr: motmedelErrors.ErrValidationError},
		{name: "empty token", token: "", key: testKey, wantErr: jwtErrors.ErrEmptyTokenString},
		{name: "empty key", token: valid, key: nil, wantErr: jwtErrors.ErrEmptySigningKey},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			claims, err := Validate(testCase.token, testCase.key)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("expected error %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if claims["superuser"] != testCase.wantClaim {
				t.Errorf("expected superuser claim %v, got %v", testCase.wantClaim, claims["superuser"])
			}
		})
	}
}

func TestSign_NilMethod(t *testing.T) {
	t.Parallel()

	if _, err := Sign(jwt.MapClaims{}, testKey, nil); !errors.Is(err, jwtErrors.ErrNilMethod) {
		t.Errorf("expected nil method error, got %v", err)
	}
}
