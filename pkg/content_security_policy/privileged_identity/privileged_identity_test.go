package privileged_identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	motmedelJwt "github.com/Motmedel/csp_go/pkg/jwt"
	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("privileged-test-key")

func sign(t *testing.T, claims jwt.MapClaims, key []byte) string {
	t.Helper()

	token, err := motmedelJwt.Sign(claims, key, jwt.SigningMethodHS256)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestJwtChecker(t *testing.T) {
	t.Parallel()

	superuser := sign(t, jwt.MapClaims{"sub": "alice", "superuser": true}, testKey)
	regular := sign(t, jwt.MapClaims{"sub": "bob", "superuser": false}, testKey)
	stringClaim := sign(t, jwt.MapClaims{"sub": "carol", "superuser": "true"}, testKey)
	forged := sign(t, jwt.MapClaims{"sub": "mallory", "superuser": true}, []byte("other-key"))

	testCases := []struct {
		name     string
		prepare  func(*http.Request)
		expected bool
	}{
		{name: "anonymous", prepare: func(*http.Request) {}},
		{
			name:     "bearer superuser",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+superuser) },
			expected: true,
		},
		{
			name:     "lowercase scheme",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "bearer "+superuser) },
			expected: true,
		},
		{
			name:     "cookie superuser",
			prepare:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: superuser}) },
			expected: true,
		},
		{
			name:    "regular user",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+regular) },
		},
		{
			name:    "non-boolean claim",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+stringClaim) },
		},
		{
			name:    "forged token",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) },
		},
		{
			name:    "basic auth",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic "+superuser) },
		},
		{
			name:    "garbage cookie",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "garbage"}) },
		},
	}

	checker := NewJwtChecker(testKey, "")

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			testCase.prepare(request)

			if got := checker.IsPrivileged(request); got != testCase.expected {
				t.Errorf("expected %v, got %v", testCase.expected, got)
			}
		})
	}
}

func TestJwtCheckerCustomClaim(t *testing.T) {
	t.Parallel()

	checker := &JwtChecker{Key: testKey, ClaimName: "csp_preview"}
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"csp_preview": true}, testKey))

	if !checker.IsPrivileged(request) {
		t.Error("expected the custom claim to grant privilege")
	}
}

func TestJwtCheckerWithoutKey(t *testing.T) {
	t.Parallel()

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"superuser": true}, testKey))

	if NewJwtChecker(nil, "").IsPrivileged(request) {
		t.Error("expected no privilege without a key")
	}

	var checker *JwtChecker
	if checker.IsPrivileged(request) {
		t.Error("expected a nil checker to grant no privilege")
	}
}
