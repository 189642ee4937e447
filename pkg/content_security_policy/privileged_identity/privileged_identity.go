// Package privileged_identity decides whether a request comes from a
// privileged user. Privileged users receive the policy even when it is not
// deployed, which lets them try a policy before everyone else gets it.
package privileged_identity

import (
	"log/slog"
	"net/http"
	"strings"

	motmedelJwt "github.com/Motmedel/csp_go/pkg/jwt"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
)

const (
	DefaultCookieName = "session"
	DefaultClaimName  = "superuser"
)

type Checker interface {
	IsPrivileged(request *http.Request) bool
}

type CheckerFunc func(request *http.Request) bool

func (f CheckerFunc) IsPrivileged(request *http.Request) bool {
	return f(request)
}

// JwtChecker treats a request as privileged when it carries a valid HMAC
// token whose boolean claim is true.
type JwtChecker struct {
	Key        []byte
	CookieName string
	ClaimName  string
	Logger     *slog.Logger
}

func NewJwtChecker(key []byte, cookieName string) *JwtChecker {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &JwtChecker{Key: key, CookieName: cookieName, ClaimName: DefaultClaimName}
}

func (checker *JwtChecker) tokenString(request *http.Request) string {
	if authorization := request.Header.Get("Authorization"); authorization != "" {
		scheme, token, found := strings.Cut(authorization, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if checker.CookieName != "" {
		if cookie, err := request.Cookie(checker.CookieName); err == nil {
			return cookie.Value
		}
	}

	return ""
}

func (checker *JwtChecker) IsPrivileged(request *http.Request) bool {
	if checker == nil || request == nil || len(checker.Key) == 0 {
		return false
	}

	tokenString := checker.tokenString(request)
	if tokenString == "" {
		return false
	}

	claims, err := motmedelJwt.Validate(tokenString, checker.Key)
	if err != nil {
		motmedelLogError.LogDebug("A token could not be validated.", err, checker.Logger)
		return false
	}

	claimName := checker.ClaimName
	if claimName == "" {
		claimName = DefaultClaimName
	}

	privileged, _ := claims[claimName].(bool)
	return privileged
}
