package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// Resolver turns an opaque credential into an identity. The polling core
// only ever sees this function, never the token mechanics behind it.
type Resolver func(credential string) (string, error)

// NewResolver verifies HS256 session tokens and resolves the identity from
// the userId claim, falling back to the standard subject.
func NewResolver(secret []byte) Resolver {
	return func(credential string) (string, error) {
		if credential == "" {
			return "", ErrInvalidToken
		}
		tok, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tok.Valid {
			return "", ErrInvalidToken
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return "", ErrInvalidToken
		}
		if id, _ := claims["userId"].(string); id != "" {
			return id, nil
		}
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			return sub, nil
		}
		return "", ErrInvalidToken
	}
}

// TokenFromCookieHeader pulls the session token out of a raw Cookie header,
// the one place a websocket handshake can carry it.
func TokenFromCookieHeader(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "token=") {
			return strings.TrimPrefix(part, "token=")
		}
	}
	return ""
}
