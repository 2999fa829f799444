package auth

import (
	"errors"
	"strings"
)

var (
	// ErrMissingAuthHeader indicates that the Authorization header is absent.
	ErrMissingAuthHeader = errors.New("auth: missing auth header")
	// ErrInvalidAuthHeader indicates that the header is not of the form "Bearer <token>".
	ErrInvalidAuthHeader = errors.New("auth: invalid auth header")
)

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidAuthHeader
	}
	return parts[1], nil
}

// Authenticate verifies the bearer token found in authHeader and returns its subject.
func (tm *TokenManager) Authenticate(authHeader string) (string, error) {
	token, err := BearerToken(authHeader)
	if err != nil {
		return "", err
	}
	return tm.ParseToken(token)
}
