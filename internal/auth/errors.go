package auth

import "errors"

var (
	ErrEmptyToken     = errors.New("auth: empty token")
	ErrEmptySecret    = errors.New("auth: empty secret")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrInvalidRole    = errors.New("auth: invalid role")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrMissingSubject = errors.New("auth: missing subject")
)
