package jwt

import "errors"

var (
	ErrMissingSecret  = errors.New("jwt signing secret is required")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrMissingSubject = errors.New("token has no subject")
)
