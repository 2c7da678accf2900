package session

import "errors"

var (
	// ErrTokenMalformed is returned when a token cannot be decoded at all.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenExpired is returned when the signature is valid but the expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for signature, algorithm, issuer, kind or subject failures.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
