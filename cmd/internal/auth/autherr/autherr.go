// Package autherr defines the client-facing error taxonomy of the auth surface.
//
// Every failure that reaches an HTTP client is an *Error carrying a stable
// machine code, a human message and the HTTP status it maps to.
package autherr

import (
	"errors"
	"net/http"
)

// Error is a classified auth failure.
// Code is stable and safe to branch on; Message is for humans only.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches on Code so a re-worded copy still satisfies errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e with a different message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// New builds an ad-hoc classified error.
func New(code, msg string, status int) *Error {
	return &Error{Code: code, Message: msg, Status: status}
}

// Registration and credential validation.
var (
	ErrMissingFields    = New("MISSING_FIELDS", "All fields are required", http.StatusBadRequest)
	ErrWeakPassword     = New("WEAK_PASSWORD", "Password must be at least 6 characters long", http.StatusBadRequest)
	ErrPasswordMismatch = New("PASSWORD_MISMATCH", "Passwords do not match", http.StatusBadRequest)
	ErrInvalidEmail     = New("INVALID_EMAIL", "Please provide a valid email address", http.StatusBadRequest)
	ErrInvalidUsername  = New("INVALID_USERNAME", "Username must be at least 3 characters long", http.StatusBadRequest)
	ErrEmailExists      = New("EMAIL_EXISTS", "An account with this email already exists", http.StatusBadRequest)
	ErrUsernameExists   = New("USERNAME_EXISTS", "This username is already taken", http.StatusBadRequest)
	ErrInvalidPassword  = New("INVALID_PASSWORD", "Current password is incorrect", http.StatusBadRequest)
)

// Authentication.
var (
	ErrInvalidCredentials  = New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrMissingToken        = New("MISSING_TOKEN", "Access token is required", http.StatusUnauthorized)
	ErrInvalidToken        = New("INVALID_TOKEN", "Invalid access token", http.StatusUnauthorized)
	ErrTokenExpired        = New("TOKEN_EXPIRED", "Access token has expired", http.StatusUnauthorized)
	ErrMissingRefreshToken = New("MISSING_REFRESH_TOKEN", "Refresh token is required", http.StatusBadRequest)
	ErrInvalidRefreshToken = New("INVALID_REFRESH_TOKEN", "Invalid or expired refresh token", http.StatusUnauthorized)
	ErrUserNotFound        = New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
)

// Transport and admission.
var (
	ErrInvalidJSON          = New("INVALID_JSON", "Invalid request body", http.StatusBadRequest)
	ErrRateLimitExceeded    = New("RATE_LIMIT_EXCEEDED", "Too many requests, please try again later", http.StatusTooManyRequests)
	ErrRateLimitUnavailable = New("RATE_LIMIT_UNAVAILABLE", "Service temporarily unavailable, please retry later", http.StatusServiceUnavailable)
	ErrInternal             = New("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
)

// As extracts the classified error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// From classifies err; anything unclassified becomes ErrInternal.
func From(err error) *Error {
	if e, ok := As(err); ok {
		return e
	}
	return ErrInternal
}
