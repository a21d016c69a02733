// Package common defines shared constants and sentinel errors used across
// client and server layers of agencysync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Transport-level errors. ErrUnavailable covers every condition that is
	// expected to heal by itself (offline, timeouts, server restarts).
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrRejected is returned when the remote store refused a payload
	// (validation failure, conflict). Retrying the same payload will not help.
	ErrRejected = errors.New("rejected by remote store")

	// Validation errors.
	ErrValidation = errors.New("validation error")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
