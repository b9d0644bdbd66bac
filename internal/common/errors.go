// Package common defines shared constants and sentinel errors used across
// the client and server halves of fieldsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport-level errors. ErrUnavailable means the request never produced
	// a response; retrying is always safe because no state was mutated.
	ErrUnavailable = errors.New("server unavailable")

	// ErrSessionExpired is the 401/403 surface. The sync layer never retries
	// it; the caller decides whether to re-authenticate.
	ErrSessionExpired = errors.New("session expired")

	// ErrSyncInFlight is returned when a second sync cycle is requested while
	// one is already running.
	ErrSyncInFlight = errors.New("sync already in flight")

	// Auth errors.
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid login/password")

	// ErrForbidden marks an operation the current role is not allowed to
	// perform.
	ErrForbidden = errors.New("forbidden")

	// ErrVersionConflict marks a record the server refused as stale.
	ErrVersionConflict = errors.New("version conflict")
)
