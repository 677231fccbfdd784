// Package common defines shared constants and sentinel errors used across
// the sync engine layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Pool errors: no profile could be reserved or provisioned.
	ErrAllocationFailure = errors.New("profile allocation failure")

	// Challenge gate errors: the solve-submit loop exhausted its attempt
	// ceiling without passing the CAPTCHA.
	ErrChallengeSolveFailure = errors.New("challenge solve failure")

	// Browser errors: an element-readiness wait exceeded its deadline.
	ErrExtractionTimeout = errors.New("extraction timeout")

	// Persistence errors: a write conflicted with already-stored state.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
