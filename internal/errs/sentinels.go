// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated indicates bad credentials or a token that cannot be resolved to a user.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates a valid identity without the rights for the requested resource.
	ErrForbidden = errors.New("forbidden")

	// ErrExpired indicates a token whose expiration is in the past.
	ErrExpired = errors.New("expired")

	// ErrEmptyInput indicates statistics requested over zero samples.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmptyWindow indicates a trend window that matched no sample.
	ErrEmptyWindow = errors.New("empty window")

	// ErrInvalidArgument indicates a malformed argument (duration unit, window, bounds).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., user names taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates a missing server-side prerequisite (e.g., no signature yet).
	ErrUnavailable = errors.New("unavailable")
)
