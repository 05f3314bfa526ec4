package service

import "errors"

// Error taxonomy for the notification surface. Persistence failures are hard
// errors returned to the producer; transport failures never are, they degrade
// to the polling path.
var (
	// ErrInvalidArgument rejects bad input before anything is persisted.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound covers both a missing notification and one owned by a
	// different user; ownership is never leaked through a distinct error.
	ErrNotFound = errors.New("notification not found")
	// ErrStoreUnavailable wraps persistence-layer failures so producers can
	// decide whether to retry.
	ErrStoreUnavailable = errors.New("notification store unavailable")
)
