package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")

	// ErrConflict is returned when a write was based on a stale version of a record.
	ErrConflict = errors.New("conflict")

	// ErrPersistence marks a failed record store call. The attempted mutation
	// was not applied and the operation may be retried.
	ErrPersistence = errors.New("persistence failure")
)
