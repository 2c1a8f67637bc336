package session

import "errors"

var (
	// ErrInvalidSignal indicates an activity code outside the closed set.
	ErrInvalidSignal = errors.New("invalid signal")
	// ErrMissingIdentity indicates a signal without a group or person id.
	ErrMissingIdentity = errors.New("missing identity")
	// ErrPersistence indicates a store or log write that did not complete.
	ErrPersistence = errors.New("persistence failure")
)
