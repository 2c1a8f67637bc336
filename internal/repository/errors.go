package repository

import "errors"

var (
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicate is returned when an event id is appended twice
	ErrDuplicate = errors.New("duplicate entity")
)
