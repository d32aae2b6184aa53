package errors

import "errors"

var (
	ErrNotFound = errors.New("session not found")

	ErrHallNotFound = errors.New("hall not found")

	ErrInvalidID = errors.New("invalid session ID format")

	// ErrInvalidInterval marks a proposed [start, end) window with start >= end.
	ErrInvalidInterval = errors.New("invalid time interval")
)
