package util

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrRecordNotFound = errors.New("homework record not found")
	// ErrConflict is returned by a store when a conditional write loses a race.
	ErrConflict     = errors.New("homework record changed concurrently")
	ErrConcurrency  = errors.New("too many concurrent submissions, retry budget exhausted")
	ErrStore        = errors.New("homework store unavailable")
	ErrStoreTimeout = errors.New("homework store timed out")
)
