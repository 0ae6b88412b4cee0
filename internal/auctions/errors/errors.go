package errors

import "errors"

var (
	ErrNotFound = errors.New("auction not found")

	// ErrNotActive means a guarded update found the auction already finished.
	ErrNotActive = errors.New("auction is not active")
)
