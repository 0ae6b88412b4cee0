package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	// ErrNotPending means a guarded transition found the booking already moved on.
	ErrNotPending = errors.New("booking is not pending")

	ErrHoldReleased = errors.New("booking hold was released")
)
