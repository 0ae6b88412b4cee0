package errors

import "errors"

var (
	ErrEmptyRange   = errors.New("stay range is empty")
	ErrRangeTooLong = errors.New("stay range is too long")
)
