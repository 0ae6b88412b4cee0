package errors

import "errors"

var (
	ErrNotFound = errors.New("parameter not found")

	ErrUnknownParameter = errors.New("unknown parameter")
	ErrInvalidValue     = errors.New("invalid parameter value")
)
