package errors

import "errors"

var ErrNotFound = errors.New("unit not found")
