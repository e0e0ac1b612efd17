package domain

import "errors"

// ErrInvalidInput is returned when a value fails validation.
var ErrInvalidInput = errors.New("invalid input")
