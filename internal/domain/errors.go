package domain

import "errors"

// ErrValidation is returned when a domain entity fails validation.
// It is usually wrapped with the field that was rejected.
var ErrValidation = errors.New("validation failed")
