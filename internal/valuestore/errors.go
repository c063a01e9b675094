package valuestore

import "errors"

// Domain errors for the value store package.
var (
	// ErrNotFound is returned when a key has no persisted value.
	ErrNotFound = errors.New("valuestore: not found")

	// ErrInvalidKey is returned when a key is missing its property name.
	ErrInvalidKey = errors.New("valuestore: invalid key")

	// ErrEncodingFailed is returned when a value cannot be marshalled for
	// persistence.
	ErrEncodingFailed = errors.New("valuestore: encoding failed")
)
