package domain

import "errors"

var (
	// ErrNotFound is returned by stores and collaborators when the requested
	// record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDocument wraps every document validation failure.
	ErrInvalidDocument = errors.New("invalid document")

	ErrUnknownElementType = errors.New("unknown element type")
)
