package domain

import "errors"

var (
	// ErrStoreUnavailable signals that the vector store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMissingCredential signals a required credential absent from configuration.
	ErrMissingCredential = errors.New("missing credential")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrExternalService signals a failed call to an external API.
	ErrExternalService = errors.New("external service error")
	// ErrValidation signals a malformed request.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidChunking signals a chunker configuration where the window
	// cannot advance (overlap >= size).
	ErrInvalidChunking = errors.New("invalid chunking configuration")
)
