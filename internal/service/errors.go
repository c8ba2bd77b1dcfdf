package service

import "errors"

// Error kinds exposed to the API layer. Handlers match these with errors.Is;
// anything else is an internal error and must not leak detail to the client.
var (
	// ErrNotFound covers both a missing resource and one owned by another
	// user. The two are deliberately indistinguishable so existence does not
	// leak across ownership boundaries.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates the request collides with existing state, e.g. a
	// duplicate device registration. A sync already in progress is NOT a
	// conflict; it is a successful no-op response.
	ErrConflict = errors.New("conflict")
)
