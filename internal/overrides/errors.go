package overrides

import "errors"

// Domain errors for the overrides package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, overrides.ErrMalformedStore) {
//	    // nothing was applied
//	}
var (
	// ErrMalformedStore is returned when an override file cannot be parsed
	// or contains invalid records. No registry writes happen in that case.
	ErrMalformedStore = errors.New("overrides: malformed store")

	// ErrWriteFailed is returned when the override file or a backup cannot
	// be written. The previous canonical file is left in place.
	ErrWriteFailed = errors.New("overrides: write failed")

	// ErrUnknownEntity is returned by strict imports that reference an
	// entity the registry does not know.
	ErrUnknownEntity = errors.New("overrides: unknown entity")

	// ErrInvalidPath is returned when a requested file path is absolute or
	// resolves outside the storage directory.
	ErrInvalidPath = errors.New("overrides: invalid path")

	// ErrInvalidOptions is returned when service options fail validation.
	ErrInvalidOptions = errors.New("overrides: invalid options")
)
