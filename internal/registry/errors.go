package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, registry.ErrEntityNotFound) {
//	    // skip unknown entity
//	}
var (
	// ErrEntityNotFound is returned when an entity ID is not in the registry.
	ErrEntityNotFound = errors.New("registry: entity not found")

	// ErrAreaNotFound is returned when an area ID does not exist.
	ErrAreaNotFound = errors.New("registry: area not found")

	// ErrInvalidEntityID is returned when an identifier is not of the form domain.object_id.
	ErrInvalidEntityID = errors.New("registry: invalid entity id")
)
