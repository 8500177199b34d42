package registry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ByUser is the hidden_by / disabled_by marker for changes made by the user.
const ByUser = "user"

// Entry is one row of the host's entity registry, limited to the attributes
// the overrides service cares about.
type Entry struct {
	EntityID     string    `json:"entity_id"`
	OriginalName string    `json:"original_name,omitempty"`
	Name         string    `json:"name,omitempty"`
	Icon         string    `json:"icon,omitempty"`
	AreaID       string    `json:"area_id,omitempty"`
	HiddenBy     string    `json:"hidden_by,omitempty"`
	DisabledBy   string    `json:"disabled_by,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Domain returns the part of the entity ID before the dot.
func (e Entry) Domain() string {
	domain, _, _ := strings.Cut(e.EntityID, ".")
	return domain
}

// Hidden reports whether anything has hidden the entity.
func (e Entry) Hidden() bool { return e.HiddenBy != "" }

// Disabled reports whether anything has disabled the entity.
func (e Entry) Disabled() bool { return e.DisabledBy != "" }

// Area is a named location entities can be assigned to.
type Area struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Update describes a partial change to an entry.
//
// A nil field is left unchanged. A pointer to the zero value clears the
// attribute: an empty Name restores the original name, an empty AreaID
// removes the area assignment, Hidden=false makes the entity visible.
type Update struct {
	Name     *string
	Icon     *string
	AreaID   *string
	Hidden   *bool
	Disabled *bool
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return u.Name == nil && u.Icon == nil && u.AreaID == nil && u.Hidden == nil && u.Disabled == nil
}

// Adapter is the host entity registry as seen by the overrides service.
type Adapter interface {
	// List returns every entity, ordered by entity ID.
	List(ctx context.Context) ([]Entry, error)

	// Get returns a single entity.
	// Returns ErrEntityNotFound if the entity does not exist.
	Get(ctx context.Context, entityID string) (*Entry, error)

	// Update applies a partial change and returns the updated entry.
	// Returns ErrEntityNotFound or ErrAreaNotFound.
	Update(ctx context.Context, entityID string, u Update) (*Entry, error)

	// Areas returns every area, ordered by ID.
	Areas(ctx context.Context) ([]Area, error)
}

// SplitEntityID splits "light.kitchen" into ("light", "kitchen").
// The ID must contain exactly one dot with text on both sides.
func SplitEntityID(entityID string) (domain, objectID string, err error) {
	domain, objectID, ok := strings.Cut(entityID, ".")
	if !ok || domain == "" || objectID == "" || strings.Contains(objectID, ".") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	if strings.ContainsAny(entityID, " \t\n") {
		return "", "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidEntityID, entityID)
	}
	return domain, objectID, nil
}

// ValidateEntityID returns ErrInvalidEntityID unless entityID is domain.object_id.
func ValidateEntityID(entityID string) error {
	_, _, err := SplitEntityID(entityID)
	return err
}

// Ptr returns a pointer to v. It keeps Update literals short.
func Ptr[T any](v T) *T { return &v }
