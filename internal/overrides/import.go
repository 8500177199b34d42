package overrides

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-overrides/internal/registry"
)

// ImportRequest holds the options of a single import run.
//
// Decode request bodies on top of DefaultImportRequest so omitted fields keep
// their defaults.
type ImportRequest struct {
	// Path replaces the canonical file location. Relative paths resolve
	// under the base directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Merge applies only the fields present in each record. When false,
	// absent fields are reset to registry defaults.
	Merge bool `json:"merge" yaml:"merge"`

	// StrictEntities aborts the import, before any write, when the file
	// names an entity the registry does not know.
	StrictEntities bool `json:"strict_entities" yaml:"strict_entities"`
}

// DefaultImportRequest returns a merge import of the canonical file.
func DefaultImportRequest() ImportRequest {
	return ImportRequest{Merge: true}
}

// ImportResult reports what an import run did.
type ImportResult struct {
	Path    string `json:"path"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`

	// Missing is true when the file did not exist; nothing was applied.
	Missing bool `json:"missing,omitempty"`

	// EntityIDs lists the entities that were changed.
	EntityIDs []string `json:"entity_ids,omitempty"`
}

// Importer applies an override store onto the registry.
type Importer struct {
	Registry registry.Adapter
	Paths    Paths
	Logger   Logger
}

// Import loads the override file and applies every record.
//
// The whole file is parsed and validated before the first registry write: a
// malformed file (ErrMalformedStore) or, for strict requests, an unknown
// entity (ErrUnknownEntity) leaves the registry untouched. A missing file is
// a no-op reported through ImportResult.Missing.
//
// Records that already match the registry are not written.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	logger := loggerOrNoop(im.Logger)
	path, err := im.Paths.Resolve(req.Path)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{Path: path}

	store, found, err := LoadStore(path)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Info("override file not found, nothing to import", "path", path)
		result.Missing = true
		return result, nil
	}

	entries, err := im.Registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	current := make(map[string]registry.Entry, len(entries))
	for _, e := range entries {
		current[e.EntityID] = e
	}

	var unknown []string
	for _, id := range store.EntityIDs() {
		if _, ok := current[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if req.StrictEntities && len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, strings.Join(unknown, ", "))
	}

	areas, err := im.Registry.Areas(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing areas: %w", err)
	}

	for _, id := range store.EntityIDs() {
		entry, ok := current[id]
		if !ok {
			logger.Warn("skipping unknown entity", "entity_id", id)
			result.Skipped++
			continue
		}

		rec := store[id]
		areaID := resolveArea(rec.Area, areas, id, logger)
		u := planUpdate(rec, req.Merge, entry, areaID)
		if u.IsZero() {
			continue
		}

		if _, err := im.Registry.Update(ctx, id, u); err != nil {
			if errors.Is(err, registry.ErrEntityNotFound) {
				logger.Warn("entity disappeared during import", "entity_id", id)
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("updating %s: %w", id, err)
		}
		result.Updated++
		result.EntityIDs = append(result.EntityIDs, id)
	}

	logger.Info("overrides imported",
		"path", path,
		"merge", req.Merge,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	return result, nil
}

// planUpdate computes the registry change a record asks for, leaving out
// attributes that already hold the wanted value.
//
// In merge mode only present fields are considered. In replace mode an
// absent friendly name, icon, visibility or enabled flag is reset to its
// default. The area is never reset by omission; areaID is nil when the
// record has no area.
func planUpdate(rec Record, merge bool, cur registry.Entry, areaID *string) registry.Update {
	var u registry.Update

	name := rec.FriendlyName
	icon := rec.Icon
	var hidden, disabled *bool
	if rec.Visible != nil {
		hidden = registry.Ptr(!*rec.Visible)
	}
	if rec.Enabled != nil {
		disabled = registry.Ptr(!*rec.Enabled)
	}

	if !merge {
		if name == nil {
			name = registry.Ptr("")
		}
		if icon == nil {
			icon = registry.Ptr("")
		}
		if hidden == nil {
			hidden = registry.Ptr(false)
		}
		if disabled == nil {
			disabled = registry.Ptr(false)
		}
	}

	if name != nil && *name != cur.Name {
		u.Name = name
	}
	if icon != nil && *icon != cur.Icon {
		u.Icon = icon
	}
	if hidden != nil && *hidden != cur.Hidden() {
		u.Hidden = hidden
	}
	if disabled != nil && *disabled != cur.Disabled() {
		u.Disabled = disabled
	}
	if areaID != nil && *areaID != cur.AreaID {
		u.AreaID = areaID
	}
	return u
}

// resolveArea maps a record's area value to an area ID: first by ID, then by
// name (case-insensitive). An empty value clears the assignment, as does a
// value that matches no area.
func resolveArea(value *string, areas []registry.Area, entityID string, logger Logger) *string {
	if value == nil {
		return nil
	}
	want := strings.TrimSpace(*value)
	if want == "" {
		return registry.Ptr("")
	}
	for _, a := range areas {
		if a.ID == want {
			return registry.Ptr(a.ID)
		}
	}
	for _, a := range areas {
		if strings.EqualFold(a.Name, want) {
			return registry.Ptr(a.ID)
		}
	}
	logger.Warn("unknown area, clearing assignment", "entity_id", entityID, "area", want)
	return registry.Ptr("")
}
