package overrides

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-overrides/internal/registry"
)

// File and directory names under the storage base directory.
const (
	OverridesFileName = "overrides.yaml"
	OptionsFileName   = "options.yaml"
	BackupsDirName    = "backups"

	dirPermissions  = 0750
	filePermissions = 0600
)

// Paths resolves the storage layout below a base directory.
type Paths struct {
	BaseDir string
}

// Overrides returns the canonical override file path.
func (p Paths) Overrides() string { return filepath.Join(p.BaseDir, OverridesFileName) }

// Options returns the persisted options file path.
func (p Paths) Options() string { return filepath.Join(p.BaseDir, OptionsFileName) }

// Backups returns the backup directory.
func (p Paths) Backups() string { return filepath.Join(p.BaseDir, BackupsDirName) }

// Resolve maps a user-supplied path onto the storage layout. An empty path
// is the canonical file. Other paths are relative to the base directory and
// must stay below it; absolute paths, paths that climb out with "..", and the
// options file are rejected with ErrInvalidPath.
func (p Paths) Resolve(path string) (string, error) {
	if path == "" {
		return p.Overrides(), nil
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: %q must be relative to the storage directory", ErrInvalidPath, path)
	}

	full := filepath.Join(p.BaseDir, path)
	rel, err := filepath.Rel(filepath.Clean(p.BaseDir), full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the storage directory", ErrInvalidPath, path)
	}
	if full == filepath.Clean(p.Options()) {
		return "", fmt.Errorf("%w: %q is the options file", ErrInvalidPath, path)
	}
	return full, nil
}

// Ensure creates the base and backup directories.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.Backups(), dirPermissions); err != nil {
		return fmt.Errorf("creating storage directories: %w", err)
	}
	return nil
}

// rawRecord accepts every field spelling found in override files written by
// earlier releases.
type rawRecord struct {
	FriendlyName *string `yaml:"friendly_name"`
	Name         *string `yaml:"name"`
	Enabled      *bool   `yaml:"enabled"`
	Disabled     *bool   `yaml:"disabled"`
	Visible      *bool   `yaml:"visible"`
	Hidden       *bool   `yaml:"hidden"`
	Icon         *string `yaml:"icon"`
	Area         *string `yaml:"area"`
	AreaID       *string `yaml:"area_id"`
}

func (r rawRecord) normalize() Record {
	rec := Record{
		FriendlyName: r.FriendlyName,
		Enabled:      r.Enabled,
		Visible:      r.Visible,
		Icon:         r.Icon,
		Area:         r.Area,
	}
	if rec.FriendlyName == nil {
		rec.FriendlyName = r.Name
	}
	if rec.Enabled == nil && r.Disabled != nil {
		rec.Enabled = registry.Ptr(!*r.Disabled)
	}
	if rec.Visible == nil && r.Hidden != nil {
		rec.Visible = registry.Ptr(!*r.Hidden)
	}
	if rec.Area == nil {
		rec.Area = r.AreaID
	}
	return rec
}

// ParseStore decodes an override document.
//
// The canonical layout is a flat mapping of entity ID to record; top-level
// keys that are not entity IDs are ignored. Two wrapped layouts are also
// accepted: an envelope with an "entities" mapping (alongside "version" and
// "generated_at") and a legacy "entity_overrides" block. Inside a wrapper
// every key must be a valid entity ID.
//
// An empty document yields an empty store. Any decode or validation problem
// returns an error wrapping ErrMalformedStore.
func ParseStore(data []byte) (Store, error) {
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedStore, err)
	}

	if node, ok := wrapped(top); ok {
		var inner map[string]yaml.Node
		if err := node.Decode(&inner); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedStore, err)
		}
		return decodeRecords(inner, true)
	}
	return decodeRecords(top, false)
}

// wrapped returns the records node of an envelope or legacy document.
func wrapped(top map[string]yaml.Node) (yaml.Node, bool) {
	if node, ok := top["entity_overrides"]; ok {
		return node, true
	}
	if node, ok := top["entities"]; ok {
		_, hasVersion := top["version"]
		if hasVersion || len(top) == 1 {
			return node, true
		}
	}
	return yaml.Node{}, false
}

func decodeRecords(nodes map[string]yaml.Node, strictKeys bool) (Store, error) {
	store := make(Store, len(nodes))
	for id, node := range nodes {
		if err := registry.ValidateEntityID(id); err != nil {
			if strictKeys {
				return nil, fmt.Errorf("%w: %w", ErrMalformedStore, err)
			}
			continue
		}

		var raw rawRecord
		if node.Kind != yaml.ScalarNode || node.Tag != "!!null" {
			if node.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: %s: record must be a mapping (line %d)", ErrMalformedStore, id, node.Line)
			}
			if err := node.Decode(&raw); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrMalformedStore, id, err)
			}
		}
		store[id] = raw.normalize()
	}
	return store, nil
}

// MarshalStore encodes a store in the canonical flat layout, keys sorted.
func MarshalStore(s Store) ([]byte, error) {
	if len(s) == 0 {
		return []byte("{}\n"), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]Record(s)); err != nil {
		return nil, fmt.Errorf("encoding override store: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding override store: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadStore reads and parses an override file. A missing file is reported
// through found=false with a nil error.
func LoadStore(path string) (store Store, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Store{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}

	store, err = ParseStore(data)
	if err != nil {
		return nil, true, fmt.Errorf("parsing %s: %w", path, err)
	}
	return store, true, nil
}

// SaveStore writes a store to path atomically.
func SaveStore(path string, s Store) error {
	data, err := MarshalStore(s)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file next to path and renames it into
// place, so readers see either the old or the new content. Failures wrap
// ErrWriteFailed.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrWriteFailed, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("%w: writing %s: %w", ErrWriteFailed, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("%w: syncing %s: %w", ErrWriteFailed, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrWriteFailed, path, err)
	}
	if err := os.Chmod(tmpPath, filePermissions); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrWriteFailed, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming into %s: %w", ErrWriteFailed, path, err)
	}
	return nil
}
