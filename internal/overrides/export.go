package overrides

import (
	"context"
	"fmt"
	"os"

	"github.com/nerrad567/gray-logic-overrides/internal/registry"
)

// ExportRequest holds the options of a single export run.
//
// Decode request bodies on top of DefaultExportRequest so omitted fields keep
// their defaults.
type ExportRequest struct {
	// IncludeDomains is a case-insensitive domain allow-list. Empty falls
	// back to the configured export domains, and then to every domain.
	IncludeDomains []string `json:"include_domains,omitempty" yaml:"include_domains,omitempty"`

	// OnlyOverridden drops entities without deviations. Nil uses the
	// export_all_entities option.
	OnlyOverridden *bool `json:"only_overridden,omitempty" yaml:"only_overridden,omitempty"`

	// WriteOverrides writes the canonical (or Path) file.
	WriteOverrides bool `json:"write_overrides" yaml:"write_overrides"`

	// WriteBackup writes a timestamped backup and prunes old ones.
	WriteBackup bool `json:"write_backup" yaml:"write_backup"`

	// Path replaces the canonical file location. Relative paths resolve
	// under the base directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// DefaultExportRequest returns a request that writes both files.
func DefaultExportRequest() ExportRequest {
	return ExportRequest{WriteOverrides: true, WriteBackup: true}
}

// ExportResult reports what an export run did.
type ExportResult struct {
	Entities      int      `json:"entities"`
	OverridesPath string   `json:"overrides_path,omitempty"`
	BackupPath    string   `json:"backup_path,omitempty"`
	Pruned        []string `json:"pruned,omitempty"`
}

// Exporter writes registry state to the override store and backups.
type Exporter struct {
	Registry registry.Adapter
	Paths    Paths
	Clock    Clock

	// Retention is the number of backups kept; <= 0 keeps all.
	Retention int

	// OnlyOverridden is used when a request leaves OnlyOverridden unset.
	OnlyOverridden bool

	Logger Logger
}

// Export reads the registry, builds a store and writes it.
//
// The canonical file is replaced atomically, so a failed write leaves the
// previous content intact. A backup failure is returned after the canonical
// file has been written. Pruning failures are only logged.
//
// Returns:
//   - *ExportResult: counts and written paths
//   - error: ErrInvalidPath, registry errors, or ErrWriteFailed
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	logger := loggerOrNoop(e.Logger)
	clock := e.Clock
	if clock == nil {
		clock = RealClock{}
	}

	var target string
	if req.WriteOverrides {
		var err error
		if target, err = e.Paths.Resolve(req.Path); err != nil {
			return nil, err
		}
	}

	entries, err := e.Registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	onlyOverridden := e.OnlyOverridden
	if req.OnlyOverridden != nil {
		onlyOverridden = *req.OnlyOverridden
	}
	store := BuildStore(entries, req.IncludeDomains, onlyOverridden)

	data, err := MarshalStore(store)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Entities: len(store)}

	if req.WriteOverrides {
		if err := atomicWrite(target, data); err != nil {
			return nil, err
		}
		result.OverridesPath = target
	}

	if req.WriteBackup {
		path, err := reserveBackup(e.Paths.Backups(), clock.Now())
		if err != nil {
			return result, err
		}
		if err := atomicWrite(path, data); err != nil {
			os.Remove(path) //nolint:errcheck // Drop the empty placeholder
			return result, err
		}
		result.BackupPath = path

		pruned, err := PruneBackups(e.Paths.Backups(), e.Retention, logger)
		if err != nil {
			logger.Warn("failed to prune backups", "error", err)
		}
		result.Pruned = pruned
	}

	logger.Info("overrides exported",
		"entities", result.Entities,
		"path", result.OverridesPath,
		"backup", result.BackupPath,
		"pruned", len(result.Pruned),
	)
	return result, nil
}
