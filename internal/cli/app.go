package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nerrad567/gray-logic-overrides/internal/audit"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
	"github.com/nerrad567/gray-logic-overrides/internal/registry"
	"github.com/nerrad567/gray-logic-overrides/migrations"
)

// app bundles what every command needs: configuration, a logger, the open
// registry database and the overrides service on top of it.
type app struct {
	cfg *config.Config
	log *logging.Logger
	db  *database.DB
	svc *overrides.Service
}

// loadConfig loads the configuration file. A missing file at the default
// location falls back to the built-in defaults; an explicit path must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// openApp loads the configuration and opens the registry and the service.
// Logs go to logOut so command results on stdout stay machine-readable.
func openApp(ctx context.Context, opts *globalOptions, logOut io.Writer, version string) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	log := logging.NewWithWriter(cfg.Logging, version, logOut).With("site_id", cfg.Site.ID)
	return openAppWithConfig(ctx, cfg, log)
}

// openAppWithConfig opens the database, applies migrations when configured,
// and creates the overrides service.
func openAppWithConfig(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Debug("database connected", "path", cfg.Database.Path)

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close() //nolint:errcheck // Already returning the migration error
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	svc, err := overrides.NewService(registry.NewSQLiteAdapter(db.DB), overrides.Config{
		Paths:           overrides.Paths{BaseDir: cfg.Overrides.BaseDir},
		Defaults:        optionsFromConfig(cfg.Overrides),
		ExportOnStartup: cfg.Overrides.ExportOnStartup,
	})
	if err != nil {
		db.Close() //nolint:errcheck // Already returning the service error
		return nil, fmt.Errorf("creating overrides service: %w", err)
	}
	svc.SetLogger(log.With("component", "overrides"))
	// The run history table comes from the same migrations.
	if cfg.Database.Migrate {
		svc.SetHistory(audit.NewSQLiteRepository(db.DB))
	}

	return &app{cfg: cfg, log: log, db: db, svc: svc}, nil
}

// Close releases the database.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}

// optionsFromConfig maps the config file section onto the option defaults.
func optionsFromConfig(c config.OverridesConfig) overrides.Options {
	return overrides.Options{
		AutoImportOnStartup: c.AutoImportOnStartup,
		BackupRetention:     c.BackupRetention,
		ExportAllEntities:   c.ExportAllEntities,
		ExportDomains:       append([]string(nil), c.ExportDomains...),
	}
}
