// Package database provides SQLite connectivity to the host database that
// holds the live entity registry.
//
// This package manages:
//   - Database connection with WAL mode and foreign keys
//   - Forward-only schema migrations read from an fs.FS
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and must be
// idempotent (CREATE TABLE IF NOT EXISTS) because the host may already own
// the tables.
package database
