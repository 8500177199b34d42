// Package migrations embeds the database schema into the binary.
//
// The entity registry tables are normally owned by the host; their migration
// only creates them when they are missing (standalone installs and tests).
// The run history table belongs to the overrides service.
package migrations

import "embed"

// FS holds the *.sql migration files at its root.
//
//go:embed *.sql
var FS embed.FS
