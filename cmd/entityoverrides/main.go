// Entity Overrides - registry customisation backup for Gray Logic
//
// This is the main entry point for the entity overrides service and CLI.
// It keeps user customisations of the entity registry (friendly names,
// enabled and visible flags, icons and areas) in a YAML file that survives
// registry resets and can be re-applied on startup.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-overrides/internal/cli"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on Ctrl+C or SIGTERM so serve can shut down gracefully
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, buildVersion())
	cancel()
	os.Exit(code)
}

// buildVersion combines the ldflags values into the reported version string.
func buildVersion() string {
	if commit == "unknown" && date == "unknown" {
		return version
	}
	return version + " (" + commit + ", " + date + ")"
}
