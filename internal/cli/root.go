package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigPath is used when neither --config nor GRAYLOGIC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	jsonOutput bool
}

// NewRootCmd returns the root cobra command for the entity-overrides CLI.
//
// Parameters:
//   - stdout: destination for command results
//   - stderr: destination for logs and errors
//   - version: build version reported by `version` and in log entries
func NewRootCmd(stdout, stderr io.Writer, version string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "entity-overrides",
		Short: "Export and re-apply entity registry overrides",
		Long: `entity-overrides keeps user customisations of the entity registry
(friendly names, enabled and visible flags, icons and areas) in a YAML file,
so they survive a registry reset and can be edited or moved between installs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", configPathFromEnv(),
		"path to the configuration file (env GRAYLOGIC_CONFIG)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(newServeCmd(opts, version))
	cmd.AddCommand(newExportCmd(opts, stdout, stderr, version))
	cmd.AddCommand(newImportCmd(opts, stdout, stderr, version))
	cmd.AddCommand(newBackupsCmd(opts, stdout, stderr, version))
	cmd.AddCommand(newDomainsCmd(opts, stdout, stderr, version))
	cmd.AddCommand(newOptionsCmd(opts, stdout, stderr, version))
	cmd.AddCommand(newHistoryCmd(opts, stdout, stderr, version))
	cmd.AddCommand(newTokenCmd(opts, stdout))
	cmd.AddCommand(newVersionCmd(stdout, version))

	return cmd
}

// Execute runs the CLI with the process stdio and returns the exit code.
func Execute(ctx context.Context, version string) int {
	root := NewRootCmd(os.Stdout, os.Stderr, version)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// configPathFromEnv returns GRAYLOGIC_CONFIG or the default path.
func configPathFromEnv() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd(stdout io.Writer, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(stdout, version)
		},
	}
}
