package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
)

func newExportCmd(opts *globalOptions, stdout, stderr io.Writer, version string) *cobra.Command {
	var (
		domains        []string
		onlyOverridden bool
		noBackup       bool
		backupOnly     bool
		path           string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the registry overrides to overrides.yaml and take a backup",
		Example: `  entity-overrides export
  entity-overrides export --domain light --domain switch
  entity-overrides export --only-overridden --no-backup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noBackup && backupOnly {
				return fmt.Errorf("--no-backup and --backup-only cannot be combined")
			}

			a, err := openApp(cmd.Context(), opts, stderr, version)
			if err != nil {
				return err
			}
			defer a.Close()

			req := overrides.DefaultExportRequest()
			req.IncludeDomains = domains
			req.Path = path
			req.WriteBackup = !noBackup
			req.WriteOverrides = !backupOnly
			if cmd.Flags().Changed("only-overridden") {
				req.OnlyOverridden = &onlyOverridden
			}

			result, err := a.svc.Export(overrides.WithSource(cmd.Context(), overrides.SourceCLI), req)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(stdout, result)
			}

			printSuccess(stdout, fmt.Sprintf("Exported %d entities", result.Entities))
			if result.OverridesPath != "" {
				printLabelValue(stdout, "overrides", result.OverridesPath)
			}
			if result.BackupPath != "" {
				printLabelValue(stdout, "backup", result.BackupPath)
			}
			for _, name := range result.Pruned {
				printDim(stdout, "  pruned "+name)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&domains, "domain", "d", nil,
		"only export these entity domains (repeatable; default: export_domains option)")
	cmd.Flags().BoolVar(&onlyOverridden, "only-overridden", false,
		"omit entities without overrides (default: follows export_all_entities)")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "do not write a timestamped backup")
	cmd.Flags().BoolVar(&backupOnly, "backup-only", false, "write only the backup, leave overrides.yaml untouched")
	cmd.Flags().StringVar(&path, "path", "", "write the canonical file here instead of overrides.yaml")

	return cmd
}
