package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
)

func newOptionsCmd(opts *globalOptions, stdout, stderr io.Writer, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Show the persisted options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, stderr, version)
			if err != nil {
				return err
			}
			defer a.Close()

			current := a.svc.Options()
			if opts.jsonOutput {
				return printJSON(stdout, current)
			}
			printOptions(stdout, current)
			return nil
		},
	}

	cmd.AddCommand(newOptionsSetCmd(opts, stdout, stderr, version))
	return cmd
}

func newOptionsSetCmd(opts *globalOptions, stdout, stderr io.Writer, version string) *cobra.Command {
	var (
		retention  int
		autoImport bool
		exportAll  bool
		domains    []string
		exportNow  bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change options; flags not given keep their value",
		Example: `  entity-overrides options set --retention 14
  entity-overrides options set --domains light,switch --export-now
  entity-overrides options set --domains ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, stderr, version)
			if err != nil {
				return err
			}
			defer a.Close()

			next := a.svc.Options()
			flags := cmd.Flags()
			if flags.Changed("retention") {
				next.BackupRetention = retention
			}
			if flags.Changed("auto-import") {
				next.AutoImportOnStartup = autoImport
			}
			if flags.Changed("export-all") {
				next.ExportAllEntities = exportAll
			}
			if flags.Changed("domains") {
				next.ExportDomains = domains
			}

			result, err := a.svc.UpdateOptions(overrides.WithSource(cmd.Context(), overrides.SourceCLI), next, exportNow)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(stdout, map[string]any{"options": a.svc.Options(), "export": result})
			}

			printSuccess(stdout, "Options saved")
			printOptions(stdout, a.svc.Options())
			if result != nil {
				printSuccess(stdout, fmt.Sprintf("Exported %d entities", result.Entities))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&retention, "retention", 0, "number of backups to keep (0 disables pruning)")
	cmd.Flags().BoolVar(&autoImport, "auto-import", false, "import overrides.yaml when the service starts")
	cmd.Flags().BoolVar(&exportAll, "export-all", true, "include entities without overrides in exports")
	cmd.Flags().StringSliceVar(&domains, "domains", nil, "domains to export (empty for all)")
	cmd.Flags().BoolVar(&exportNow, "export-now", false, "run an export with the new options")

	return cmd
}

func printOptions(w io.Writer, o overrides.Options) {
	printHeader(w, "Options")
	domains := "all"
	if len(o.ExportDomains) > 0 {
		domains = strings.Join(o.ExportDomains, ", ")
	}
	printLabelValue(w, "auto_import_on_startup", o.AutoImportOnStartup)
	printLabelValue(w, "backup_retention", o.BackupRetention)
	printLabelValue(w, "export_all_entities", o.ExportAllEntities)
	printLabelValue(w, "export_domains", domains)
}
