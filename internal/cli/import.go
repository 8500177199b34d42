package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
)

func newImportCmd(opts *globalOptions, stdout, stderr io.Writer, version string) *cobra.Command {
	var (
		replace bool
		strict  bool
		path    string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Apply overrides.yaml to the entity registry",
		Long: `import applies the stored overrides to the entity registry.

In the default merge mode only the fields present in the file are written.
With --replace, fields absent from a record are reset to the registry defaults
(the area is never reset by omission).`,
		Example: `  entity-overrides import
  entity-overrides import --replace
  entity-overrides import --path backups/overrides-20260301-120000.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, stderr, version)
			if err != nil {
				return err
			}
			defer a.Close()

			req := overrides.DefaultImportRequest()
			req.Merge = !replace
			req.StrictEntities = strict
			req.Path = path

			result, err := a.svc.Import(overrides.WithSource(cmd.Context(), overrides.SourceCLI), req)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(stdout, result)
			}

			if result.Missing {
				printWarning(stdout, "No overrides file at "+result.Path+", nothing imported")
				return nil
			}
			printSuccess(stdout, fmt.Sprintf("Imported %s", result.Path))
			printLabelValue(stdout, "updated", result.Updated)
			printLabelValue(stdout, "skipped", result.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "reset fields absent from a record instead of merging")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail before writing if the file names unknown entities")
	cmd.Flags().StringVar(&path, "path", "", "read this file instead of overrides.yaml (relative to the base dir)")

	return cmd
}
