package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-overrides/internal/audit"
)

func newHistoryCmd(opts *globalOptions, stdout, stderr io.Writer, version string) *cobra.Command {
	var filter audit.Filter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded export and import runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, stderr, version)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.svc.History(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(stdout, result)
			}
			if len(result.Runs) == 0 {
				printDim(stdout, "no runs recorded")
				return nil
			}

			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tOPERATION\tSOURCE\tRESULT")
			for _, r := range result.Runs {
				status := "ok"
				if !r.Success {
					status = "failed: " + r.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Operation, r.Source, status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if result.Total > len(result.Runs) {
				printDim(stdout, fmt.Sprintf("showing %d of %d runs", len(result.Runs), result.Total))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Operation, "operation", "", "only export_overrides or import_overrides runs")
	cmd.Flags().StringVar(&filter.Source, "source", "", "only runs from this source (startup, api, bus, cli, options)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum number of runs to show")

	return cmd
}
