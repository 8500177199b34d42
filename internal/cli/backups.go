package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBackupsCmd(opts *globalOptions, stdout, stderr io.Writer, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List the retained backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, stderr, version)
			if err != nil {
				return err
			}
			defer a.Close()

			backups, err := a.svc.Backups()
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(stdout, backups)
			}
			if len(backups) == 0 {
				printDim(stdout, "no backups")
				return nil
			}

			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCREATED\tSIZE")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", b.Name, b.CreatedAt.Format("2006-01-02 15:04:05"), b.Size)
			}
			return tw.Flush()
		},
	}
}

func newDomainsCmd(opts *globalOptions, stdout, stderr io.Writer, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the entity domains present in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, stderr, version)
			if err != nil {
				return err
			}
			defer a.Close()

			domains, err := a.svc.Domains(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				if domains == nil {
					domains = []string{}
				}
				return printJSON(stdout, domains)
			}
			for _, d := range domains {
				fmt.Fprintln(stdout, d)
			}
			return nil
		},
	}
}
