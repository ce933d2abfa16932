package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zetareason/reasonbench/internal/reporting"
)

func newReportCommand() *cobra.Command {
	var (
		asHTML     bool
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "report <experiment-id>",
		Short: "Generate a report from a stored experiment",
		Long: `Generate a markdown report from a stored experiment.

With --html the markdown is rendered into a standalone HTML document.
Output goes to stdout unless -o is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			exp, err := store.Load(args[0])
			if err != nil {
				return err
			}

			out := reporting.Markdown(exp.Name, exp.Dataset, exp.CreatedAt, exp.Results)
			if asHTML {
				out, err = reporting.HTML(out)
				if err != nil {
					return err
				}
			}

			if reportPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			}
			if err := os.WriteFile(reportPath, []byte(out), 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", reportPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asHTML, "html", false, "Render the report as HTML")
	cmd.Flags().StringVarP(&reportPath, "output", "o", "", "Write the report to a file")

	return cmd
}
