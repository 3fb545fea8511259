package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/supply-risk/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List persisted runs, or print the rows of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if len(args) == 1 {
			rows, err := st.RunRows(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			formatRunRows(os.Stdout, rows)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBUILT\tROWS\tGROUPS\tDIGEST")
	_, _ = fmt.Fprintln(w, "--\t-----\t----\t------\t------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			r.ID,
			r.BuiltAt.UTC().Format("2006-01-02 15:04:05"),
			r.Rows,
			r.Groups,
			truncate(r.SourceDigest, 12),
		)
	}
	_ = w.Flush()
}

// formatRunRows writes the risk rows of one run, grouped as stored.
func formatRunRows(out io.Writer, rows []model.RiskRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMMODITY\tYEAR\tCOUNTRY\tRISK %")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Commodity, r.Year, r.Country, formatPct(r.RiskPercentage))
	}
	_ = w.Flush()
}

// truncate shortens s to n bytes for compact display.
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
