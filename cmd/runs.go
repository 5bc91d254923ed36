package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tempscore-cli/internal/model"
	"github.com/sells-group/tempscore-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scoring run history",
	Long:  "Commands for listing and viewing persisted scoring runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		method, _ := cmd.Flags().GetString("method")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Status: store.RunStatus(status),
			Method: model.AggregationMethod(method),
			Limit:  limit,
		}

		runs, err := st.ListRuns(ctx, filter)
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

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("method", "", "filter by weighting method (WATS, TETS, ...)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMETHOD\tPORTFOLIO\tSTATUS\tSCORE\tCOVERAGE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t------\t-----\t--------\t-------")

	for _, r := range runs {
		portfolio := r.Params.PortfolioPath
		if len(portfolio) > 30 {
			portfolio = "..." + portfolio[len(portfolio)-27:]
		}

		score, coverage := "", ""
		if r.Result != nil {
			if s, ok := headlineScore(r.Result); ok {
				score = fmt.Sprintf("%.2f", s)
			}
			if r.Result.Coverage != nil {
				coverage = fmt.Sprintf("%.1f%%", r.Result.Coverage.CoveragePct)
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Params.Method,
			portfolio,
			r.Status,
			score,
			coverage,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// headlineScore picks one portfolio score for the list view: the first
// defined partition in display order.
func headlineScore(result *store.RunResult) (float64, bool) {
	if result.Aggregation == nil {
		return 0, false
	}
	for _, tf := range timeFrameOrder {
		for _, scope := range scopeOrder {
			pr := result.Aggregation.Partition(tf, scope)
			if pr != nil && pr.Portfolio != nil {
				return pr.Portfolio.Score, true
			}
		}
	}
	return 0, false
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
