package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sells-group/tempscore-cli/internal/aggregate"
	"github.com/sells-group/tempscore-cli/internal/model"
	"github.com/sells-group/tempscore-cli/internal/store"
)

// Display order for partitions.
var (
	timeFrameOrder = []model.TimeFrame{model.TimeFrameShort, model.TimeFrameMid, model.TimeFrameLong}
	scopeOrder     = []model.Scope{model.ScopeS1S2, model.ScopeS3, model.ScopeS1S2S3}
)

// formatRunResult writes the scored portfolio as human-readable tables.
func formatRunResult(out io.Writer, result *store.RunResult) {
	agg := result.Aggregation

	fmt.Fprintf(out, "Method: %s   Companies: %d\n\n", agg.Method, result.Companies)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME FRAME\tSCOPE\tSCORE\tCOMPANIES\tFALLBACK%")
	_, _ = fmt.Fprintln(w, "----------\t-----\t-----\t---------\t---------")
	for _, tf := range timeFrameOrder {
		for _, scope := range scopeOrder {
			pr := agg.Partition(tf, scope)
			if pr == nil {
				continue
			}
			if pr.Undefined {
				_, _ = fmt.Fprintf(w, "%s\t%s\tundefined (%s)\t\t\n", tf, scope, pr.Reason)
				continue
			}
			p := pr.Portfolio
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%.1f\n",
				tf, scope, p.Score, p.Companies, p.FallbackSharePct)
		}
	}
	_ = w.Flush()

	formatGroups(out, agg)

	cov := result.Coverage
	fmt.Fprintf(out, "\nTarget coverage (%s-weighted): %.1f%% (%d of %d companies",
		cov.Method, cov.CoveragePct, cov.Covered, cov.Total)
	if cov.Excluded > 0 {
		fmt.Fprintf(out, ", %d excluded", cov.Excluded)
	}
	fmt.Fprintln(out, ")")

	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings: %d\n", len(result.Warnings))
		for _, warning := range result.Warnings {
			fmt.Fprintf(out, "  [%s] %s: %s\n", warning.Code, warning.CompanyID, warning.Message)
		}
	}
}

// formatGroups writes one table per grouping key, covering every
// partition that has grouped results.
func formatGroups(out io.Writer, agg *aggregate.Result) {
	for _, tf := range timeFrameOrder {
		for _, scope := range scopeOrder {
			pr := agg.Partition(tf, scope)
			if pr == nil || len(pr.Groups) == 0 {
				continue
			}

			keys := make([]string, 0, len(pr.Groups))
			for k := range pr.Groups {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, groupKey := range keys {
				fmt.Fprintf(out, "\nBy %s (%s/%s):\n", groupKey, tf, scope)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, value := range sortedGroupValues(pr.Groups[groupKey]) {
					gs := pr.Groups[groupKey][value]
					if gs == nil {
						_, _ = fmt.Fprintf(w, "  %s\tundefined\t\n", value)
						continue
					}
					_, _ = fmt.Fprintf(w, "  %s\t%.2f\t%d companies\n", value, gs.Score, gs.Companies)
				}
				_ = w.Flush()
			}
		}
	}
}

func sortedGroupValues(groups map[string]*aggregate.GroupScore) []string {
	values := make([]string, 0, len(groups))
	for v := range groups {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
