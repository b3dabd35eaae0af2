// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/daily-papers/internal/report"
	"github.com/pdiddy/daily-papers/internal/runstate"
	"github.com/pdiddy/daily-papers/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-date run state and aggregate totals",
	Long: `Status lists every date with stored run state: its status, the phase
the driver last entered, and how many records were processed or failed.
Category totals from aggregate/categories.yaml follow the table.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// statusView is the --json shape of the status command.
type statusView struct {
	Dates     []types.RunState       `json:"dates"`
	Aggregate *types.AggregateReport `json:"aggregate,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	reports := report.NewWriter(dataDir())
	tracker := runstate.New(dataDir(), reports)

	states, err := tracker.List()
	if err != nil {
		return err
	}
	agg, err := reports.LoadAggregate()
	if err != nil {
		return err
	}
	if len(agg.PerDate) == 0 {
		agg = nil
	}

	return formatStatusOutput(cmd.OutOrStdout(), statusView{Dates: states, Aggregate: agg}, jsonOutput)
}

func formatStatusOutput(w io.Writer, v statusView, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if len(v.Dates) == 0 {
		fmt.Fprintln(w, "No dates have been run.")
	} else {
		fmt.Fprintf(w, "%-10s  %-8s  %-11s  %5s  %9s  %6s  %s\n",
			"Date", "Status", "Phase", "Total", "Processed", "Failed", "Error")
		fmt.Fprintln(w, strings.Repeat("-", 80))
		for _, st := range v.Dates {
			msg := clip(st.Error, 30)
			fmt.Fprintf(w, "%-10s  %-8s  %-11s  %5d  %9d  %6d  %s\n",
				st.Date, st.Status, st.Phase, st.Total, len(st.ProcessedIDs), len(st.FailedIDs), msg)
		}
	}

	if v.Aggregate == nil {
		return nil
	}
	agg := v.Aggregate
	fmt.Fprintf(w, "\nAggregate %s to %s (%d dates)\n", agg.DateRange.Start, agg.DateRange.End, len(agg.PerDate))

	cats := make([]types.Category, 0, len(agg.CategoryCounts))
	for c := range agg.CategoryCounts {
		cats = append(cats, c)
	}
	slices.SortFunc(cats, func(a, b types.Category) int {
		if d := agg.CategoryCounts[b] - agg.CategoryCounts[a]; d != 0 {
			return d
		}
		return strings.Compare(string(a), string(b))
	})
	for _, c := range cats {
		fmt.Fprintf(w, "  %-24s  %5d  %+d\n", c, agg.CategoryCounts[c], agg.TrendDeltas[c])
	}
	return nil
}

func init() {
	statusCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(statusCmd)
}
