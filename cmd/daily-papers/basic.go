// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/daily-papers/internal/pipeline"
	"github.com/pdiddy/daily-papers/pkg/types"
)

var basicCmd = &cobra.Command{
	Use:   "basic [date]",
	Short: "Fetch, clean, classify, and report the papers of one date",
	Long: `Basic fetches the catalog listing for a date (default: yesterday),
cleans it into paper records, asks the configured model to classify each
record, and writes reports/<date>.yaml.

Records that already have a result are skipped, so rerunning a partial or
interrupted date only classifies what is missing. A record the model cannot
classify is logged as a failure in the report and the run continues.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBasic,
}

func runBasic(cmd *cobra.Command, args []string) error {
	day, err := dateArg(args)
	if err != nil {
		return err
	}
	silent, _ := cmd.Flags().GetBool("silent")
	refresh, _ := cmd.Flags().GetBool("refresh")
	providerFlag, _ := cmd.Flags().GetString("provider")

	runner, provider, cleanup, err := buildRunner(runnerOptions{classify: true, provider: providerFlag})
	if err != nil {
		return err
	}
	defer cleanup()
	runner.Out = progressWriter(cmd.OutOrStdout(), silent)

	rc := pipeline.NewRunContext(day, string(provider), refresh)
	out, err := runner.RunBasic(cmd.Context(), rc)
	if err != nil {
		return err
	}

	summary := pipeline.BatchSummary{Dates: []pipeline.DateOutcome{out}}
	summary.Write(cmd.OutOrStdout())
	if summary.HasFailures() {
		return fmt.Errorf("%s failed", out.Date)
	}
	return nil
}

// dateArg parses the optional date argument, defaulting to yesterday.
func dateArg(args []string) (time.Time, error) {
	if len(args) == 0 {
		return yesterday(time.Now()), nil
	}
	return pipeline.ParseDate(args[0])
}

func yesterday(now time.Time) time.Time {
	d := now.AddDate(0, 0, -1).Format(types.DateLayout)
	t, _ := time.Parse(types.DateLayout, d)
	return t
}

func progressWriter(w io.Writer, silent bool) io.Writer {
	if silent {
		return io.Discard
	}
	return w
}

func init() {
	basicCmd.Flags().Bool("silent", false, "suppress progress output")
	basicCmd.Flags().Bool("refresh", false, "re-fetch the catalog even when a cached listing exists")
	basicCmd.Flags().String("provider", "", "model provider: zhipu, doubao, openai, qwen, claude (default: first with a key)")

	rootCmd.AddCommand(basicCmd)
}
