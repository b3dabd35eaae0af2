// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/daily-papers/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the pipeline over a range of dates",
}

var batchDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Run basic and advanced for every date in a range",
	Long: `Daily runs basic then advanced for each date from --start to --end,
inclusive, one date at a time. A failed date is recorded and the range
continues; a rejected key or exhausted quota on every configured provider
stops the run.

The command exits non-zero when any date failed.`,
	RunE: runBatchDaily,
}

func runBatchDaily(cmd *cobra.Command, args []string) error {
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")
	notifyFlag, _ := cmd.Flags().GetBool("notify")
	refresh, _ := cmd.Flags().GetBool("refresh")
	providerFlag, _ := cmd.Flags().GetString("provider")

	start, err := pipeline.ParseDate(startFlag)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end := start
	if endFlag != "" {
		if end, err = pipeline.ParseDate(endFlag); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}

	runner, provider, cleanup, err := buildRunner(runnerOptions{
		classify: true,
		provider: providerFlag,
		notify:   notifyFlag,
	})
	if err != nil {
		return err
	}
	defer cleanup()
	runner.Out = cmd.OutOrStdout()

	rc := pipeline.NewRunContext(start, string(provider), refresh)
	summary, err := runner.RunRange(cmd.Context(), rc, start, end, pipeline.RangeOptions{
		Advanced: true,
		Notify:   notifyFlag,
	})
	summary.Write(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d of %d date(s) had failures", summary.FailedDates(), summary.Total())
	}
	return nil
}

func init() {
	batchDailyCmd.Flags().String("start", "", "first date (YYYY-MM-DD)")
	batchDailyCmd.Flags().String("end", "", "last date, inclusive (default: --start)")
	batchDailyCmd.Flags().Bool("notify", false, "send a Feishu card after each date")
	batchDailyCmd.Flags().Bool("refresh", false, "re-fetch catalogs even when cached listings exist")
	batchDailyCmd.Flags().String("provider", "", "model provider: zhipu, doubao, openai, qwen, claude")
	batchDailyCmd.MarkFlagRequired("start")

	batchCmd.AddCommand(batchDailyCmd)
	rootCmd.AddCommand(batchCmd)
}
