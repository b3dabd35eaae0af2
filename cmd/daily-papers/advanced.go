// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/daily-papers/internal/pipeline"
)

var advancedCmd = &cobra.Command{
	Use:   "advanced [date]",
	Short: "Fold a date's report into the aggregate and render its digest",
	Long: `Advanced merges reports/<date>.yaml into aggregate/categories.yaml,
rewrites aggregate/trends.tsv, and renders digests/<date>.md and .html.

With --auto, a date that is not complete is run through basic first.
With --rebuild, the aggregate is recomputed from every report on disk.
With --index, the history index is synced afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdvanced,
}

func runAdvanced(cmd *cobra.Command, args []string) error {
	day, err := dateArg(args)
	if err != nil {
		return err
	}
	auto, _ := cmd.Flags().GetBool("auto")
	rebuild, _ := cmd.Flags().GetBool("rebuild")
	withIndex, _ := cmd.Flags().GetBool("index")
	providerFlag, _ := cmd.Flags().GetString("provider")

	runner, provider, cleanup, err := buildRunner(runnerOptions{
		classify: auto,
		provider: providerFlag,
		index:    withIndex,
	})
	if err != nil {
		return err
	}
	defer cleanup()
	runner.Out = cmd.OutOrStdout()

	rc := pipeline.NewRunContext(day, string(provider), false)
	_, err = runner.RunAdvanced(cmd.Context(), rc, pipeline.AdvancedOptions{Auto: auto, Rebuild: rebuild})
	return err
}

func init() {
	advancedCmd.Flags().Bool("auto", false, "run basic first when the date is not complete")
	advancedCmd.Flags().Bool("rebuild", false, "recompute the aggregate from every report")
	advancedCmd.Flags().Bool("index", false, "sync the history index afterwards")
	advancedCmd.Flags().String("provider", "", "model provider used by --auto")

	rootCmd.AddCommand(advancedCmd)
}
