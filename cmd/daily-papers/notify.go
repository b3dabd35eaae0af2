// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/daily-papers/internal/notify"
	"github.com/pdiddy/daily-papers/pkg/types"
)

var notifyCmd = &cobra.Command{
	Use:   "notify [date]",
	Short: "Send the Feishu card for a date",
	Long: `Notify loads reports/<date>.yaml (default: yesterday) and posts a
summary card to the Feishu webhook from notify.webhook, FEISHU_WEBHOOK, or
.secrets/feishu-webhook.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNotify,
}

func runNotify(cmd *cobra.Command, args []string) error {
	day, err := dateArg(args)
	if err != nil {
		return err
	}
	date := day.Format(types.DateLayout)

	runner, _, cleanup, err := buildRunner(runnerOptions{notify: true})
	if err != nil {
		return err
	}
	defer cleanup()

	if !runner.Reports.Exists(date) {
		return fmt.Errorf("no report for %s", date)
	}
	if err := runner.Notify(cmd.Context(), date); err != nil {
		if errors.Is(err, notify.ErrNoWebhook) {
			return fmt.Errorf("%w: set notify.webhook or FEISHU_WEBHOOK", err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent notification for %s\n", date)
	return nil
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
