// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/daily-papers/internal/notify"
	"github.com/pdiddy/daily-papers/pkg/types"
)

// RangeOptions controls RunRange.
type RangeOptions struct {
	// Advanced runs RunAdvanced after each date that did not fail.
	Advanced bool

	// Notify sends the Feishu card for each finished date.
	Notify bool
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// Days returns every date from start to end inclusive.
func Days(start, end time.Time) ([]time.Time, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			end.Format(types.DateLayout), start.Format(types.DateLayout))
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

// RunRange runs every date from start to end in order. A date that fails
// is recorded and the range continues with the next date. The run stops
// early only when RunBasic reports a run-level error, which is returned
// with the outcomes gathered so far.
func (r *Runner) RunRange(ctx context.Context, rc RunContext, start, end time.Time, opts RangeOptions) (BatchSummary, error) {
	days, err := Days(start, end)
	if err != nil {
		return BatchSummary{}, err
	}

	w := r.out()
	var summary BatchSummary
	warnedNoWebhook := false

	for _, day := range days {
		drc := rc.ForDate(day)
		fmt.Fprintf(w, "== %s\n", drc.Date)

		out, err := r.RunBasic(ctx, drc)
		if err != nil {
			summary.Dates = append(summary.Dates, out)
			return summary, err
		}

		if out.Err == nil && opts.Advanced {
			if _, err := r.RunAdvanced(ctx, drc, AdvancedOptions{}); err != nil {
				if ctx.Err() != nil {
					summary.Dates = append(summary.Dates, out)
					return summary, ctx.Err()
				}
				fmt.Fprintf(w, "failed  advanced %s: %v\n", drc.Date, err)
				out.Err = fmt.Errorf("advanced: %w", err)
			}
		}

		if opts.Notify && r.Notifier != nil {
			if err := r.notify(ctx, drc.Date); err != nil {
				if errors.Is(err, notify.ErrNoWebhook) {
					if !warnedNoWebhook {
						fmt.Fprintln(w, "notification skipped: no Feishu webhook configured")
						warnedNoWebhook = true
					}
				} else {
					fmt.Fprintf(w, "warning: notification for %s failed: %v\n", drc.Date, err)
				}
			}
		}

		summary.Dates = append(summary.Dates, out)
	}
	return summary, nil
}

func (r *Runner) notify(ctx context.Context, date string) error {
	rep, err := r.Reports.Load(date)
	if err != nil {
		return err
	}
	return r.Notifier.NotifyDate(ctx, rep)
}

// Notify sends the card for date, loading its report from disk.
func (r *Runner) Notify(ctx context.Context, date string) error {
	if r.Notifier == nil {
		return notify.ErrNoWebhook
	}
	return r.notify(ctx, date)
}
