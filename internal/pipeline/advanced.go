// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/daily-papers/internal/index"
	"github.com/pdiddy/daily-papers/pkg/types"
)

// AdvancedOptions controls RunAdvanced.
type AdvancedOptions struct {
	// Auto runs RunBasic first when the date is not complete.
	Auto bool

	// Rebuild recomputes the aggregate from every report instead of
	// merging the one date.
	Rebuild bool
}

// AdvancedOutcome describes the derived files written for a date.
type AdvancedOutcome struct {
	Date      string
	Basic     *DateOutcome
	Aggregate *types.AggregateReport
	Markdown  string
	HTML      string
	Index     *index.SyncSummary
}

// RunAdvanced folds the report of rc.Date into the aggregate, rewrites
// the trend table, and renders the digest. With an Index configured the
// history index is synced as well.
func (r *Runner) RunAdvanced(ctx context.Context, rc RunContext, opts AdvancedOptions) (AdvancedOutcome, error) {
	ctx, span := r.tracer().Start(ctx, "pipeline.advanced", trace.WithAttributes(
		attribute.String("date", rc.Date),
		attribute.String("run.id", rc.RunID),
	))
	defer span.End()

	res, err := r.runAdvanced(ctx, rc, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Runner) runAdvanced(ctx context.Context, rc RunContext, opts AdvancedOptions) (AdvancedOutcome, error) {
	w := r.out()
	date := rc.Date
	out := AdvancedOutcome{Date: date}

	if opts.Auto {
		st, err := r.Tracker.Load(date)
		if err != nil {
			return out, err
		}
		if st.Status != types.StatusComplete {
			fmt.Fprintf(w, "%s is %s; running basic first\n", date, st.Status)
			basic, err := r.RunBasic(ctx, rc)
			out.Basic = &basic
			if err != nil {
				return out, err
			}
			if basic.Err != nil {
				return out, fmt.Errorf("basic run for %s failed: %w", date, basic.Err)
			}
		}
	}

	if !r.Reports.Exists(date) {
		return out, fmt.Errorf("no report for %s: run basic first or pass --auto", date)
	}

	var (
		agg *types.AggregateReport
		err error
	)
	if opts.Rebuild {
		agg, err = r.Reports.RebuildAggregate()
	} else {
		agg, err = r.Reports.MergeAggregate(date)
	}
	if err != nil {
		return out, err
	}
	out.Aggregate = agg
	fmt.Fprintf(w, "aggregate %s..%s: %d categories over %d dates\n",
		agg.DateRange.Start, agg.DateRange.End, len(agg.CategoryCounts), len(agg.PerDate))

	if err := r.Reports.WriteTrends(agg); err != nil {
		return out, err
	}

	md, html, err := r.Reports.WriteDigest(date)
	if err != nil {
		return out, err
	}
	out.Markdown, out.HTML = md, html
	fmt.Fprintf(w, "digest %s\n", html)

	if r.Index != nil {
		sum, err := r.Index.Sync(ctx, r.Reports, w)
		if err != nil {
			return out, fmt.Errorf("syncing history index: %w", err)
		}
		out.Index = &sum
	}
	return out, nil
}
