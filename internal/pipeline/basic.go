// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/daily-papers/internal/catalog"
	"github.com/pdiddy/daily-papers/internal/classify"
	"github.com/pdiddy/daily-papers/internal/clean"
	"github.com/pdiddy/daily-papers/internal/httputil"
	"github.com/pdiddy/daily-papers/internal/llm"
	"github.com/pdiddy/daily-papers/pkg/types"
)

// ErrNoClassifier is returned by RunBasic when the Runner has no Classifier.
var ErrNoClassifier = errors.New("no classifier configured")

// RunBasic fetches, cleans, and classifies the papers of rc.Date and
// writes its report. Records that already have a result are skipped.
//
// A date-level failure (fetch, disk) is recorded in the run state and
// returned in the outcome with a nil error, so a range can continue. The
// error result is non-nil only when the whole run must stop: the context
// was cancelled, or every model provider rejected the key or quota.
func (r *Runner) RunBasic(ctx context.Context, rc RunContext) (DateOutcome, error) {
	if r.Fetcher == nil {
		return DateOutcome{Date: rc.Date}, errors.New("no catalog fetcher configured")
	}
	if r.Classifier == nil {
		return DateOutcome{Date: rc.Date}, ErrNoClassifier
	}

	ctx, span := r.tracer().Start(ctx, "pipeline.date", trace.WithAttributes(
		attribute.String("date", rc.Date),
		attribute.String("run.id", rc.RunID),
		attribute.String("provider", rc.Provider),
	))
	defer span.End()

	w := r.out()
	date := rc.Date
	out := DateOutcome{Date: date, Phase: types.PhasePending}

	if _, err := r.Tracker.Update(date, func(st *types.RunState) {
		st.Phase = types.PhaseFetching
		st.RunID = rc.RunID
		st.Error = ""
	}); err != nil {
		return r.failDate(ctx, span, out, err), nil
	}

	raw, cached, err := catalog.Load(ctx, r.Fetcher, r.DataDir, rc.Day, rc.Refresh)
	if err != nil {
		if ctx.Err() != nil {
			return r.interrupt(ctx, span, out)
		}
		return r.failDate(ctx, span, out, err), nil
	}
	out.Cached = cached

	recs, stats := clean.Clean(raw)
	if err := clean.Write(r.DataDir, date, recs); err != nil {
		return r.failDate(ctx, span, out, err), nil
	}
	source := r.Fetcher.Name()
	if cached {
		source = "cache"
	}
	fmt.Fprintf(w, "fetched %s from %s: %d listed, %d kept (%d invalid, %d duplicate)\n",
		date, source, stats.Input, stats.Kept, stats.Invalid, stats.Duplicates)

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	dropped, err := r.Reports.Retain(date, ids)
	if err != nil {
		return r.failDate(ctx, span, out, err), nil
	}
	if len(dropped) > 0 {
		fmt.Fprintf(w, "dropped %d stale result(s) for %s\n", len(dropped), date)
	}

	st, err := r.Tracker.Update(date, func(st *types.RunState) {
		st.Total = len(recs)
		st.Phase = types.PhaseClassifying
		st.FailedIDs = slices.DeleteFunc(st.FailedIDs, func(id string) bool {
			return !slices.Contains(ids, id)
		})
	})
	if err != nil {
		return r.failDate(ctx, span, out, err), nil
	}
	out.Total = len(recs)
	span.SetAttributes(attribute.Int("records", len(recs)))

	called := false
	for rec := range clean.Records(raw) {
		if ctx.Err() != nil {
			return r.interrupt(ctx, span, out)
		}
		if st.IsProcessed(rec.ID) {
			fmt.Fprintf(w, "skipped %s\n", rec.ID)
			out.Skipped++
			continue
		}

		if called {
			if err := httputil.Sleep(ctx, r.Delay); err != nil {
				return r.interrupt(ctx, span, out)
			}
		}
		called = true

		res, err := r.classify(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return r.interrupt(ctx, span, out)
			}
			if llm.IsFatal(err) {
				out = r.failDate(ctx, span, out, err)
				return out, fmt.Errorf("aborting run at %s: %w", date, err)
			}
			if err := r.recordFailure(date, rec, err); err != nil {
				return r.failDate(ctx, span, out, err), nil
			}
			fmt.Fprintf(w, "failed  %s: %v\n", rec.ID, err)
			out.Failed++
			out.FailedIDs = append(out.FailedIDs, rec.ID)
			continue
		}

		// The result is persisted before the id is marked processed.
		if err := r.Reports.Append(date, res); err != nil {
			return r.failDate(ctx, span, out, err), nil
		}
		if err := r.Tracker.MarkProcessed(date, res.PaperID); err != nil {
			return r.failDate(ctx, span, out, err), nil
		}
		fmt.Fprintf(w, "analyzed %s [%s]\n", rec.ID, res.Category)
		out.Analyzed++
	}

	if _, err := r.Tracker.SetPhase(date, types.PhaseWriting, ""); err != nil {
		return r.failDate(ctx, span, out, err), nil
	}
	if _, err := r.Reports.Finalize(date); err != nil {
		return r.failDate(ctx, span, out, err), nil
	}
	st, err = r.Tracker.SetPhase(date, types.PhaseComplete, "")
	if err != nil {
		return r.failDate(ctx, span, out, err), nil
	}

	out.Phase = st.Phase
	out.Status = st.Status
	span.SetAttributes(
		attribute.Int("analyzed", out.Analyzed),
		attribute.Int("skipped", out.Skipped),
		attribute.Int("failed", out.Failed),
	)
	fmt.Fprintf(w, "%s: %d analyzed, %d skipped, %d failed (%s)\n",
		date, out.Analyzed, out.Skipped, out.Failed, out.Status)
	r.logger().InfoContext(ctx, "date finished", "date", date, "run_id", rc.RunID,
		"analyzed", out.Analyzed, "skipped", out.Skipped, "failed", out.Failed, "status", string(out.Status))
	return out, nil
}

func (r *Runner) classify(ctx context.Context, rec types.PaperRecord) (types.AnalysisResult, error) {
	ctx, span := r.tracer().Start(ctx, "pipeline.classify", trace.WithAttributes(
		attribute.String("paper.id", rec.ID),
	))
	defer span.End()

	res, err := r.Classifier.Classify(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.AnalysisResult{}, err
	}
	span.SetAttributes(
		attribute.String("paper.category", string(res.Category)),
		attribute.String("model", res.ModelUsed),
	)
	return res, nil
}

func (r *Runner) recordFailure(date string, rec types.PaperRecord, cause error) error {
	f := types.RecordFailure{
		PaperID: rec.ID,
		Title:   rec.Title,
		Kind:    failureKind(cause),
		Error:   cause.Error(),
	}
	if err := r.Reports.AppendFailure(date, f); err != nil {
		return err
	}
	return r.Tracker.MarkFailed(date, rec.ID)
}

func failureKind(err error) types.FailureKind {
	var (
		pe *classify.ParseError
		te *llm.TransientAPIError
	)
	switch {
	case errors.As(err, &pe):
		return types.FailureParse
	case errors.As(err, &te):
		return types.FailureTransient
	default:
		return types.FailureAPI
	}
}

// failDate moves the date to the failed phase and records err on the
// outcome and span.
func (r *Runner) failDate(ctx context.Context, span trace.Span, out DateOutcome, err error) DateOutcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	st, serr := r.Tracker.SetPhase(out.Date, types.PhaseFailed, err.Error())
	if serr != nil {
		r.logger().ErrorContext(ctx, "recording failed phase", "date", out.Date, "error", serr)
	} else {
		out.Status = st.Status
	}
	out.Phase = types.PhaseFailed
	out.Err = err

	fmt.Fprintf(r.out(), "failed  %s: %v\n", out.Date, err)
	r.logger().ErrorContext(ctx, "date failed", "date", out.Date, "error", err)
	return out
}

// interrupt records a cancelled run. The date is left failed with the
// cancellation as its error; a rerun resumes from the processed ids.
func (r *Runner) interrupt(ctx context.Context, span trace.Span, out DateOutcome) (DateOutcome, error) {
	err := context.Cause(ctx)
	if err == nil {
		err = context.Canceled
	}
	out = r.failDate(ctx, span, out, fmt.Errorf("interrupted: %w", err))
	return out, ctx.Err()
}
