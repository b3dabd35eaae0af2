// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one date, or a range of dates, through fetch,
// clean, classify, and report. Dates are processed sequentially and model
// calls are paced; progress survives interruption through the run state
// tracker so a rerun only classifies what is missing.
package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/daily-papers/internal/catalog"
	"github.com/pdiddy/daily-papers/internal/index"
	"github.com/pdiddy/daily-papers/internal/notify"
	"github.com/pdiddy/daily-papers/internal/report"
	"github.com/pdiddy/daily-papers/internal/runstate"
	"github.com/pdiddy/daily-papers/internal/telemetry"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const tracerName = "github.com/pdiddy/daily-papers/internal/pipeline"

// Classifier analyzes one record. *classify.Classifier implements it.
type Classifier interface {
	Classify(ctx context.Context, rec types.PaperRecord) (types.AnalysisResult, error)
}

// Runner holds the collaborators of a run. Fetcher and Classifier are
// only needed by RunBasic; Index and Notifier are optional.
type Runner struct {
	DataDir    string
	Fetcher    catalog.Fetcher
	Classifier Classifier
	Tracker    *runstate.Tracker
	Reports    *report.Writer
	Index      *index.Store
	Notifier   *notify.Notifier

	// Delay is the pause between consecutive model calls.
	Delay time.Duration

	// Out receives progress lines. Nil discards them.
	Out io.Writer

	Logger *slog.Logger
	Tracer trace.Tracer
}

// NewRunner wires a Runner over dataDir with its own tracker and report
// writer. Callers set Fetcher, Classifier, and the optional fields.
func NewRunner(dataDir string) *Runner {
	reports := report.NewWriter(dataDir)
	return &Runner{
		DataDir: dataDir,
		Tracker: runstate.New(dataDir, reports),
		Reports: reports,
		Delay:   time.Second,
	}
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return io.Discard
	}
	return r.Out
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer == nil {
		return telemetry.Tracer(tracerName)
	}
	return r.Tracer
}

// RunContext identifies one invocation. It is passed by value through
// every call so no run state lives in package variables.
type RunContext struct {
	RunID    string
	Date     string
	Day      time.Time
	Provider string
	Refresh  bool
}

// NewRunContext returns a RunContext for day with a fresh run id.
func NewRunContext(day time.Time, provider string, refresh bool) RunContext {
	return RunContext{
		RunID:    NewRunID(),
		Provider: provider,
		Refresh:  refresh,
	}.ForDate(day)
}

// ForDate returns a copy of rc that targets day.
func (rc RunContext) ForDate(day time.Time) RunContext {
	rc.Day = day
	rc.Date = day.Format(types.DateLayout)
	return rc
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a time-ordered unique run identifier.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// DateOutcome is the result of running one date.
type DateOutcome struct {
	Date      string
	Phase     types.Phase
	Status    types.RunStatus
	Total     int
	Analyzed  int
	Skipped   int
	Failed    int
	FailedIDs []string
	Cached    bool

	// Err is the date-level error that failed the date.
	Err error
}

// BatchSummary collects the outcomes of a date range.
type BatchSummary struct {
	Dates []DateOutcome
}

// Total returns the number of dates run.
func (s BatchSummary) Total() int {
	return len(s.Dates)
}

// HasFailures reports whether any date failed.
func (s BatchSummary) HasFailures() bool {
	return s.FailedDates() > 0
}

// FailedDates returns the number of dates that failed.
func (s BatchSummary) FailedDates() int {
	n := 0
	for _, d := range s.Dates {
		if d.failed() {
			n++
		}
	}
	return n
}

func (d DateOutcome) failed() bool {
	return d.Phase == types.PhaseFailed || d.Err != nil
}

// RecordFailures returns the number of records that failed across all dates.
func (s BatchSummary) RecordFailures() int {
	n := 0
	for _, d := range s.Dates {
		n += d.Failed
	}
	return n
}

// Write prints one line per date with its counts and a totals line,
// followed by the ids of failed records for manual re-runs.
func (s BatchSummary) Write(w io.Writer) {
	fmt.Fprintf(w, "\n%-10s  %-8s  %8s  %7s  %6s\n", "date", "status", "analyzed", "skipped", "failed")
	for _, d := range s.Dates {
		status := string(d.Status)
		if d.failed() {
			status = "failed"
		}
		fmt.Fprintf(w, "%-10s  %-8s  %8d  %7d  %6d\n", d.Date, status, d.Analyzed, d.Skipped, d.Failed)
	}
	fmt.Fprintf(w, "%d date(s), %d failed, %d record failure(s)\n", s.Total(), s.FailedDates(), s.RecordFailures())
	for _, d := range s.Dates {
		if d.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", d.Date, d.Err)
		}
		for _, id := range d.FailedIDs {
			fmt.Fprintf(w, "%s: failed record %s\n", d.Date, id)
		}
	}
}
