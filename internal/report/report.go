// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report persists per-date analysis reports and the cross-date
// aggregates derived from them. Every file is replaced atomically so a
// crash never leaves a partially written report behind.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/daily-papers/internal/fsutil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const (
	reportsDir   = "reports"
	aggregateDir = "aggregate"
	digestsDir   = "digests"
)

// IOError reports a report or aggregate file that could not be read or written.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Writer owns the reports/, aggregate/, and digests/ trees under a data
// directory. Writes to one date are serialized by a per-date lock;
// aggregate writes share a single lock.
type Writer struct {
	dataDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	aggMu sync.Mutex

	now func() time.Time
}

// NewWriter returns a Writer rooted at dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{
		dataDir: dataDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Path returns dataDir/reports/<date>.yaml.
func (w *Writer) Path(date string) string {
	return filepath.Join(w.dataDir, reportsDir, date+".yaml")
}

func (w *Writer) lock(date string) func() {
	w.mu.Lock()
	l, ok := w.locks[date]
	if !ok {
		l = &sync.Mutex{}
		w.locks[date] = l
	}
	w.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Exists reports whether a report file has been written for date.
func (w *Writer) Exists(date string) bool {
	_, err := os.Stat(w.Path(date))
	return err == nil
}

// Load returns the report for date. A missing file yields an empty report.
func (w *Writer) Load(date string) (*types.DailyReport, error) {
	defer w.lock(date)()
	return w.load(date)
}

func (w *Writer) load(date string) (*types.DailyReport, error) {
	r := &types.DailyReport{Date: date}
	path := w.Path(date)
	if err := fsutil.ReadYAML(path, r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &types.DailyReport{Date: date, Results: []types.AnalysisResult{}}, nil
		}
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}
	r.Date = date
	if r.Results == nil {
		r.Results = []types.AnalysisResult{}
	}
	return r, nil
}

func (w *Writer) save(r *types.DailyReport) error {
	r.Succeeded = len(r.Results)
	r.Failed = len(r.Failures)
	r.UpdatedAt = w.now().UTC()
	path := w.Path(r.Date)
	if err := fsutil.WriteYAML(path, r); err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// update applies fn to the report for date under its lock and saves it.
func (w *Writer) update(date string, fn func(*types.DailyReport)) (*types.DailyReport, error) {
	defer w.lock(date)()

	r, err := w.load(date)
	if err != nil {
		return nil, err
	}
	fn(r)
	if err := w.save(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Append records res in the report for its date. An earlier result or
// failure for the same paper id is replaced, so re-running a date never
// duplicates entries.
func (w *Writer) Append(date string, res types.AnalysisResult) error {
	_, err := w.update(date, func(r *types.DailyReport) {
		r.Failures = slices.DeleteFunc(r.Failures, func(f types.RecordFailure) bool {
			return f.PaperID == res.PaperID
		})
		if i := slices.IndexFunc(r.Results, func(x types.AnalysisResult) bool { return x.PaperID == res.PaperID }); i >= 0 {
			r.Results[i] = res
			return
		}
		r.Results = append(r.Results, res)
	})
	return err
}

// AppendFailure records that f.PaperID could not be analyzed. A paper that
// already has a result keeps it and the failure is dropped.
func (w *Writer) AppendFailure(date string, f types.RecordFailure) error {
	if f.FailedAt.IsZero() {
		f.FailedAt = w.now().UTC()
	}
	_, err := w.update(date, func(r *types.DailyReport) {
		if slices.ContainsFunc(r.Results, func(x types.AnalysisResult) bool { return x.PaperID == f.PaperID }) {
			return
		}
		if i := slices.IndexFunc(r.Failures, func(x types.RecordFailure) bool { return x.PaperID == f.PaperID }); i >= 0 {
			r.Failures[i] = f
			return
		}
		r.Failures = append(r.Failures, f)
	})
	return err
}

// Finalize writes the report for date even when nothing was appended, so
// a date with no papers still has a report on disk, and returns it.
func (w *Writer) Finalize(date string) (*types.DailyReport, error) {
	return w.update(date, func(*types.DailyReport) {})
}

// Retain drops results and failures for date whose paper id is not in
// ids, as happens when a refreshed listing no longer carries a paper. It
// returns the dropped ids. The report is rewritten only when something
// was dropped.
func (w *Writer) Retain(date string, ids []string) ([]string, error) {
	defer w.lock(date)()

	if !w.Exists(date) {
		return nil, nil
	}
	r, err := w.load(date)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var dropped []string
	r.Results = slices.DeleteFunc(r.Results, func(x types.AnalysisResult) bool {
		if keep[x.PaperID] {
			return false
		}
		dropped = append(dropped, x.PaperID)
		return true
	})
	r.Failures = slices.DeleteFunc(r.Failures, func(f types.RecordFailure) bool {
		if keep[f.PaperID] {
			return false
		}
		dropped = append(dropped, f.PaperID)
		return true
	})
	if len(dropped) == 0 {
		return nil, nil
	}
	if err := w.save(r); err != nil {
		return nil, err
	}
	return dropped, nil
}

// ResultIDs returns the paper ids with a persisted result for date.
func (w *Writer) ResultIDs(date string) ([]string, error) {
	r, err := w.Load(date)
	if err != nil {
		return nil, err
	}
	return r.ResultIDs(), nil
}

// Dates returns every date with a report file, oldest first.
func (w *Writer) Dates() ([]string, error) {
	dir := filepath.Join(w.dataDir, reportsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IOError{Path: dir, Op: "list", Err: err}
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		date := strings.TrimSuffix(name, ".yaml")
		if _, err := time.Parse(types.DateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	slices.Sort(dates)
	return dates, nil
}
