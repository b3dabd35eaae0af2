// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/pdiddy/daily-papers/internal/fsutil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

// AggregatePath returns dataDir/aggregate/categories.yaml.
func (w *Writer) AggregatePath() string {
	return filepath.Join(w.dataDir, aggregateDir, "categories.yaml")
}

// TrendsPath returns dataDir/aggregate/trends.tsv.
func (w *Writer) TrendsPath() string {
	return filepath.Join(w.dataDir, aggregateDir, "trends.tsv")
}

// LoadAggregate returns the stored aggregate. A missing file yields an
// empty aggregate.
func (w *Writer) LoadAggregate() (*types.AggregateReport, error) {
	w.aggMu.Lock()
	defer w.aggMu.Unlock()
	return w.loadAggregate()
}

func (w *Writer) loadAggregate() (*types.AggregateReport, error) {
	agg := &types.AggregateReport{}
	path := w.AggregatePath()
	if err := fsutil.ReadYAML(path, agg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, &IOError{Path: path, Op: "read", Err: err}
		}
	}
	if agg.PerDate == nil {
		agg.PerDate = make(map[string]map[types.Category]int)
	}
	return agg, nil
}

func (w *Writer) saveAggregate(agg *types.AggregateReport) error {
	recompute(agg)
	agg.UpdatedAt = w.now().UTC()
	path := w.AggregatePath()
	if err := fsutil.WriteYAML(path, agg); err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// MergeAggregate replaces date's slice of the aggregate with the category
// counts of its current report and recomputes totals and trend deltas.
// Merging the same date twice leaves the aggregate unchanged.
func (w *Writer) MergeAggregate(date string) (*types.AggregateReport, error) {
	r, err := w.Load(date)
	if err != nil {
		return nil, err
	}

	w.aggMu.Lock()
	defer w.aggMu.Unlock()

	agg, err := w.loadAggregate()
	if err != nil {
		return nil, err
	}
	agg.PerDate[date] = r.CategoryCounts()
	if err := w.saveAggregate(agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// RebuildAggregate discards the stored aggregate and recomputes it from
// every report on disk.
func (w *Writer) RebuildAggregate() (*types.AggregateReport, error) {
	dates, err := w.Dates()
	if err != nil {
		return nil, err
	}

	agg := &types.AggregateReport{PerDate: make(map[string]map[types.Category]int, len(dates))}
	for _, date := range dates {
		r, err := w.Load(date)
		if err != nil {
			return nil, err
		}
		agg.PerDate[date] = r.CategoryCounts()
	}

	w.aggMu.Lock()
	defer w.aggMu.Unlock()
	if err := w.saveAggregate(agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// recompute derives DateRange, CategoryCounts, and TrendDeltas from PerDate.
func recompute(agg *types.AggregateReport) {
	dates := slices.Sorted(maps.Keys(agg.PerDate))

	agg.DateRange = types.DateRange{}
	if len(dates) > 0 {
		agg.DateRange = types.DateRange{Start: dates[0], End: dates[len(dates)-1]}
	}

	agg.CategoryCounts = make(map[types.Category]int)
	for _, d := range dates {
		if agg.PerDate[d] == nil {
			agg.PerDate[d] = map[types.Category]int{}
		}
		for c, n := range agg.PerDate[d] {
			agg.CategoryCounts[c] += n
		}
	}

	agg.TrendDeltas = make(map[types.Category]int)
	if len(dates) == 0 {
		return
	}
	latest := agg.PerDate[dates[len(dates)-1]]
	var previous map[types.Category]int
	if len(dates) > 1 {
		previous = agg.PerDate[dates[len(dates)-2]]
	}
	for c, n := range latest {
		agg.TrendDeltas[c] = n - previous[c]
	}
	for c, n := range previous {
		if _, ok := latest[c]; !ok {
			agg.TrendDeltas[c] = -n
		}
	}
}

// WriteTrends writes one date, category, count row per non-zero cell of
// agg to aggregate/trends.tsv, ordered by date then category.
func (w *Writer) WriteTrends(agg *types.AggregateReport) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = '\t'

	rows := [][]string{{"date", "category", "count"}}
	for _, date := range slices.Sorted(maps.Keys(agg.PerDate)) {
		counts := agg.PerDate[date]
		for _, c := range slices.Sorted(maps.Keys(counts)) {
			if counts[c] == 0 {
				continue
			}
			rows = append(rows, []string{date, string(c), strconv.Itoa(counts[c])})
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return &IOError{Path: w.TrendsPath(), Op: "encode", Err: err}
	}

	if err := fsutil.WriteFile(w.TrendsPath(), buf.Bytes()); err != nil {
		return &IOError{Path: w.TrendsPath(), Op: "write", Err: err}
	}
	return nil
}
