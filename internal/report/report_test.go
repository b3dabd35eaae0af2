// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/daily-papers/pkg/types"
)

func result(id string, cat types.Category) types.AnalysisResult {
	return types.AnalysisResult{
		PaperID:          id,
		Title:            "Paper " + id,
		SourceURL:        "https://huggingface.co/papers/" + id,
		Category:         cat,
		Summary:          "Summary of " + id,
		InnovationPoints: []string{"point one"},
		MaturityLevel:    types.MaturityExperimental,
		ModelUsed:        "zhipu/glm-4-flash",
		AnalyzedAt:       time.Date(2025, 7, 30, 8, 0, 0, 0, time.UTC),
	}
}

func TestLoad_MissingFile(t *testing.T) {
	w := NewWriter(t.TempDir())
	r, err := w.Load("2025-07-29")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-29", r.Date)
	assert.Empty(t, r.Results)
	assert.False(t, w.Exists("2025-07-29"))
}

func TestAppend_ReplacesSamePaperID(t *testing.T) {
	w := NewWriter(t.TempDir())
	date := "2025-07-29"

	require.NoError(t, w.Append(date, result("a", types.CategoryLLM)))
	require.NoError(t, w.Append(date, result("b", types.CategoryAgents)))

	updated := result("a", types.CategoryVision)
	require.NoError(t, w.Append(date, updated))

	r, err := w.Load(date)
	require.NoError(t, err)
	require.Len(t, r.Results, 2)
	assert.Equal(t, "a", r.Results[0].PaperID, "order is preserved on replace")
	assert.Equal(t, types.CategoryVision, r.Results[0].Category)
	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, []string{"a", "b"}, r.ResultIDs())
}

func TestAppendFailure(t *testing.T) {
	w := NewWriter(t.TempDir())
	date := "2025-07-29"

	require.NoError(t, w.AppendFailure(date, types.RecordFailure{PaperID: "x", Kind: types.FailureParse, Error: "first"}))
	require.NoError(t, w.AppendFailure(date, types.RecordFailure{PaperID: "x", Kind: types.FailureAPI, Error: "second"}))

	r, err := w.Load(date)
	require.NoError(t, err)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, "second", r.Failures[0].Error)
	assert.False(t, r.Failures[0].FailedAt.IsZero())
	assert.Equal(t, 1, r.Failed)

	// A later success clears the failure.
	require.NoError(t, w.Append(date, result("x", types.CategoryLLM)))
	r, err = w.Load(date)
	require.NoError(t, err)
	assert.Empty(t, r.Failures)
	assert.Equal(t, 0, r.Failed)

	// A failure never displaces an existing result.
	require.NoError(t, w.AppendFailure(date, types.RecordFailure{PaperID: "x", Kind: types.FailureTransient, Error: "late"}))
	r, err = w.Load(date)
	require.NoError(t, err)
	assert.Empty(t, r.Failures)
	assert.Len(t, r.Results, 1)
}

func TestRetain(t *testing.T) {
	w := NewWriter(t.TempDir())
	date := "2025-07-29"

	require.NoError(t, w.Append(date, result("a", types.CategoryLLM)))
	require.NoError(t, w.Append(date, result("b", types.CategoryAgents)))
	require.NoError(t, w.AppendFailure(date, types.RecordFailure{PaperID: "c", Kind: types.FailureAPI, Error: "boom"}))
	require.NoError(t, w.AppendFailure(date, types.RecordFailure{PaperID: "d", Kind: types.FailureAPI, Error: "boom"}))

	dropped, err := w.Retain(date, []string{"a", "d", "e"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, dropped)

	r, err := w.Load(date)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, r.ResultIDs())
	require.Len(t, r.Failures, 1)
	assert.Equal(t, "d", r.Failures[0].PaperID)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
}

func TestRetain_NothingToDrop(t *testing.T) {
	w := NewWriter(t.TempDir())

	dropped, err := w.Retain("2025-07-29", []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.False(t, w.Exists("2025-07-29"), "no report is created for a date that never ran")

	require.NoError(t, w.Append("2025-07-29", result("a", types.CategoryLLM)))
	before, err := os.Stat(w.Path("2025-07-29"))
	require.NoError(t, err)

	dropped, err = w.Retain("2025-07-29", []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, dropped)
	after, err := os.Stat(w.Path("2025-07-29"))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestFinalize_WritesEmptyReport(t *testing.T) {
	w := NewWriter(t.TempDir())
	r, err := w.Finalize("2025-08-02")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Succeeded)
	assert.True(t, w.Exists("2025-08-02"))
}

func TestAppend_ConcurrentWritesToOneDate(t *testing.T) {
	w := NewWriter(t.TempDir())
	date := "2025-07-29"

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Append(date, result(string(rune('a'+i)), types.CategoryLLM)))
		}()
	}
	wg.Wait()

	ids, err := w.ResultIDs(date)
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}

func TestLoad_CorruptFileIsIOError(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	path := w.Path("2025-07-29")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("results: [unterminated"), 0o644))

	_, err := w.Load("2025-07-29")
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, path, ioErr.Path)
}

func TestDates(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	for _, d := range []string{"2025-07-30", "2025-07-28", "2025-07-29"} {
		_, err := w.Finalize(d)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, reportsDir, "notes.yaml"), []byte("x: 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, reportsDir, "2025-07-31.txt"), []byte("x"), 0o644))

	dates, err := w.Dates()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-28", "2025-07-29", "2025-07-30"}, dates)
}

func TestDates_NoDirectory(t *testing.T) {
	dates, err := NewWriter(t.TempDir()).Dates()
	require.NoError(t, err)
	assert.Empty(t, dates)
}
