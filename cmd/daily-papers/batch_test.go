// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/daily-papers/internal/catalog"
	"github.com/pdiddy/daily-papers/internal/llm"
	"github.com/pdiddy/daily-papers/internal/pipeline"
	"github.com/pdiddy/daily-papers/pkg/types"
)

type stubFetcher struct {
	listings map[string][]types.RawPaper
	errs     map[string]error
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) Fetch(_ context.Context, day time.Time) ([]types.RawPaper, error) {
	date := day.Format(types.DateLayout)
	if err := f.errs[date]; err != nil {
		return nil, err
	}
	return f.listings[date], nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(_ context.Context, rec types.PaperRecord) (types.AnalysisResult, error) {
	return types.AnalysisResult{
		PaperID:       rec.ID,
		Title:         rec.Title,
		SourceURL:     rec.SourceURL,
		Category:      types.CategoryLLM,
		Summary:       "summary of " + rec.Title,
		MaturityLevel: types.MaturityExperimental,
		ModelUsed:     "openai/gpt-4o-mini",
		AnalyzedAt:    time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC),
	}, nil
}

// useStubRunner makes commands build their runner over dir with the given
// fetcher and a classifier that always succeeds.
func useStubRunner(t *testing.T, f catalog.Fetcher) string {
	t.Helper()
	dir := t.TempDir()
	prev := buildRunner
	buildRunner = func(runnerOptions) (*pipeline.Runner, llm.Provider, func(), error) {
		r := pipeline.NewRunner(dir)
		r.Fetcher = f
		r.Classifier = stubClassifier{}
		r.Delay = 0
		return r, llm.OpenAI, func() {}, nil
	}
	t.Cleanup(func() { buildRunner = prev })
	return dir
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	if shutdownTelemetry != nil {
		require.NoError(t, shutdownTelemetry(context.Background()))
	}
	return out.String(), err
}

func TestBatchDaily_FailedDateExitsNonZero(t *testing.T) {
	f := &stubFetcher{
		listings: map[string][]types.RawPaper{
			"2025-07-28": {{ID: "2507.00001", Title: "Scaling agents", Summary: "<p>An abstract.</p>"}},
		},
		errs: map[string]error{
			"2025-07-29": &catalog.FetchError{Source: "stub", Date: "2025-07-29", StatusCode: 503, Err: errors.New("unavailable")},
		},
	}
	dir := useStubRunner(t, f)

	out, err := executeCommand(t, "batch", "daily", "--start", "2025-07-28", "--end", "2025-07-29")
	require.Error(t, err)
	assert.Equal(t, "1 of 2 date(s) had failures", err.Error())

	assert.Contains(t, out, "== 2025-07-28")
	assert.Contains(t, out, "== 2025-07-29")
	assert.Contains(t, out, "2025-07-28  complete")
	assert.Contains(t, out, "2025-07-29  failed")
	assert.Contains(t, out, "2 date(s), 1 failed, 0 record failure(s)")
	assert.Contains(t, out, "HTTP 503")

	assert.FileExists(t, pipeline.NewRunner(dir).Reports.Path("2025-07-28"))
	assert.NoFileExists(t, pipeline.NewRunner(dir).Reports.Path("2025-07-29"))
}

func TestBatchDaily_AllDatesSucceed(t *testing.T) {
	f := &stubFetcher{listings: map[string][]types.RawPaper{
		"2025-07-28": {{ID: "2507.00001", Title: "Scaling agents"}},
		"2025-07-29": {{ID: "2507.00002", Title: "Vision transformers"}},
	}}
	dir := useStubRunner(t, f)

	out, err := executeCommand(t, "batch", "daily", "--start", "2025-07-28", "--end", "2025-07-29")
	require.NoError(t, err)
	assert.Contains(t, out, "2 date(s), 0 failed, 0 record failure(s)")

	agg, err := pipeline.NewRunner(dir).Reports.LoadAggregate()
	require.NoError(t, err)
	assert.Equal(t, 2, agg.CategoryCounts[types.CategoryLLM])
}

func TestBatchDaily_RejectsBadDate(t *testing.T) {
	useStubRunner(t, &stubFetcher{})

	_, err := executeCommand(t, "batch", "daily", "--start", "28/07/2025", "--end", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--start")
}
