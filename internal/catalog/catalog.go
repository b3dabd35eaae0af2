// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog fetches the list of papers published on a date from an
// upstream catalog and caches the raw listing under metadata/.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/daily-papers/internal/fsutil"
	"github.com/pdiddy/daily-papers/internal/httputil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const metadataDir = "metadata"

const defaultUserAgent = "daily-papers/0.1"

// Fetcher retrieves the raw catalog listing for one date.
type Fetcher interface {
	// Name returns the source identifier used in logs and errors.
	Name() string

	// Fetch returns every entry the source lists for day. An empty slice
	// with a nil error means the source listed nothing for that date.
	Fetch(ctx context.Context, day time.Time) ([]types.RawPaper, error)
}

// FetchError reports a catalog that could not be reached or returned an
// unusable response.
type FetchError struct {
	Source     string
	Date       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s catalog for %s: HTTP %d: %v", e.Source, e.Date, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s catalog for %s: %v", e.Source, e.Date, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// New returns the Fetcher selected by cfg.Source. A nil client gets one
// with cfg.Timeout (default 30s).
func New(cfg types.CatalogConfig, client *http.Client) (Fetcher, error) {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	policy := httputil.Policy{MaxAttempts: types.RetryAttempts(cfg.MaxRetries), BaseDelay: 5 * time.Second, MaxDelay: time.Minute}

	switch cfg.Source {
	case "", types.SourceHuggingFace:
		return &HuggingFaceFetcher{Client: client, UserAgent: ua, Policy: policy}, nil
	case types.SourceArxiv:
		return &ArxivFetcher{
			Client:     client,
			UserAgent:  ua,
			Policy:     policy,
			Categories: cfg.ArxivCategories,
			MaxResults: cfg.MaxResults,
		}, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q (want huggingface or arxiv)", cfg.Source)
	}
}

// MetadataPath returns dataDir/metadata/<date>.json.
func MetadataPath(dataDir, date string) string {
	return filepath.Join(dataDir, metadataDir, date+".json")
}

// Load returns the raw listing for day, reading the cached metadata file
// when present and fetching otherwise. refresh forces a fetch. A fetched
// listing is written to the cache before returning. The second result
// reports whether the cache was used.
func Load(ctx context.Context, f Fetcher, dataDir string, day time.Time, refresh bool) ([]types.RawPaper, bool, error) {
	date := day.Format(types.DateLayout)
	path := MetadataPath(dataDir, date)

	if !refresh {
		raw, err := readMetadata(path)
		if err == nil {
			return raw, true, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, err
		}
	}

	raw, err := f.Fetch(ctx, day)
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		raw = []types.RawPaper{}
	}
	if err := fsutil.WriteJSON(path, raw); err != nil {
		return nil, false, fmt.Errorf("caching catalog listing: %w", err)
	}
	return raw, false, nil
}

func readMetadata(path string) ([]types.RawPaper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []types.RawPaper
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing cached listing %s: %w", path, err)
	}
	return raw, nil
}
