// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pdiddy/daily-papers/internal/httputil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

// huggingFaceAPIBase is the daily papers endpoint. Declared as a var so
// tests can substitute an httptest server.
var huggingFaceAPIBase = "https://huggingface.co/api/daily_papers"

// HuggingFaceFetcher reads the Hugging Face daily papers listing.
type HuggingFaceFetcher struct {
	Client    *http.Client
	UserAgent string
	Policy    httputil.Policy
}

// Name returns the source identifier.
func (f *HuggingFaceFetcher) Name() string { return string(types.SourceHuggingFace) }

// Fetch lists the papers featured on day.
func (f *HuggingFaceFetcher) Fetch(ctx context.Context, day time.Time) ([]types.RawPaper, error) {
	date := day.Format(types.DateLayout)
	fail := func(status int, err error) error {
		return &FetchError{Source: f.Name(), Date: date, StatusCode: status, Err: err}
	}

	u := huggingFaceAPIBase + "?" + url.Values{"date": {date}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fail(0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, f.Policy)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected status: %s", snippet(body)))
	}

	raw, err := decodeDailyPapers(body)
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	return raw, nil
}

// hfEntry is one element of the daily papers array. The paper fields are
// nested under "paper" in the current API; older dumps carry them flat.
type hfEntry struct {
	Paper *hfPaper `json:"paper"`
	hfPaper
}

type hfPaper struct {
	types.RawPaper
	PublishedDate string `json:"publishedDate"`
	Published     string `json:"published"`
}

func (p hfPaper) normalize() types.RawPaper {
	raw := p.RawPaper
	if raw.PublishedAt == "" {
		raw.PublishedAt = p.PublishedDate
	}
	if raw.PublishedAt == "" {
		raw.PublishedAt = p.Published
	}
	return raw
}

// decodeDailyPapers parses the listing body. An object carrying an "error"
// key is reported as an error; any other single object is one entry.
func decodeDailyPapers(body []byte) ([]types.RawPaper, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []types.RawPaper{}, nil
	}

	var entries []hfEntry
	if body[0] == '{' {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("catalog reported error: %s", apiErr.Error)
		}
		var one hfEntry
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("parsing listing: %w", err)
		}
		entries = []hfEntry{one}
	} else if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}

	raw := make([]types.RawPaper, 0, len(entries))
	for _, e := range entries {
		if e.Paper != nil {
			raw = append(raw, e.Paper.normalize())
			continue
		}
		raw = append(raw, e.hfPaper.normalize())
	}
	return raw, nil
}

func snippet(body []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
