// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/daily-papers/internal/httputil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

var defaultArxivCategories = []string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"}

// ArxivFetcher lists papers submitted to arXiv on a date in a set of
// categories. It reads the Atom feed returned by the arXiv query API.
type ArxivFetcher struct {
	Client     *http.Client
	UserAgent  string
	Policy     httputil.Policy
	Categories []string
	MaxResults int
}

// Name returns the source identifier.
func (f *ArxivFetcher) Name() string { return string(types.SourceArxiv) }

// Fetch lists the papers submitted on day.
func (f *ArxivFetcher) Fetch(ctx context.Context, day time.Time) ([]types.RawPaper, error) {
	date := day.Format(types.DateLayout)
	fail := func(status int, err error) error {
		return &FetchError{Source: f.Name(), Date: date, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.queryURL(day), nil)
	if err != nil {
		return nil, fail(0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, f.Policy)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("parsing feed: %w", err))
	}

	raw := make([]types.RawPaper, 0, len(feed.Items))
	for _, item := range feed.Items {
		id := extractArxivID(item.GUID)
		if id == "" {
			id = extractArxivID(item.Link)
		}
		p := types.RawPaper{
			ID:       id,
			Title:    item.Title,
			Summary:  item.Description,
			URL:      item.Link,
			Keywords: item.Categories,
		}
		for _, a := range item.Authors {
			if a != nil {
				p.Authors = append(p.Authors, types.RawAuthor{Name: a.Name})
			}
		}
		if item.PublishedParsed != nil {
			p.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else {
			p.PublishedAt = item.Published
		}
		raw = append(raw, p)
	}
	return raw, nil
}

func (f *ArxivFetcher) queryURL(day time.Time) string {
	cats := f.Categories
	if len(cats) == 0 {
		cats = defaultArxivCategories
	}
	maxResults := f.MaxResults
	if maxResults <= 0 {
		maxResults = 200
	}

	catTerms := make([]string, len(cats))
	for i, c := range cats {
		catTerms[i] = "cat:" + c
	}
	stamp := day.Format("20060102")
	query := fmt.Sprintf("(%s) AND submittedDate:[%s0000 TO %s2359]",
		strings.Join(catTerms, " OR "), stamp, stamp)

	v := url.Values{
		"search_query": {query},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}
	return arxivAPIBase + "?" + v.Encode()
}

// extractArxivID pulls the arXiv ID from an entry URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" becomes "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
