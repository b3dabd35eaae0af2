// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clean normalizes raw catalog entries into PaperRecords and
// persists the cleaned listing under cleaned/.
package clean

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/daily-papers/internal/fsutil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const cleanedDir = "cleaned"

const arxivAbsBase = "https://arxiv.org/abs/"

// Stats holds counts from one cleaning pass.
type Stats struct {
	Input      int
	Kept       int
	Invalid    int
	Duplicates int
}

// Clean normalizes raw entries, drops those missing an id or title, and
// removes duplicates by id and by normalized title. The first occurrence
// wins; later duplicates only fill fields it left empty.
func Clean(raw []types.RawPaper) ([]types.PaperRecord, Stats) {
	stats := Stats{Input: len(raw)}
	seen := make(map[string]int)
	out := make([]types.PaperRecord, 0, len(raw))

	for _, r := range raw {
		rec, ok := Normalize(r)
		if !ok {
			stats.Invalid++
			continue
		}

		idKey := "id:" + rec.ID
		titleKey := "title:" + normalizeTitle(rec.Title)
		if idx, ok := seen[idKey]; ok {
			mergeInto(&out[idx], rec)
			stats.Duplicates++
			continue
		}
		if idx, ok := seen[titleKey]; ok && titleKey != "title:" {
			mergeInto(&out[idx], rec)
			stats.Duplicates++
			continue
		}

		idx := len(out)
		out = append(out, rec)
		seen[idKey] = idx
		if titleKey != "title:" {
			seen[titleKey] = idx
		}
	}

	stats.Kept = len(out)
	return out, stats
}

// Records returns the cleaned records of raw as a sequence. Each range
// over the sequence cleans afresh, so it can be consumed any number of times.
func Records(raw []types.RawPaper) iter.Seq[types.PaperRecord] {
	return func(yield func(types.PaperRecord) bool) {
		recs, _ := Clean(raw)
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}
}

// Normalize converts one raw entry. It reports false when the entry has no
// usable id or title.
func Normalize(r types.RawPaper) (types.PaperRecord, bool) {
	id := strings.TrimSpace(r.ID)
	title := collapseSpace(StripHTML(r.Title))
	if id == "" || title == "" {
		return types.PaperRecord{}, false
	}

	rec := types.PaperRecord{
		ID:          id,
		Title:       title,
		Abstract:    collapseSpace(StripHTML(r.Summary)),
		PublishDate: NormalizeDate(r.PublishedAt),
		SourceURL:   strings.TrimSpace(r.URL),
		GithubRepo:  strings.TrimSpace(r.GithubRepo),
		ProjectPage: strings.TrimSpace(r.ProjectPage),
	}
	if rec.SourceURL == "" {
		rec.SourceURL = arxivAbsBase + id
	}
	for _, a := range r.Authors {
		if name := collapseSpace(a.Name); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}
	for _, k := range r.Keywords {
		if k = collapseSpace(k); k != "" {
			rec.Keywords = append(rec.Keywords, k)
		}
	}
	return rec, true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	types.DateLayout,
	time.RFC1123Z,
	time.RFC1123,
}

// NormalizeDate returns s as YYYY-MM-DD, keeping the calendar date as
// written. Unrecognized input yields an empty string.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(types.DateLayout)
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse(types.DateLayout, s[:10]); err == nil {
			return t.Format(types.DateLayout)
		}
	}
	return ""
}

// markupTag matches the tags catalogs actually emit in titles and
// abstracts. Anything else that starts with '<' is text, such as "n<k".
var markupTag = regexp.MustCompile(`(?i)</?(?:a|b|i|u|s|p|br|hr|em|strong|sub|sup|span|div|ul|ol|li|code|pre|tt|blockquote|h[1-6]|img|table|tr|td|th|font|math|mi|mn|mo|mrow|msub|msup|mfrac|script|style)(?:\s+[a-z][a-z0-9:-]*\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'<>]+))*\s*/?>`)

// StripHTML returns the text content of s with tags removed and entities
// decoded. A '<' that does not open a recognized tag is kept as text.
// Input without markup is returned unchanged.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escapeBareLess(s)))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// escapeBareLess rewrites every '<' outside a markupTag match as "&lt;".
func escapeBareLess(s string) string {
	var b strings.Builder
	prev := 0
	for _, loc := range markupTag.FindAllStringIndex(s, -1) {
		b.WriteString(strings.ReplaceAll(s[prev:loc[0]], "<", "&lt;"))
		b.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(strings.ReplaceAll(s[prev:], "<", "&lt;"))
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeTitle lowercases and strips punctuation for duplicate detection.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func mergeInto(dst *types.PaperRecord, src types.PaperRecord) {
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if dst.PublishDate == "" {
		dst.PublishDate = src.PublishDate
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.GithubRepo == "" {
		dst.GithubRepo = src.GithubRepo
	}
	if dst.ProjectPage == "" {
		dst.ProjectPage = src.ProjectPage
	}
	if len(dst.Keywords) == 0 {
		dst.Keywords = src.Keywords
	}
}

// Path returns dataDir/cleaned/<date>.yaml.
func Path(dataDir, date string) string {
	return filepath.Join(dataDir, cleanedDir, date+".yaml")
}

// Write persists the cleaned records for date.
func Write(dataDir, date string, recs []types.PaperRecord) error {
	if recs == nil {
		recs = []types.PaperRecord{}
	}
	if err := fsutil.WriteYAML(Path(dataDir, date), recs); err != nil {
		return fmt.Errorf("writing cleaned records for %s: %w", date, err)
	}
	return nil
}

// Read loads the cleaned records for date. A missing file yields
// fs.ErrNotExist.
func Read(dataDir, date string) ([]types.PaperRecord, error) {
	var recs []types.PaperRecord
	if err := fsutil.ReadYAML(Path(dataDir, date), &recs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("reading cleaned records for %s: %w", date, err)
	}
	return recs, nil
}
