// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data records shared by the daily-papers stages:
// catalog entries as fetched, normalized paper records, per-paper analysis
// results, per-date run state, and the cross-date aggregate.
package types

import (
	"encoding/json"
	"strings"
)

// DateLayout is the canonical calendar-date format used for file names,
// report keys, and normalized publish dates.
const DateLayout = "2006-01-02"

// RawPaper is a catalog entry as returned by a source, before cleaning.
// Fields may be missing, padded with whitespace, or contain HTML.
type RawPaper struct {
	// ID is the source identifier, an arXiv id for both supported sources.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as published by the source.
	Title string `json:"title" yaml:"title"`

	// Summary is the abstract as published by the source.
	Summary string `json:"summary" yaml:"summary"`

	// Authors lists author names in source order.
	Authors []RawAuthor `json:"authors" yaml:"authors"`

	// PublishedAt is the publication timestamp in whatever format the
	// source uses (RFC 3339, date only, or empty).
	PublishedAt string `json:"publishedAt" yaml:"published_at"`

	// URL is the canonical landing page when the source provides one.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// GithubRepo is the code repository linked by the source, if any.
	GithubRepo string `json:"githubRepo,omitempty" yaml:"github_repo,omitempty"`

	// ProjectPage is the project homepage linked by the source, if any.
	ProjectPage string `json:"projectPage,omitempty" yaml:"project_page,omitempty"`

	// Keywords are source-provided topic keywords.
	Keywords []string `json:"ai_keywords,omitempty" yaml:"keywords,omitempty"`
}

// RawAuthor is a single author entry. Sources encode authors either as
// plain strings or as objects with a name field; both decode here.
type RawAuthor struct {
	Name string `json:"name" yaml:"name"`
}

// UnmarshalJSON accepts "Jane Doe" as well as {"name": "Jane Doe"}.
func (a *RawAuthor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Name = obj.Name
	return nil
}

// PaperRecord is a cleaned catalog entry. ID and Title are never empty and
// PublishDate, when set, is in DateLayout form.
type PaperRecord struct {
	// ID is the arXiv identifier (e.g. "2507.21046").
	ID string `json:"id" yaml:"id"`

	// Title is the whitespace-normalized title.
	Title string `json:"title" yaml:"title"`

	// Authors lists author names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the plain-text abstract with markup removed.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PublishDate is the YYYY-MM-DD publication date, or empty when unknown.
	PublishDate string `json:"publish_date" yaml:"publish_date"`

	// SourceURL is the landing page, defaulting to the arXiv abstract page.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// GithubRepo is the linked code repository, if any.
	GithubRepo string `json:"github_repo,omitempty" yaml:"github_repo,omitempty"`

	// ProjectPage is the linked project homepage, if any.
	ProjectPage string `json:"project_page,omitempty" yaml:"project_page,omitempty"`

	// Keywords are source-provided topic keywords.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// AuthorList joins author names for display, truncating long lists.
func (p PaperRecord) AuthorList(max int) string {
	if max <= 0 || len(p.Authors) <= max {
		return strings.Join(p.Authors, ", ")
	}
	return strings.Join(p.Authors[:max], ", ") + " et al."
}
