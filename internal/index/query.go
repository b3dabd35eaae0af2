// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const defaultLimit = 20

// Query filters a Search. Empty fields do not filter.
type Query struct {
	// Text is a full-text match over title and summary.
	Text string

	// Category restricts results to one category.
	Category string

	// From and To bound the date, inclusive (YYYY-MM-DD).
	From string
	To   string

	// Limit caps the result count (default 20).
	Limit int
}

// Hit is one indexed result.
type Hit struct {
	Date             string   `db:"date" json:"date"`
	PaperID          string   `db:"paper_id" json:"paper_id"`
	Title            string   `db:"title" json:"title"`
	TitleTranslation string   `db:"title_translation" json:"title_translation,omitempty"`
	Category         string   `db:"category" json:"category"`
	Summary          string   `db:"summary" json:"summary"`
	PointsJSON       string   `db:"innovation_points" json:"-"`
	InnovationPoints []string `db:"-" json:"innovation_points"`
	MaturityLevel    string   `db:"maturity_level" json:"maturity_level"`
	SourceURL        string   `db:"source_url" json:"source_url,omitempty"`
	ModelUsed        string   `db:"model_used" json:"model_used"`
}

var hitColumns = []string{
	"r.date AS date",
	"r.paper_id AS paper_id",
	"r.title AS title",
	"r.title_translation AS title_translation",
	"r.category AS category",
	"r.summary AS summary",
	"r.innovation_points AS innovation_points",
	"r.maturity_level AS maturity_level",
	"r.source_url AS source_url",
	"r.model_used AS model_used",
}

// Search returns results matching q, newest date first.
func (s *Store) Search(ctx context.Context, q Query) ([]Hit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	b := sq.Select(hitColumns...).From("results r")
	if q.Text != "" {
		b = b.Join("results_fts ON results_fts.docid = r.rowid").
			Where("results_fts MATCH ?", q.Text)
	}
	b = applyFilters(b, q.Category, q.From, q.To).
		OrderBy("r.date DESC", "r.rowid").
		Limit(uint64(limit))

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building search: %w", err)
	}

	var hits []Hit
	if err := s.db.SelectContext(ctx, &hits, query, args...); err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	for i := range hits {
		if err := json.Unmarshal([]byte(hits[i].PointsJSON), &hits[i].InnovationPoints); err != nil {
			return nil, fmt.Errorf("decoding innovation points of %s on %s: %w", hits[i].PaperID, hits[i].Date, err)
		}
	}
	return hits, nil
}

// TrendPoint is the number of results in one category on one date.
type TrendPoint struct {
	Date     string `db:"date" json:"date"`
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

// CategoryTrend returns per-date counts, oldest first. An empty category
// returns every category.
func (s *Store) CategoryTrend(ctx context.Context, category, from, to string) ([]TrendPoint, error) {
	b := sq.Select("r.date AS date", "r.category AS category", "COUNT(*) AS count").
		From("results r")
	b = applyFilters(b, category, from, to).
		GroupBy("r.date", "r.category").
		OrderBy("r.date", "r.category")

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building trend query: %w", err)
	}

	var points []TrendPoint
	if err := s.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("querying trend: %w", err)
	}
	return points, nil
}

// Count returns the number of indexed results.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM results`); err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}
	return n, nil
}

func applyFilters(b sq.SelectBuilder, category, from, to string) sq.SelectBuilder {
	if category != "" {
		b = b.Where(sq.Eq{"r.category": category})
	}
	if from != "" {
		b = b.Where(sq.GtOrEq{"r.date": from})
	}
	if to != "" {
		b = b.Where(sq.LtOrEq{"r.date": to})
	}
	return b
}
