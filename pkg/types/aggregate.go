// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DateRange is an inclusive span of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// AggregateReport summarizes category counts across every reported date.
type AggregateReport struct {
	// DateRange spans the earliest and latest dates in PerDate.
	DateRange DateRange `json:"date_range" yaml:"date_range"`

	// CategoryCounts totals PerDate across all dates.
	CategoryCounts map[Category]int `json:"category_counts" yaml:"category_counts"`

	// TrendDeltas is the latest date's count minus the previous date's
	// count, per category. With a single date it equals that date's counts.
	TrendDeltas map[Category]int `json:"trend_deltas" yaml:"trend_deltas"`

	// PerDate maps each date to its category counts.
	PerDate map[string]map[Category]int `json:"per_date" yaml:"per_date"`

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
