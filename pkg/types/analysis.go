// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"slices"
	"strings"
	"time"
)

// Category is a research-area label assigned by the classifier.
type Category string

// Default categories. The active set is configurable; these apply when the
// configuration names none.
const (
	CategoryLLM        Category = "llm"
	CategoryMultimodal Category = "multimodal"
	CategoryVision     Category = "vision"
	CategoryGeneration Category = "generation"
	CategoryAgents     Category = "agents"
	CategoryRL         Category = "reinforcement-learning"
	CategoryRobotics   Category = "robotics"
	CategorySafety     Category = "safety"
	CategoryEfficiency Category = "efficiency"
	CategoryBenchmark  Category = "benchmark"
	CategoryOther      Category = "other"
)

// DefaultCategories is the category set used when none is configured.
var DefaultCategories = []Category{
	CategoryLLM,
	CategoryMultimodal,
	CategoryVision,
	CategoryGeneration,
	CategoryAgents,
	CategoryRL,
	CategoryRobotics,
	CategorySafety,
	CategoryEfficiency,
	CategoryBenchmark,
	CategoryOther,
}

// CategorySet is an ordered, duplicate-free set of allowed categories.
type CategorySet struct {
	order []Category
	index map[Category]bool
}

// NewCategorySet builds a set from names, normalizing case and whitespace.
// An empty input yields DefaultCategories.
func NewCategorySet(names []string) CategorySet {
	s := CategorySet{index: make(map[Category]bool)}
	for _, n := range names {
		c := NormalizeCategory(n)
		if c == "" || s.index[c] {
			continue
		}
		s.index[c] = true
		s.order = append(s.order, c)
	}
	if len(s.order) == 0 {
		for _, c := range DefaultCategories {
			s.index[c] = true
			s.order = append(s.order, c)
		}
	}
	return s
}

// Contains reports whether c is an allowed category.
func (s CategorySet) Contains(c Category) bool {
	return s.index[c]
}

// List returns the categories in configured order.
func (s CategorySet) List() []Category {
	return slices.Clone(s.order)
}

// Strings returns the category names in configured order.
func (s CategorySet) Strings() []string {
	out := make([]string, len(s.order))
	for i, c := range s.order {
		out[i] = string(c)
	}
	return out
}

// NormalizeCategory lowercases and trims a category label and folds
// internal spaces and underscores to hyphens.
func NormalizeCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	return Category(s)
}

// MaturityLevel describes how far a paper's contribution is from deployment.
type MaturityLevel string

const (
	MaturityTheory       MaturityLevel = "theory"
	MaturityExperimental MaturityLevel = "experimental"
	MaturityPrototype    MaturityLevel = "prototype"
	MaturityProduction   MaturityLevel = "production"
)

// ValidMaturityLevels is the set of accepted maturity values.
var ValidMaturityLevels = map[MaturityLevel]bool{
	MaturityTheory:       true,
	MaturityExperimental: true,
	MaturityPrototype:    true,
	MaturityProduction:   true,
}

// AnalysisResult is the classifier output for one paper.
type AnalysisResult struct {
	// PaperID is the PaperRecord.ID this result describes.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Title is the original paper title, copied for report readability.
	Title string `json:"title" yaml:"title"`

	// SourceURL is the paper landing page.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// Category is always a member of the configured CategorySet.
	Category Category `json:"category" yaml:"category"`

	// Summary is a short model-written summary.
	Summary string `json:"summary" yaml:"summary"`

	// InnovationPoints lists the contributions the model identified.
	InnovationPoints []string `json:"innovation_points" yaml:"innovation_points"`

	// MaturityLevel is one of the ValidMaturityLevels.
	MaturityLevel MaturityLevel `json:"maturity_level" yaml:"maturity_level"`

	// TitleTranslation is the title translated into Chinese.
	TitleTranslation string `json:"title_translation,omitempty" yaml:"title_translation,omitempty"`

	// ModelFunction is a one-line description of what the proposed model does.
	ModelFunction string `json:"model_function,omitempty" yaml:"model_function,omitempty"`

	// ModelUsed identifies the provider and model, e.g. "zhipu/glm-4-flash".
	ModelUsed string `json:"model_used" yaml:"model_used"`

	// AnalyzedAt is when the result was produced.
	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`
}

// FailureKind classifies why a record could not be analyzed.
type FailureKind string

const (
	FailureParse     FailureKind = "parse"
	FailureAPI       FailureKind = "api"
	FailureTransient FailureKind = "transient"
)

// RecordFailure notes a paper whose analysis failed on the last attempt.
// It is retried on the next run of the same date.
type RecordFailure struct {
	PaperID  string      `json:"paper_id" yaml:"paper_id"`
	Title    string      `json:"title,omitempty" yaml:"title,omitempty"`
	Kind     FailureKind `json:"kind" yaml:"kind"`
	Error    string      `json:"error" yaml:"error"`
	FailedAt time.Time   `json:"failed_at" yaml:"failed_at"`
}

// DailyReport is the persisted per-date report: analysis results in
// processing order plus the records that failed.
type DailyReport struct {
	// Date is the YYYY-MM-DD date the report covers.
	Date string `json:"date" yaml:"date"`

	// Succeeded is the number of results.
	Succeeded int `json:"succeeded" yaml:"succeeded"`

	// Failed is the number of failures.
	Failed int `json:"failed" yaml:"failed"`

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// Results holds one entry per analyzed paper id.
	Results []AnalysisResult `json:"results" yaml:"results"`

	// Failures holds one entry per paper id that failed and has no result.
	Failures []RecordFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// ResultIDs returns the paper ids that have a result, in report order.
func (r *DailyReport) ResultIDs() []string {
	ids := make([]string, len(r.Results))
	for i, res := range r.Results {
		ids[i] = res.PaperID
	}
	return ids
}

// CategoryCounts tallies results per category.
func (r *DailyReport) CategoryCounts() map[Category]int {
	counts := make(map[Category]int)
	for _, res := range r.Results {
		counts[res.Category]++
	}
	return counts
}
