// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"slices"
	"time"
)

// RunStatus is the processing status of a date.
type RunStatus string

const (
	// StatusPending means no record of the date has been analyzed.
	StatusPending RunStatus = "pending"

	// StatusPartial means some, but not all, records have been analyzed.
	StatusPartial RunStatus = "partial"

	// StatusComplete means every fetched record has been analyzed.
	StatusComplete RunStatus = "complete"
)

// Phase is the step the date driver last entered for a date.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseFetching    Phase = "fetching"
	PhaseClassifying Phase = "classifying"
	PhaseWriting     Phase = "writing"
	PhaseComplete    Phase = "complete"
	PhaseFailed      Phase = "failed"
)

// RunState is the persisted progress record for one date.
type RunState struct {
	// Date is the YYYY-MM-DD date this state covers.
	Date string `json:"date" yaml:"date"`

	// Status is derived from Total and ProcessedIDs on every write.
	Status RunStatus `json:"status" yaml:"status"`

	// Phase is the driver step last entered.
	Phase Phase `json:"phase" yaml:"phase"`

	// Total is the number of cleaned records fetched for the date.
	Total int `json:"total" yaml:"total"`

	// ProcessedIDs holds, sorted, every paper id with a persisted result.
	ProcessedIDs []string `json:"processed_ids" yaml:"processed_ids"`

	// FailedIDs holds, sorted, paper ids whose last attempt failed.
	FailedIDs []string `json:"failed_ids,omitempty" yaml:"failed_ids,omitempty"`

	// RunID identifies the invocation that last touched this state.
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	// Error holds the date-level error that moved Phase to failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewRunState returns the initial state for a date that has never run.
func NewRunState(date string) RunState {
	return RunState{
		Date:   date,
		Status: StatusPending,
		Phase:  PhasePending,
	}
}

// IsProcessed reports whether id has a persisted result.
func (s *RunState) IsProcessed(id string) bool {
	_, found := slices.BinarySearch(s.ProcessedIDs, id)
	return found
}

// AddProcessed records id as processed and clears any failure for it.
// It reports whether the set changed.
func (s *RunState) AddProcessed(id string) bool {
	s.FailedIDs = removeSorted(s.FailedIDs, id)
	var changed bool
	s.ProcessedIDs, changed = insertSorted(s.ProcessedIDs, id)
	return changed
}

// AddFailed records id as failed unless it is already processed.
func (s *RunState) AddFailed(id string) bool {
	if s.IsProcessed(id) {
		return false
	}
	var changed bool
	s.FailedIDs, changed = insertSorted(s.FailedIDs, id)
	return changed
}

// DeriveStatus recomputes Status from Total and ProcessedIDs. A date whose
// run completed with zero records is complete.
func (s *RunState) DeriveStatus() {
	n := len(s.ProcessedIDs)
	switch {
	case n > 0 && n >= s.Total:
		s.Status = StatusComplete
	case n == 0 && s.Total == 0 && s.Phase == PhaseComplete:
		s.Status = StatusComplete
	case n > 0:
		s.Status = StatusPartial
	default:
		s.Status = StatusPending
	}
}

func insertSorted(ids []string, id string) ([]string, bool) {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids, false
	}
	return slices.Insert(ids, i, id), true
}

func removeSorted(ids []string, id string) []string {
	i, found := slices.BinarySearch(ids, id)
	if !found {
		return ids
	}
	return slices.Delete(ids, i, i+1)
}
