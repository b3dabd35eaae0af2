// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runstate tracks, per date, which papers already have a persisted
// analysis result so an interrupted run resumes without repeating work.
package runstate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/daily-papers/internal/fsutil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const stateDir = "state"

// ResultSource lists the paper ids that have a persisted result for a date.
// The report writer is the source of truth; state is reconciled against it.
type ResultSource interface {
	ResultIDs(date string) ([]string, error)
}

// Tracker reads and writes state/<date>.yaml. Every read-modify-write
// holds a per-date lock.
type Tracker struct {
	dataDir string
	results ResultSource

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// New returns a Tracker rooted at dataDir. results may be nil, in which
// case state files are trusted as written.
func New(dataDir string, results ResultSource) *Tracker {
	return &Tracker{
		dataDir: dataDir,
		results: results,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Path returns dataDir/state/<date>.yaml.
func (t *Tracker) Path(date string) string {
	return filepath.Join(t.dataDir, stateDir, date+".yaml")
}

func (t *Tracker) lock(date string) func() {
	t.mu.Lock()
	l, ok := t.locks[date]
	if !ok {
		l = &sync.Mutex{}
		t.locks[date] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load returns the state for date. A date that has never run yields a
// pending state. When the result source disagrees with the stored
// processed set, the state is corrected and rewritten.
func (t *Tracker) Load(date string) (types.RunState, error) {
	defer t.lock(date)()
	return t.load(date)
}

func (t *Tracker) load(date string) (types.RunState, error) {
	st := types.NewRunState(date)
	err := fsutil.ReadYAML(t.Path(date), &st)
	stored := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.RunState{}, fmt.Errorf("loading run state for %s: %w", date, err)
	}
	st.Date = date

	if t.results == nil {
		return st, nil
	}

	ids, err := t.results.ResultIDs(date)
	if err != nil {
		return types.RunState{}, fmt.Errorf("reconciling run state for %s: %w", date, err)
	}
	processed := slices.Clone(ids)
	slices.Sort(processed)
	processed = slices.Compact(processed)

	if slices.Equal(processed, st.ProcessedIDs) {
		return st, nil
	}

	st.ProcessedIDs = processed
	st.FailedIDs = slices.DeleteFunc(st.FailedIDs, st.IsProcessed)
	if !stored && len(processed) == 0 {
		return st, nil
	}
	if err := t.save(&st); err != nil {
		return types.RunState{}, err
	}
	return st, nil
}

func (t *Tracker) save(st *types.RunState) error {
	if st.ProcessedIDs == nil {
		st.ProcessedIDs = []string{}
	}
	st.DeriveStatus()
	st.UpdatedAt = t.now().UTC()
	if err := fsutil.WriteYAML(t.Path(st.Date), st); err != nil {
		return fmt.Errorf("saving run state for %s: %w", st.Date, err)
	}
	return nil
}

// IsProcessed reports whether id already has a persisted result for date.
func (t *Tracker) IsProcessed(date, id string) (bool, error) {
	st, err := t.Load(date)
	if err != nil {
		return false, err
	}
	return st.IsProcessed(id), nil
}

// MarkProcessed records id as processed for date. Call it only after the
// result has been written to the report.
func (t *Tracker) MarkProcessed(date, id string) error {
	_, err := t.Update(date, func(st *types.RunState) {
		st.AddProcessed(id)
	})
	return err
}

// MarkFailed records that the last attempt at id failed. A processed id
// stays processed.
func (t *Tracker) MarkFailed(date, id string) error {
	_, err := t.Update(date, func(st *types.RunState) {
		st.AddFailed(id)
	})
	return err
}

// Update applies fn to the state for date under the date lock and writes
// the result. Status is recomputed after fn returns.
func (t *Tracker) Update(date string, fn func(*types.RunState)) (types.RunState, error) {
	defer t.lock(date)()

	st, err := t.load(date)
	if err != nil {
		return types.RunState{}, err
	}
	fn(&st)
	if err := t.save(&st); err != nil {
		return types.RunState{}, err
	}
	return st, nil
}

// SetPhase moves date to phase. A non-empty errMsg is recorded; entering
// any phase other than failed clears a previous error.
func (t *Tracker) SetPhase(date string, phase types.Phase, errMsg string) (types.RunState, error) {
	return t.Update(date, func(st *types.RunState) {
		st.Phase = phase
		if phase == types.PhaseFailed || errMsg != "" {
			st.Error = errMsg
		} else {
			st.Error = ""
		}
	})
}

// List returns the stored state of every date, oldest first.
func (t *Tracker) List() ([]types.RunState, error) {
	dir := filepath.Join(t.dataDir, stateDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state directory %s: %w", dir, err)
	}

	var states []types.RunState
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		date := strings.TrimSuffix(name, ".yaml")
		if _, err := time.Parse(types.DateLayout, date); err != nil {
			continue
		}
		st, err := t.Load(date)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	slices.SortFunc(states, func(a, b types.RunState) int { return strings.Compare(a.Date, b.Date) })
	return states, nil
}
