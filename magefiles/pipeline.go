//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that drive the CLI over the data directory.
type Pipeline mg.Namespace

// Range runs batch daily from START to END (END defaults to START).
func (Pipeline) Range() error {
	mg.Deps(Build, Init)
	start := os.Getenv("START")
	if start == "" {
		return fmt.Errorf("set START=YYYY-MM-DD (and optionally END)")
	}
	args := []string{"--data-dir", dataDir(), "batch", "daily", "--start", start}
	if end := os.Getenv("END"); end != "" {
		args = append(args, "--end", end)
	}
	if os.Getenv("NOTIFY") != "" {
		args = append(args, "--notify")
	}
	return sh.RunV(binPath(), args...)
}

// Rebuild recomputes the aggregate from every report, re-renders the
// digest for DATE (default: yesterday), and resyncs the index.
func (Pipeline) Rebuild() error {
	mg.Deps(Build)
	args := []string{"--data-dir", dataDir(), "advanced", "--rebuild"}
	if date := os.Getenv("DATE"); date != "" {
		args = append(args, date)
	}
	if err := sh.RunV(binPath(), args...); err != nil {
		return err
	}
	return sh.RunV(binPath(), "--data-dir", dataDir(), "index", "sync")
}

// Status prints per-date run state.
func (Pipeline) Status() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "--data-dir", dataDir(), "status")
}
