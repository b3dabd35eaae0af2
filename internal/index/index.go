// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index keeps a SQLite copy of every analysis result so past
// dates can be searched and category trends queried without reading each
// report file. The reports stay the source of truth; the index is
// rebuilt from them incrementally by Sync.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/daily-papers/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "papers.db"
)

// ReportSource lists and loads per-date reports. *report.Writer implements it.
type ReportSource interface {
	Dates() ([]string, error)
	Path(date string) string
	Load(date string) (*types.DailyReport, error)
}

// Store is the history index database.
type Store struct {
	db *sqlx.DB
}

// Path returns dataDir/index/papers.db.
func Path(dataDir string) string {
	return filepath.Join(dataDir, indexDir, dbFile)
}

// Open opens or creates the index under dataDir and ensures the schema.
func Open(dataDir string) (*Store, error) {
	path := Path(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS results (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			paper_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			title_translation TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			innovation_points TEXT NOT NULL DEFAULT '[]',
			maturity_level TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			model_used TEXT NOT NULL DEFAULT '',
			UNIQUE(date, paper_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_category ON results(category)`,
		`CREATE INDEX IF NOT EXISTS idx_results_date ON results(date)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			date TEXT PRIMARY KEY,
			file_mod_time TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS results_fts USING fts4(title, summary)`,
		`CREATE TRIGGER IF NOT EXISTS results_ai AFTER INSERT ON results BEGIN
			INSERT INTO results_fts(docid, title, summary) VALUES (new.rowid, new.title, new.summary);
		END`,
		`CREATE TRIGGER IF NOT EXISTS results_ad AFTER DELETE ON results BEGIN
			DELETE FROM results_fts WHERE docid = old.rowid;
		END`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SyncSummary holds counts from one Sync.
type SyncSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of dates examined.
func (s SyncSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Sync indexes every report whose file changed since it was last indexed.
// A changed date has its rows replaced wholesale. Progress lines go to w.
func (s *Store) Sync(ctx context.Context, src ReportSource, w io.Writer) (SyncSummary, error) {
	dates, err := src.Dates()
	if err != nil {
		return SyncSummary{}, err
	}

	var summary SyncSummary
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		info, err := os.Stat(src.Path(date))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", date, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var stored string
		err = s.db.GetContext(ctx, &stored, `SELECT file_mod_time FROM indexing_status WHERE date = ?`, date)
		if err == nil && stored == modTime {
			fmt.Fprintf(w, "skipped %s\n", date)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		r, err := src.Load(date)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", date, err)
			summary.Failed++
			continue
		}

		if err := s.indexDate(ctx, r, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", date, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d results)\n", date, len(r.Results))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d results)\n", date, len(r.Results))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

func (s *Store) indexDate(ctx context.Context, r *types.DailyReport, modTime string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE date = ?`, r.Date); err != nil {
		return fmt.Errorf("deleting old rows: %w", err)
	}

	if len(r.Results) > 0 {
		ins := sq.Insert("results").Columns(
			"date", "paper_id", "title", "title_translation", "category",
			"summary", "innovation_points", "maturity_level", "source_url", "model_used",
		)
		for _, res := range r.Results {
			points, err := json.Marshal(res.InnovationPoints)
			if err != nil {
				return fmt.Errorf("encoding innovation points of %s: %w", res.PaperID, err)
			}
			ins = ins.Values(
				r.Date, res.PaperID, res.Title, res.TitleTranslation, string(res.Category),
				res.Summary, string(points), string(res.MaturityLevel), res.SourceURL, res.ModelUsed,
			)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("building insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting results: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (date, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(date) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		r.Date, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}
