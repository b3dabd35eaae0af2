// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/daily-papers/internal/index"
	"github.com/pdiddy/daily-papers/internal/report"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the history index (sync, search, trends)",
	Long: `Index maintains a local SQLite database of every analysis result across
all reported dates. Use subcommands to sync it from reports/, run full-text
searches over titles and summaries, or chart a category over time.`,
}

// --- sync subcommand ---

var indexSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index new or changed reports",
	Long: `Sync reads reports/<date>.yaml files and replaces the indexed rows of
every date whose report changed since the last sync. Unchanged dates are
skipped.`,
	Args: cobra.NoArgs,
	RunE: runIndexSync,
}

func runIndexSync(cmd *cobra.Command, args []string) error {
	store, err := index.Open(dataDir())
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Sync(cmd.Context(), report.NewWriter(dataDir()), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d date(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- search subcommand ---

var indexSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over indexed results",
	Long: `Search matches the query against indexed titles and summaries, newest
date first. --category, --from, and --to narrow the results; with no query
the filters alone select results.`,
	RunE: runIndexSearch,
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	q := indexQueryFromFlags(cmd, args)

	store, err := index.Open(dataDir())
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(cmd.OutOrStdout(), hits, jsonOutput)
}

func formatSearchOutput(w io.Writer, hits []index.Hit, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if hits == nil {
			hits = []index.Hit{}
		}
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-10s  %-12s  %-24s  %s\n", "Date", "Paper", "Category", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, h := range hits {
		fmt.Fprintf(w, "%-10s  %-12s  %-24s  %s\n",
			h.Date, clip(h.PaperID, 12), clip(h.Category, 24), clip(h.Title, 60))
	}
	fmt.Fprintf(w, "\n%d results\n", len(hits))
	return nil
}

// --- trends subcommand ---

var indexTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Per-date result counts for a category",
	Args:  cobra.NoArgs,
	RunE:  runIndexTrends,
}

func runIndexTrends(cmd *cobra.Command, args []string) error {
	q := indexQueryFromFlags(cmd, args)

	store, err := index.Open(dataDir())
	if err != nil {
		return err
	}
	defer store.Close()

	points, err := store.CategoryTrend(cmd.Context(), q.Category, q.From, q.To)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if points == nil {
			points = []index.TrendPoint{}
		}
		return enc.Encode(points)
	}

	if len(points) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	fmt.Fprintf(w, "%-10s  %-24s  %5s\n", "Date", "Category", "Count")
	fmt.Fprintln(w, strings.Repeat("-", 43))
	for _, p := range points {
		fmt.Fprintf(w, "%-10s  %-24s  %5d\n", p.Date, clip(p.Category, 24), p.Count)
	}
	return nil
}

// --- shared helpers ---

func indexQueryFromFlags(cmd *cobra.Command, args []string) index.Query {
	category, _ := cmd.Flags().GetString("category")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	limit, _ := cmd.Flags().GetInt("limit")
	return index.Query{
		Text:     strings.Join(args, " "),
		Category: category,
		From:     from,
		To:       to,
		Limit:    limit,
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	// Filters shared by search and trends.
	for _, c := range []*cobra.Command{indexSearchCmd, indexTrendsCmd} {
		c.Flags().String("category", "", "filter by category")
		c.Flags().String("from", "", "first date (YYYY-MM-DD)")
		c.Flags().String("to", "", "last date (YYYY-MM-DD)")
		c.Flags().Bool("json", false, "output results as JSON")
	}
	indexSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")

	indexCmd.AddCommand(indexSyncCmd)
	indexCmd.AddCommand(indexSearchCmd)
	indexCmd.AddCommand(indexTrendsCmd)

	rootCmd.AddCommand(indexCmd)
}
