// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pdiddy/daily-papers/internal/fsutil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

// DigestPaths returns the Markdown and HTML digest paths for date.
func (w *Writer) DigestPaths(date string) (md, html string) {
	base := filepath.Join(w.dataDir, digestsDir, date)
	return base + ".md", base + ".html"
}

// WriteDigest renders the report for date as digests/<date>.md and
// converts it to digests/<date>.html. It returns both paths.
func (w *Writer) WriteDigest(date string) (string, string, error) {
	r, err := w.Load(date)
	if err != nil {
		return "", "", err
	}

	mdPath, htmlPath := w.DigestPaths(date)
	src := []byte(RenderMarkdown(r))
	if err := fsutil.WriteFile(mdPath, src); err != nil {
		return "", "", &IOError{Path: mdPath, Op: "write", Err: err}
	}

	page, err := RenderHTML(src, "AI Papers "+date)
	if err != nil {
		return "", "", &IOError{Path: htmlPath, Op: "render", Err: err}
	}
	if err := fsutil.WriteFile(htmlPath, page); err != nil {
		return "", "", &IOError{Path: htmlPath, Op: "write", Err: err}
	}
	return mdPath, htmlPath, nil
}

// RenderMarkdown produces the digest for r: a category table followed by
// one section per category and a list of failed papers.
func RenderMarkdown(r *types.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# AI Papers %s\n\n", r.Date)
	fmt.Fprintf(&b, "%d papers analyzed, %d failed.\n\n", len(r.Results), len(r.Failures))

	counts := r.CategoryCounts()
	cats := make([]types.Category, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	slices.SortFunc(cats, func(a, b types.Category) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(string(a), string(b))
	})

	if len(cats) > 0 {
		b.WriteString("| Category | Papers |\n|---|---:|\n")
		for _, c := range cats {
			fmt.Fprintf(&b, "| %s | %d |\n", c, counts[c])
		}
		b.WriteString("\n")
	}

	for _, c := range cats {
		fmt.Fprintf(&b, "## %s\n\n", c)
		for _, res := range r.Results {
			if res.Category != c {
				continue
			}
			writePaper(&b, res)
		}
	}

	if len(r.Failures) > 0 {
		b.WriteString("## Failed\n\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", f.PaperID, f.Kind, escapeMarkdown(f.Error))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writePaper(b *strings.Builder, res types.AnalysisResult) {
	title := escapeMarkdown(res.Title)
	if title == "" {
		title = res.PaperID
	}
	if res.SourceURL != "" {
		fmt.Fprintf(b, "### [%s](%s)\n\n", title, res.SourceURL)
	} else {
		fmt.Fprintf(b, "### %s\n\n", title)
	}
	if res.TitleTranslation != "" && res.TitleTranslation != res.Title {
		fmt.Fprintf(b, "*%s*\n\n", escapeMarkdown(res.TitleTranslation))
	}
	fmt.Fprintf(b, "%s\n\n", escapeMarkdown(res.Summary))
	for _, p := range res.InnovationPoints {
		fmt.Fprintf(b, "- %s\n", escapeMarkdown(p))
	}
	if len(res.InnovationPoints) > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "**Maturity:** %s", res.MaturityLevel)
	if res.ModelFunction != "" {
		fmt.Fprintf(b, " | **Function:** %s", escapeMarkdown(res.ModelFunction))
	}
	b.WriteString("\n\n")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"[", `\[`,
	"]", `\]`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"<", "&lt;",
	"\n", " ",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.TrimSpace(s))
}

// RenderHTML converts Markdown to a standalone HTML page.
func RenderHTML(src []byte, title string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(src, &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(title))
	page.WriteString("<style>body{font-family:sans-serif;max-width:52rem;margin:2rem auto;line-height:1.5}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
