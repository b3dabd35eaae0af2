// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify asks a language model to categorize and summarize a
// paper and validates the structured reply.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/daily-papers/internal/llm"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const defaultMaxParseAttempts = 2

// Completer sends one prompt to a model. *llm.Client implements it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (llm.Completion, error)
	Provider() llm.Provider
	Model() string
}

// ParseError reports model output that could not be turned into a valid
// AnalysisResult after every re-prompt.
type ParseError struct {
	PaperID  string
	Attempts int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unusable model output for %s after %d attempt(s): %s", e.PaperID, e.Attempts, e.Reason)
}

// Classifier turns PaperRecords into AnalysisResults. It holds the active
// provider index, so one Classifier serves one sequential run.
type Classifier struct {
	clients          []Completer
	active           int
	categories       types.CategorySet
	maxParseAttempts int
	logger           *slog.Logger
	now              func() time.Time
}

// New returns a Classifier that tries clients in order, moving to the next
// only when the current one reports an auth or quota failure.
func New(clients []Completer, cfg types.ClassificationConfig, logger *slog.Logger) (*Classifier, error) {
	if len(clients) == 0 {
		return nil, errors.New("classifier needs at least one model client")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := cfg.MaxParseAttempts
	if attempts <= 0 {
		attempts = defaultMaxParseAttempts
	}
	return &Classifier{
		clients:          clients,
		categories:       types.NewCategorySet(cfg.Categories),
		maxParseAttempts: attempts,
		logger:           logger,
		now:              time.Now,
	}, nil
}

// Categories returns the allowed category set.
func (c *Classifier) Categories() types.CategorySet { return c.categories }

// Provider returns the provider currently in use.
func (c *Classifier) Provider() llm.Provider { return c.clients[c.active].Provider() }

// Classify analyzes rec. Unusable replies are re-prompted with feedback up
// to the configured attempt limit and then reported as *ParseError. Model
// errors are returned as the llm package reports them; an auth or quota
// error means every configured provider has been exhausted.
func (c *Classifier) Classify(ctx context.Context, rec types.PaperRecord) (types.AnalysisResult, error) {
	var (
		feedback string
		reason   string
	)

	for attempt := 1; attempt <= c.maxParseAttempts; attempt++ {
		prompt, err := buildPrompt(rec, c.categories, feedback)
		if err != nil {
			return types.AnalysisResult{}, err
		}

		comp, err := c.complete(ctx, prompt)
		if err != nil {
			return types.AnalysisResult{}, err
		}

		reply, err := parseReply(comp.Text, c.categories)
		if err != nil {
			reason = err.Error()
			feedback = reason
			c.logger.WarnContext(ctx, "unusable model reply", "paper", rec.ID, "attempt", attempt, "reason", reason)
			continue
		}

		return c.result(rec, reply, comp), nil
	}

	return types.AnalysisResult{}, &ParseError{PaperID: rec.ID, Attempts: c.maxParseAttempts, Reason: reason}
}

func (c *Classifier) complete(ctx context.Context, prompt string) (llm.Completion, error) {
	for {
		client := c.clients[c.active]
		comp, err := client.Complete(ctx, prompt)
		if err == nil {
			return comp, nil
		}
		if !llm.IsFatal(err) || c.active+1 >= len(c.clients) {
			return comp, err
		}
		c.active++
		c.logger.WarnContext(ctx, "switching provider",
			"from", string(client.Provider()),
			"to", string(c.clients[c.active].Provider()),
			"error", err)
	}
}

func (c *Classifier) result(rec types.PaperRecord, r reply, comp llm.Completion) types.AnalysisResult {
	translation := strings.TrimSpace(r.TitleTranslation)
	if translation == "" {
		translation = rec.Title
	}
	return types.AnalysisResult{
		PaperID:          rec.ID,
		Title:            rec.Title,
		SourceURL:        rec.SourceURL,
		Category:         types.NormalizeCategory(r.Category),
		Summary:          strings.TrimSpace(r.Summary),
		InnovationPoints: r.InnovationPoints,
		MaturityLevel:    types.MaturityLevel(strings.ToLower(strings.TrimSpace(r.MaturityLevel))),
		TitleTranslation: translation,
		ModelFunction:    strings.TrimSpace(r.ModelFunction),
		ModelUsed:        string(comp.Provider) + "/" + comp.Model,
		AnalyzedAt:       c.now().UTC(),
	}
}

// reply is the JSON object the model is asked to produce.
type reply struct {
	Category         string   `json:"category"`
	Summary          string   `json:"summary"`
	InnovationPoints []string `json:"innovation_points"`
	MaturityLevel    string   `json:"maturity_level"`
	TitleTranslation string   `json:"title_translation"`
	ModelFunction    string   `json:"model_function"`
}

// parseReply extracts and validates the JSON object in text.
func parseReply(text string, categories types.CategorySet) (reply, error) {
	obj, ok := extractObject(stripCodeFences(text))
	if !ok {
		if strings.TrimSpace(text) == "" {
			return reply{}, errors.New("the reply was empty")
		}
		return reply{}, errors.New("the reply did not contain a JSON object")
	}

	var r reply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return reply{}, fmt.Errorf("the JSON object did not parse: %v", err)
	}

	var problems []string
	cat := types.NormalizeCategory(r.Category)
	switch {
	case cat == "":
		problems = append(problems, `"category" is missing`)
	case !categories.Contains(cat):
		problems = append(problems, fmt.Sprintf(`"category" %q is not one of %s`, r.Category, strings.Join(categories.Strings(), ", ")))
	}
	if strings.TrimSpace(r.Summary) == "" {
		problems = append(problems, `"summary" is empty`)
	}
	if !types.ValidMaturityLevels[types.MaturityLevel(strings.ToLower(strings.TrimSpace(r.MaturityLevel)))] {
		problems = append(problems, fmt.Sprintf(`"maturity_level" %q is not one of theory, experimental, prototype, production`, r.MaturityLevel))
	}
	if len(problems) > 0 {
		return reply{}, errors.New(strings.Join(problems, "; "))
	}

	r.InnovationPoints = slices.DeleteFunc(r.InnovationPoints, func(s string) bool {
		return strings.TrimSpace(s) == ""
	})
	for i, p := range r.InnovationPoints {
		r.InnovationPoints[i] = strings.TrimSpace(p)
	}
	if r.InnovationPoints == nil {
		r.InnovationPoints = []string{}
	}
	return r, nil
}

// stripCodeFences removes a surrounding Markdown code fence.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

// extractObject returns the first balanced top-level JSON object in s,
// ignoring braces inside strings.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
