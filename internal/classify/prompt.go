// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/daily-papers/pkg/types"
)

// SystemPrompt is sent as the system message with every classification request.
const SystemPrompt = "You are an AI research analyst. You read paper abstracts and reply with a single JSON object, never prose."

// abstractLimit bounds the abstract length sent to the model.
const abstractLimit = 4000

var classifyPromptTmpl = template.Must(template.New("classify").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`Analyze the following AI research paper and classify it.

Respond with a JSON object with exactly these fields:
- "category": one of {{join .Categories ", "}}
- "summary": two or three sentences on what the paper does and finds
- "innovation_points": an array of 1 to 4 short strings, each one contribution
- "maturity_level": one of theory, experimental, prototype, production
- "title_translation": the title translated into Chinese
- "model_function": one sentence on what the proposed model or system does

Do not include any text outside the JSON object.

Example response:
{"category": "agents", "summary": "The paper surveys self-evolving agents and organizes methods by what evolves and when.", "innovation_points": ["A taxonomy of self-evolution", "A roadmap of open problems"], "maturity_level": "theory", "title_translation": "自进化智能体综述", "model_function": "Organizes techniques that let LLM agents improve themselves over time."}

Title: {{.Title}}
{{- if .Authors}}
Authors: {{.Authors}}
{{- end}}
{{- if .Keywords}}
Keywords: {{join .Keywords ", "}}
{{- end}}
{{- if .Code}}
Code: {{.Code}}
{{- end}}

Abstract:
{{.Abstract}}
{{- if .Feedback}}

Your previous reply could not be used: {{.Feedback}}
Reply again with only the corrected JSON object.
{{- end}}
`))

type promptData struct {
	Title      string
	Authors    string
	Keywords   []string
	Code       string
	Abstract   string
	Categories []string
	Feedback   string
}

// buildPrompt renders the classification prompt for rec. feedback, when
// set, explains why the previous reply was rejected.
func buildPrompt(rec types.PaperRecord, categories types.CategorySet, feedback string) (string, error) {
	abstract := rec.Abstract
	if abstract == "" {
		abstract = "(no abstract available)"
	}
	if r := []rune(abstract); len(r) > abstractLimit {
		abstract = string(r[:abstractLimit]) + "..."
	}

	data := promptData{
		Title:      rec.Title,
		Authors:    rec.AuthorList(8),
		Keywords:   rec.Keywords,
		Code:       rec.GithubRepo,
		Abstract:   abstract,
		Categories: categories.Strings(),
		Feedback:   feedback,
	}

	var buf bytes.Buffer
	if err := classifyPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}
