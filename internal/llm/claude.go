// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// claudeMessages abstracts the SDK's message service so tests can supply a fake.
type claudeMessages interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// newClaudeMessages builds an SDK client with its own retries disabled;
// retries go through the Client policy like every other provider.
func newClaudeMessages(apiKey string, hc *http.Client) claudeMessages {
	c := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(claudeBaseURL),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	)
	return &c.Messages
}

func (c *Client) sendClaude(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   defaultMaxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(defaultTemperature),
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}

	resp, err := c.claude.New(ctx, params)
	if err != nil {
		return "", classifyClaude(ctx, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func classifyClaude(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return classifyStatus(Claude, apiErr.StatusCode, header, []byte(apiErr.RawJSON()))
	}
	return classifyTransport(ctx, Claude, err)
}
