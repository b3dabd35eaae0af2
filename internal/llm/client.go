// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm sends single-turn prompts to one of several hosted model
// providers and classifies their failures into a small error taxonomy.
package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdiddy/daily-papers/internal/httputil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const (
	defaultTimeout     = 90 * time.Second
	defaultMaxTokens   = 2048
	defaultTemperature = 0.3
)

// Config configures a Client.
type Config struct {
	Provider Provider
	APIKey   string

	// Model defaults to Provider.DefaultModel().
	Model string

	// System is sent as the system message with every prompt.
	System string

	Timeout    time.Duration
	Policy     httputil.Policy
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ConfigFromAI maps the persisted AI settings to a client Config for p.
// The configured model override applies only to the primary provider;
// fallbacks use their own defaults.
func ConfigFromAI(p Provider, key string, ai types.AIConfig, primary bool) Config {
	cfg := Config{
		Provider: p,
		APIKey:   key,
		Timeout:  ai.Timeout,
		Policy: httputil.Policy{
			MaxAttempts: types.RetryAttempts(ai.MaxRetries),
			BaseDelay:   ai.RetryBaseDelay,
			MaxDelay:    ai.RetryMaxDelay,
			Jitter:      ai.RetryJitter,
		},
	}
	if ai.RetryJitter == 0 {
		cfg.Policy.Jitter = httputil.DefaultPolicy().Jitter
	}
	if primary {
		cfg.Model = ai.Model
	}
	return cfg
}

// Completion is a successful model reply.
type Completion struct {
	Text     string
	Provider Provider
	Model    string
	Attempts int
	Elapsed  time.Duration
}

// Client sends prompts to one provider. It is safe for sequential use.
type Client struct {
	provider Provider
	apiKey   string
	model    string
	system   string
	policy   httputil.Policy
	http     *http.Client
	claude   claudeMessages
	logger   *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &AuthError{Provider: cfg.Provider, Message: "API key is empty"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		provider: cfg.Provider,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		system:   cfg.System,
		policy:   cfg.Policy,
		http:     hc,
		logger:   logger.With("provider", string(cfg.Provider)),
	}

	switch cfg.Provider {
	case Zhipu, Doubao, OpenAI, Qwen:
	case Claude:
		c.claude = newClaudeMessages(cfg.APIKey, hc)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	if c.model == "" {
		c.model = cfg.Provider.DefaultModel()
	}
	return c, nil
}

// Provider returns the provider this client talks to.
func (c *Client) Provider() Provider { return c.provider }

// Model returns the model identifier sent with each request.
func (c *Client) Model() string { return c.model }

// Complete sends prompt and returns the model's text. Transient failures
// are retried under the client's policy; every other error is returned
// after the first attempt.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	start := time.Now()
	var (
		text     string
		attempts int
	)

	err := c.policy.Do(ctx, IsRetryable, func(ctx context.Context, attempt int) error {
		attempts = attempt
		t, err := c.send(ctx, prompt)
		if err != nil {
			c.logger.WarnContext(ctx, "model call failed", "attempt", attempt, "error", err)
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return Completion{Provider: c.provider, Model: c.model, Attempts: attempts, Elapsed: time.Since(start)}, err
	}

	c.logger.DebugContext(ctx, "model call succeeded", "attempts", attempts, "chars", len(text))
	return Completion{
		Text:     text,
		Provider: c.provider,
		Model:    c.model,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}, nil
}

func (c *Client) send(ctx context.Context, prompt string) (string, error) {
	switch c.provider {
	case Claude:
		return c.sendClaude(ctx, prompt)
	case Zhipu, Doubao, OpenAI, Qwen:
		return c.sendHTTP(ctx, prompt)
	}
	return "", fmt.Errorf("unsupported provider %q", c.provider)
}

func (c *Client) sendHTTP(ctx context.Context, prompt string) (string, error) {
	req, err := c.buildRequest(ctx, prompt)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransport(ctx, c.provider, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(c.provider, resp.StatusCode, resp.Header, body)
	}
	return c.parseResponse(body)
}
