// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "daily-papers/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CatalogSource identifies the upstream paper catalog.
type CatalogSource string

const (
	SourceHuggingFace CatalogSource = "huggingface"
	SourceArxiv       CatalogSource = "arxiv"
)

// CatalogConfig holds settings for the fetch stage.
type CatalogConfig struct {
	HTTPConfig `yaml:",inline"`

	// Source selects the catalog: huggingface (default) or arxiv.
	Source CatalogSource `json:"source" yaml:"source"`

	// ArxivCategories restricts the arxiv source (default cs.AI, cs.CL, cs.CV, cs.LG).
	ArxivCategories []string `json:"arxiv_categories,omitempty" yaml:"arxiv_categories,omitempty"`

	// MaxResults caps the arxiv listing size (default 200).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MaxRetries bounds retries on rate-limited catalog requests. Nil
	// means the default of 3; 0 disables retries.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the model vendor: zhipu, doubao, openai, qwen, or
	// claude. Empty selects the first provider with a configured key.
	Provider string `json:"provider" yaml:"provider"`

	// Model overrides the provider's default model identifier.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// APIKey is the authentication key for the selected provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// FallbackProviders are tried, in order, when the active provider
	// rejects the key or reports exhausted quota.
	FallbackProviders []string `json:"fallback_providers,omitempty" yaml:"fallback_providers,omitempty"`

	// Timeout is the per-request timeout (default 90s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of retry attempts for transient API
	// failures. Nil means the default of 3; 0 disables retries.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	// RetryBaseDelay is the first backoff delay (default 2s).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`

	// RetryMaxDelay caps the backoff delay (default 60s).
	RetryMaxDelay time.Duration `json:"retry_max_delay" yaml:"retry_max_delay"`

	// RetryJitter randomizes each delay by up to this fraction (default 0.2).
	RetryJitter float64 `json:"retry_jitter" yaml:"retry_jitter"`
}

// ClassificationConfig holds settings for the classify stage.
type ClassificationConfig struct {
	AIConfig `yaml:",inline"`

	// Categories is the allowed category set (default DefaultCategories).
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// MaxParseAttempts bounds re-prompts after unparseable output (default 2).
	MaxParseAttempts int `json:"max_parse_attempts" yaml:"max_parse_attempts"`
}

// NotifyConfig holds settings for the chat webhook notifier.
type NotifyConfig struct {
	HTTPConfig `yaml:",inline"`

	// Webhook is the Feishu bot webhook URL. Empty disables notification.
	Webhook string `json:"webhook,omitempty" yaml:"webhook,omitempty"`

	// MaxPapers caps the papers listed in one card (default 50).
	MaxPapers int `json:"max_papers" yaml:"max_papers"`
}

// TelemetryConfig holds OpenTelemetry trace export settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP/HTTP collector host:port. Empty disables export.
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty"`

	// Insecure disables TLS to the collector.
	Insecure bool `json:"insecure" yaml:"insecure"`

	// ServiceName is the service.name resource attribute (default "daily-papers").
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// PipelineConfig holds settings for the per-date driver.
type PipelineConfig struct {
	// DataDir is the root for metadata/, cleaned/, reports/, state/,
	// aggregate/, digests/, and index/ (default "data").
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// RequestDelay is the pause between consecutive model calls (default 1s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`

	// Refresh re-fetches the catalog even when a cached listing exists.
	Refresh bool `json:"refresh" yaml:"refresh"`

	// Notify sends a chat notification after each date.
	Notify bool `json:"notify" yaml:"notify"`
}

// DefaultMaxRetries applies when a MaxRetries setting is nil.
const DefaultMaxRetries = 3

// RetryAttempts converts a retry setting into a total attempt count: one
// call plus the retries. Nil uses DefaultMaxRetries.
func RetryAttempts(retries *int) int {
	if retries == nil {
		return DefaultMaxRetries + 1
	}
	return max(*retries, 0) + 1
}
