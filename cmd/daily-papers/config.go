// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/daily-papers/internal/catalog"
	"github.com/pdiddy/daily-papers/internal/classify"
	"github.com/pdiddy/daily-papers/internal/index"
	"github.com/pdiddy/daily-papers/internal/llm"
	"github.com/pdiddy/daily-papers/internal/notify"
	"github.com/pdiddy/daily-papers/internal/pipeline"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const defaultUserAgent = "daily-papers/0.1"

func setDefaults() {
	viper.SetDefault("data_dir", "data")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	viper.SetDefault("catalog.source", string(types.SourceHuggingFace))
	viper.SetDefault("catalog.timeout", 30*time.Second)
	viper.SetDefault("catalog.user_agent", defaultUserAgent)
	viper.SetDefault("catalog.max_results", 200)
	viper.SetDefault("catalog.max_retries", 3)

	viper.SetDefault("classification.timeout", 90*time.Second)
	viper.SetDefault("classification.max_retries", 3)
	viper.SetDefault("classification.retry_base_delay", 2*time.Second)
	viper.SetDefault("classification.retry_max_delay", 60*time.Second)
	viper.SetDefault("classification.retry_jitter", 0.2)
	viper.SetDefault("classification.max_parse_attempts", 2)

	viper.SetDefault("pipeline.request_delay", time.Second)

	viper.SetDefault("notify.timeout", 10*time.Second)
	viper.SetDefault("notify.max_papers", 50)

	viper.SetDefault("telemetry.service_name", "daily-papers")
}

func dataDir() string {
	return viper.GetString("data_dir")
}

// intSetting returns the integer at key, which has a registered default.
func intSetting(key string) *int {
	n := viper.GetInt(key)
	return &n
}

func catalogConfig() types.CatalogConfig {
	return types.CatalogConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("catalog.timeout"),
			UserAgent: viper.GetString("catalog.user_agent"),
		},
		Source:          types.CatalogSource(viper.GetString("catalog.source")),
		ArxivCategories: viper.GetStringSlice("catalog.arxiv_categories"),
		MaxResults:      viper.GetInt("catalog.max_results"),
		MaxRetries:      intSetting("catalog.max_retries"),
	}
}

func classificationConfig() types.ClassificationConfig {
	return types.ClassificationConfig{
		AIConfig: types.AIConfig{
			Provider:          viper.GetString("classification.provider"),
			Model:             viper.GetString("classification.model"),
			APIKey:            viper.GetString("classification.api_key"),
			FallbackProviders: viper.GetStringSlice("classification.fallback_providers"),
			Timeout:           viper.GetDuration("classification.timeout"),
			MaxRetries:        intSetting("classification.max_retries"),
			RetryBaseDelay:    viper.GetDuration("classification.retry_base_delay"),
			RetryMaxDelay:     viper.GetDuration("classification.retry_max_delay"),
			RetryJitter:       viper.GetFloat64("classification.retry_jitter"),
		},
		Categories:       viper.GetStringSlice("classification.categories"),
		MaxParseAttempts: viper.GetInt("classification.max_parse_attempts"),
	}
}

func notifyConfig() types.NotifyConfig {
	webhook := viper.GetString("notify.webhook")
	if webhook == "" {
		webhook = loadedSecrets.Get("FEISHU_WEBHOOK", "feishu-webhook")
	}
	return types.NotifyConfig{
		HTTPConfig: types.HTTPConfig{Timeout: viper.GetDuration("notify.timeout")},
		Webhook:    webhook,
		MaxPapers:  viper.GetInt("notify.max_papers"),
	}
}

func telemetryConfig() types.TelemetryConfig {
	return types.TelemetryConfig{
		OTLPEndpoint: viper.GetString("telemetry.otlp_endpoint"),
		Insecure:     viper.GetBool("telemetry.insecure"),
		ServiceName:  viper.GetString("telemetry.service_name"),
	}
}

// newClassifier builds the model clients, primary first, and wraps them in
// a Classifier. providerFlag overrides the configured provider.
func newClassifier(providerFlag string, logger *slog.Logger) (*classify.Classifier, llm.Provider, error) {
	cfg := classificationConfig()
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}

	var (
		primary llm.Provider
		key     string
		err     error
	)
	if cfg.APIKey != "" && cfg.Provider != "" {
		primary, err = llm.ParseProvider(cfg.Provider)
		key = cfg.APIKey
	} else {
		primary, key, err = llm.Select(cfg.Provider, loadedSecrets.Get)
	}
	if err != nil {
		return nil, "", err
	}

	newClient := func(p llm.Provider, key string, isPrimary bool) (*llm.Client, error) {
		c := llm.ConfigFromAI(p, key, cfg.AIConfig, isPrimary)
		c.System = classify.SystemPrompt
		c.Logger = logger
		return llm.New(c)
	}

	first, err := newClient(primary, key, true)
	if err != nil {
		return nil, "", err
	}
	clients := []classify.Completer{first}

	for _, name := range cfg.FallbackProviders {
		p, err := llm.ParseProvider(name)
		if err != nil {
			return nil, "", fmt.Errorf("fallback provider: %w", err)
		}
		if p == primary {
			continue
		}
		k := loadedSecrets.Get(p.EnvVar(), p.SecretName())
		if k == "" {
			logger.Warn("fallback provider has no API key; skipping", "provider", string(p), "env", p.EnvVar())
			continue
		}
		c, err := newClient(p, k, false)
		if err != nil {
			return nil, "", err
		}
		clients = append(clients, c)
	}

	cl, err := classify.New(clients, cfg, logger)
	if err != nil {
		return nil, "", err
	}
	return cl, primary, nil
}

// runnerOptions selects which collaborators newRunner wires.
type runnerOptions struct {
	classify bool
	provider string
	index    bool
	notify   bool
}

// buildRunner is the runner constructor used by commands. Tests replace it
// to run commands against fake collaborators.
var buildRunner = newRunner

// newRunner assembles a pipeline.Runner from configuration. The returned
// cleanup closes the history index when one was opened.
func newRunner(opts runnerOptions) (*pipeline.Runner, llm.Provider, func(), error) {
	logger := slog.Default()
	r := pipeline.NewRunner(dataDir())
	r.Logger = logger
	r.Delay = viper.GetDuration("pipeline.request_delay")
	cleanup := func() {}

	var provider llm.Provider
	if opts.classify {
		cc := catalogConfig()
		fetcher, err := catalog.New(cc, &http.Client{Timeout: cc.Timeout})
		if err != nil {
			return nil, "", cleanup, err
		}
		r.Fetcher = fetcher

		cl, p, err := newClassifier(opts.provider, logger)
		if err != nil {
			return nil, "", cleanup, err
		}
		r.Classifier = cl
		provider = p
	}

	if opts.index {
		idx, err := index.Open(dataDir())
		if err != nil {
			return nil, "", cleanup, err
		}
		r.Index = idx
		cleanup = func() { idx.Close() }
	}

	if opts.notify {
		r.Notifier = notify.New(notifyConfig(), nil)
	}
	return r, provider, cleanup, nil
}
