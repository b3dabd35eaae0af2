// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"fmt"
	"strings"
)

// Provider identifies a model vendor. The set is closed; every switch over
// Provider covers all five values.
type Provider string

const (
	Zhipu  Provider = "zhipu"
	Doubao Provider = "doubao"
	OpenAI Provider = "openai"
	Qwen   Provider = "qwen"
	Claude Provider = "claude"
)

// Providers lists every provider in auto-selection order.
var Providers = []Provider{Zhipu, Doubao, OpenAI, Qwen, Claude}

// Endpoints. Declared as vars so tests can substitute an httptest server.
var (
	zhipuAPIURL   = "https://open.bigmodel.cn/api/paas/v4/chat/completions"
	doubaoAPIURL  = "https://ark.cn-beijing.volces.com/api/v3/chat/completions"
	openaiAPIURL  = "https://api.openai.com/v1/chat/completions"
	qwenAPIURL    = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	claudeBaseURL = "https://api.anthropic.com"
)

// ParseProvider maps a name (case-insensitive) to a Provider. "dashscope"
// and "anthropic" are accepted as aliases.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zhipu", "glm":
		return Zhipu, nil
	case "doubao", "ark":
		return Doubao, nil
	case "openai":
		return OpenAI, nil
	case "qwen", "dashscope":
		return Qwen, nil
	case "claude", "anthropic":
		return Claude, nil
	}
	return "", fmt.Errorf("unknown provider %q (want zhipu, doubao, openai, qwen, or claude)", s)
}

// EnvVar is the environment variable holding the provider's API key.
func (p Provider) EnvVar() string {
	switch p {
	case Zhipu:
		return "ZHIPU_API_KEY"
	case Doubao:
		return "DOUBAO_API_KEY"
	case OpenAI:
		return "OPENAI_API_KEY"
	case Qwen:
		return "DASHSCOPE_API_KEY"
	case Claude:
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

// SecretName is the .secrets/ file holding the provider's API key.
func (p Provider) SecretName() string {
	switch p {
	case Zhipu:
		return "zhipu-api-key"
	case Doubao:
		return "doubao-api-key"
	case OpenAI:
		return "openai-api-key"
	case Qwen:
		return "dashscope-api-key"
	case Claude:
		return "anthropic-api-key"
	}
	return ""
}

// DefaultModel is used when no model is configured.
func (p Provider) DefaultModel() string {
	switch p {
	case Zhipu:
		return "glm-4-flash"
	case Doubao:
		return "doubao-1-5-pro-32k-250115"
	case OpenAI:
		return "gpt-4o-mini"
	case Qwen:
		return "qwen-plus"
	case Claude:
		return "claude-sonnet-4-5-20250929"
	}
	return ""
}

func (p Provider) endpoint() string {
	switch p {
	case Zhipu:
		return zhipuAPIURL
	case Doubao:
		return doubaoAPIURL
	case OpenAI:
		return openaiAPIURL
	case Qwen:
		return qwenAPIURL
	case Claude:
		return claudeBaseURL
	}
	return ""
}

// KeyLookup returns the API key stored under an environment variable or
// secret file name, or "" when neither is set.
type KeyLookup func(envVar, secretName string) string

// Select resolves the provider to use. An explicit name must have a key;
// otherwise the first provider in Providers with a key wins.
func Select(explicit string, lookup KeyLookup) (Provider, string, error) {
	if explicit != "" {
		p, err := ParseProvider(explicit)
		if err != nil {
			return "", "", err
		}
		key := lookup(p.EnvVar(), p.SecretName())
		if key == "" {
			return "", "", &AuthError{Provider: p, Message: fmt.Sprintf("no API key: set %s or .secrets/%s", p.EnvVar(), p.SecretName())}
		}
		return p, key, nil
	}

	for _, p := range Providers {
		if key := lookup(p.EnvVar(), p.SecretName()); key != "" {
			return p, key, nil
		}
	}

	names := make([]string, len(Providers))
	for i, p := range Providers {
		names[i] = p.EnvVar()
	}
	return "", "", &AuthError{Message: "no provider API key found; set one of " + strings.Join(names, ", ")}
}
