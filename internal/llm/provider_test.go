// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) KeyLookup {
	return func(envVar, secretName string) string {
		if v := env[envVar]; v != "" {
			return v
		}
		return env[secretName]
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"zhipu", Zhipu},
		{"GLM", Zhipu},
		{"doubao", Doubao},
		{"openai", OpenAI},
		{" Qwen ", Qwen},
		{"dashscope", Qwen},
		{"anthropic", Claude},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseProvider("gemini")
	assert.ErrorContains(t, err, "unknown provider")
}

func TestProviderTablesAreComplete(t *testing.T) {
	seenEnv := map[string]bool{}
	for _, p := range Providers {
		assert.NotEmpty(t, p.EnvVar(), p)
		assert.NotEmpty(t, p.SecretName(), p)
		assert.NotEmpty(t, p.DefaultModel(), p)
		assert.NotEmpty(t, p.endpoint(), p)
		assert.False(t, seenEnv[p.EnvVar()], "duplicate env var %s", p.EnvVar())
		seenEnv[p.EnvVar()] = true
	}
	assert.Equal(t, "DASHSCOPE_API_KEY", Qwen.EnvVar())
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		env      map[string]string
		want     Provider
		wantKey  string
		wantErr  string
	}{
		{
			name:    "first configured provider wins",
			env:     map[string]string{"OPENAI_API_KEY": "sk-o", "DASHSCOPE_API_KEY": "sk-q"},
			want:    OpenAI,
			wantKey: "sk-o",
		},
		{
			name:    "zhipu precedes others",
			env:     map[string]string{"ANTHROPIC_API_KEY": "a", "ZHIPU_API_KEY": "z"},
			want:    Zhipu,
			wantKey: "z",
		},
		{
			name:    "secret file counts",
			env:     map[string]string{"anthropic-api-key": "a"},
			want:    Claude,
			wantKey: "a",
		},
		{
			name:     "explicit provider",
			explicit: "qwen",
			env:      map[string]string{"ZHIPU_API_KEY": "z", "DASHSCOPE_API_KEY": "q"},
			want:     Qwen,
			wantKey:  "q",
		},
		{
			name:     "explicit provider without key",
			explicit: "claude",
			env:      map[string]string{"ZHIPU_API_KEY": "z"},
			wantErr:  "ANTHROPIC_API_KEY",
		},
		{
			name:    "nothing configured",
			env:     map[string]string{},
			wantErr: "no provider API key found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, key, err := Select(tt.explicit, lookupFrom(tt.env))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestParseErrorBody(t *testing.T) {
	tests := []struct {
		name, body, code, msg string
	}{
		{"chat string code", `{"error":{"code":"1113","message":"arrears"}}`, "1113", "arrears"},
		{"chat numeric code", `{"error":{"code":1302,"message":"busy"}}`, "1302", "busy"},
		{"chat type fallback", `{"error":{"type":"insufficient_quota","message":"quota"}}`, "insufficient_quota", "quota"},
		{"chat null code", `{"error":{"code":null,"type":"","message":"m"}}`, "", "m"},
		{"dashscope", `{"code":"Throttling","message":"slow down"}`, "Throttling", "slow down"},
		{"not json", `bad gateway`, "", "bad gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := parseErrorBody([]byte(tt.body))
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.msg, msg)
		})
	}
}
