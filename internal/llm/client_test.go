// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/daily-papers/internal/httputil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

var testPolicy = httputil.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

// useEndpoint points provider p at ts for the duration of the test.
func useEndpoint(t *testing.T, p Provider, url string) {
	t.Helper()
	var target *string
	switch p {
	case Zhipu:
		target = &zhipuAPIURL
	case Doubao:
		target = &doubaoAPIURL
	case OpenAI:
		target = &openaiAPIURL
	case Qwen:
		target = &qwenAPIURL
	case Claude:
		target = &claudeBaseURL
	}
	orig := *target
	*target = url
	t.Cleanup(func() { *target = orig })
}

func newTestClient(t *testing.T, p Provider) *Client {
	t.Helper()
	c, err := New(Config{Provider: p, APIKey: "test-key", System: "be terse", Policy: testPolicy})
	require.NoError(t, err)
	return c
}

func TestComplete_ChatProviders(t *testing.T) {
	for _, p := range []Provider{Zhipu, Doubao, OpenAI} {
		t.Run(string(p), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req chatRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, p.DefaultModel(), req.Model)
				require.Len(t, req.Messages, 2)
				assert.Equal(t, "system", req.Messages[0].Role)
				assert.Equal(t, "be terse", req.Messages[0].Content)
				assert.Equal(t, "classify this", req.Messages[1].Content)

				fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  {\"category\":\"llm\"}  "},"finish_reason":"stop"}]}`)
			}))
			defer ts.Close()
			useEndpoint(t, p, ts.URL)

			comp, err := newTestClient(t, p).Complete(context.Background(), "classify this")
			require.NoError(t, err)
			assert.Equal(t, `{"category":"llm"}`, comp.Text)
			assert.Equal(t, p, comp.Provider)
			assert.Equal(t, 1, comp.Attempts)
		})
	}
}

func TestComplete_Qwen(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dashscopeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-plus", req.Model)
		assert.Equal(t, "message", req.Parameters.ResultFormat)
		require.Len(t, req.Input.Messages, 2)

		fmt.Fprint(w, `{"output":{"choices":[{"message":{"role":"assistant","content":"hello"}}]},"request_id":"r1"}`)
	}))
	defer ts.Close()
	useEndpoint(t, Qwen, ts.URL)

	comp, err := newTestClient(t, Qwen).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", comp.Text)
}

func TestComplete_QwenTextOutput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"output":{"text":"plain"}}`)
	}))
	defer ts.Close()
	useEndpoint(t, Qwen, ts.URL)

	comp, err := newTestClient(t, Qwen).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "plain", comp.Text)
}

func TestComplete_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		provider  Provider
		status    int
		body      string
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{
			name: "401 is auth", provider: OpenAI, status: 401,
			body:      `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var e *AuthError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 401, e.StatusCode)
				assert.True(t, IsFatal(err))
			},
		},
		{
			name: "openai insufficient_quota on 429 is quota", provider: OpenAI, status: 429,
			body:      `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var e *QuotaError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "insufficient_quota", e.Code)
			},
		},
		{
			name: "zhipu arrears code is quota", provider: Zhipu, status: 429,
			body:      `{"error":{"code":"1113","message":"您的账户已欠费，请充值后重试。"}}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var e *QuotaError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "1113", e.Code)
			},
		},
		{
			name: "dashscope arrearage is quota", provider: Qwen, status: 400,
			body:      `{"code":"Arrearage","message":"Access denied, please make sure your account is in good standing.","request_id":"x"}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var e *QuotaError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "402 is quota", provider: Doubao, status: 402, body: `{}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var e *QuotaError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "plain 429 is transient and retried", provider: Zhipu, status: 429,
			body:      `{"error":{"code":"1302","message":"rate limited"}}`,
			wantCalls: 3,
			check: func(t *testing.T, err error) {
				var e *TransientAPIError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 429, e.StatusCode)
				assert.False(t, IsFatal(err))
			},
		},
		{
			name: "503 is transient and retried", provider: Doubao, status: 503, body: `upstream down`,
			wantCalls: 3,
			check: func(t *testing.T, err error) {
				assert.True(t, IsRetryable(err))
				assert.Contains(t, err.Error(), "upstream down")
			},
		},
		{
			name: "400 is a plain API error", provider: OpenAI, status: 400,
			body:      `{"error":{"message":"model not found","code":"model_not_found"}}`,
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var e *APIError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "model_not_found", e.Code)
				assert.False(t, IsRetryable(err))
				assert.False(t, IsFatal(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()
			useEndpoint(t, tt.provider, ts.URL)

			comp, err := newTestClient(t, tt.provider).Complete(context.Background(), "x")
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			assert.Equal(t, int(tt.wantCalls), comp.Attempts)
		})
	}
}

func TestComplete_TransientThenSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer ts.Close()
	useEndpoint(t, OpenAI, ts.URL)

	comp, err := newTestClient(t, OpenAI).Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", comp.Text)
	assert.Equal(t, 2, comp.Attempts)
}

func TestComplete_NetworkErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	useEndpoint(t, Zhipu, url)

	_, err := newTestClient(t, Zhipu).Complete(context.Background(), "x")
	var e *TransientAPIError
	require.ErrorAs(t, err, &e)
	assert.Zero(t, e.StatusCode)
}

func TestComplete_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	useEndpoint(t, OpenAI, ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, OpenAI).Complete(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComplete_UndecodableBodyIsRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `<html>proxy error</html>`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer ts.Close()
	useEndpoint(t, Doubao, ts.URL)

	comp, err := newTestClient(t, Doubao).Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", comp.Text)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Provider: OpenAI})
	var auth *AuthError
	assert.ErrorAs(t, err, &auth)

	_, err = New(Config{Provider: "mistral", APIKey: "k"})
	assert.ErrorContains(t, err, "unsupported provider")

	c, err := New(Config{Provider: Qwen, APIKey: "k", Model: "qwen-max"})
	require.NoError(t, err)
	assert.Equal(t, "qwen-max", c.Model())
	assert.Equal(t, Qwen, c.Provider())
}

func intPtr(n int) *int { return &n }

func TestConfigFromAI(t *testing.T) {
	ai := types.AIConfig{Model: "glm-4-plus", MaxRetries: intPtr(2), RetryBaseDelay: time.Second}

	cfg := ConfigFromAI(Zhipu, "k", ai, true)
	assert.Equal(t, "glm-4-plus", cfg.Model)
	assert.Equal(t, 3, cfg.Policy.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Policy.BaseDelay)
	assert.InDelta(t, 0.2, cfg.Policy.Jitter, 1e-9)

	cfg = ConfigFromAI(Qwen, "k", ai, false)
	assert.Empty(t, cfg.Model, "fallbacks use their default model")
}

func TestConfigFromAI_RetryCount(t *testing.T) {
	tests := []struct {
		name    string
		retries *int
		want    int
	}{
		{"unset uses default", nil, types.DefaultMaxRetries + 1},
		{"zero disables retries", intPtr(0), 1},
		{"explicit count", intPtr(5), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ConfigFromAI(Zhipu, "k", types.AIConfig{MaxRetries: tt.retries}, true)
			assert.Equal(t, tt.want, cfg.Policy.MaxAttempts)
		})
	}
}

func TestComplete_ZeroRetriesCallsOnce(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer ts.Close()
	useEndpoint(t, Zhipu, ts.URL)

	cfg := ConfigFromAI(Zhipu, "k", types.AIConfig{MaxRetries: intPtr(0), RetryBaseDelay: time.Millisecond}, true)
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "classify this")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

// fakeClaude records the params it receives and replies with fixed content.
type fakeClaude struct {
	params anthropic.MessageNewParams
	resp   *anthropic.Message
	err    error
}

func (f *fakeClaude) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = params
	return f.resp, f.err
}

func TestComplete_ClaudeFake(t *testing.T) {
	c := newTestClient(t, Claude)
	fake := &fakeClaude{resp: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"category":`},
			{Type: "text", Text: `"agents"}`},
		},
	}}
	c.claude = fake

	comp, err := c.Complete(context.Background(), "classify")
	require.NoError(t, err)
	assert.Equal(t, `{"category":"agents"}`, comp.Text)
	assert.Equal(t, anthropic.Model("claude-sonnet-4-5-20250929"), fake.params.Model)
	require.Len(t, fake.params.System, 1)
	assert.Equal(t, "be terse", fake.params.System[0].Text)
}

func TestComplete_ClaudeTransportError(t *testing.T) {
	c := newTestClient(t, Claude)
	c.claude = &fakeClaude{err: errors.New("connection reset by peer")}

	_, err := c.Complete(context.Background(), "x")
	assert.True(t, IsRetryable(err))
}

func TestComplete_ClaudeHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name: "401", status: 401,
			body: `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			check: func(t *testing.T, err error) {
				var e *AuthError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "low credit", status: 400,
			body: `{"type":"error","error":{"type":"invalid_request_error","message":"Your credit balance is too low to access the Anthropic API."}}`,
			check: func(t *testing.T, err error) {
				var e *QuotaError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "overloaded", status: 529,
			body: `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			check: func(t *testing.T, err error) {
				assert.True(t, IsRetryable(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()
			useEndpoint(t, Claude, ts.URL)

			c, err := New(Config{Provider: Claude, APIKey: "k", Policy: httputil.Policy{MaxAttempts: 1}})
			require.NoError(t, err)
			_, err = c.Complete(context.Background(), "x")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
