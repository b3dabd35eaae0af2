// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/daily-papers/internal/httputil"
)

// AuthError reports a rejected or missing API key. It is never retried.
type AuthError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (HTTP %d): %s", providerLabel(e.Provider), e.StatusCode, e.Message)
}

// QuotaError reports an exhausted balance or quota. It is never retried.
type QuotaError struct {
	Provider   Provider
	StatusCode int
	Code       string
	Message    string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: quota exhausted (HTTP %d, %s): %s", providerLabel(e.Provider), e.StatusCode, e.Code, e.Message)
}

// TransientAPIError reports a failure worth retrying: rate limiting, a
// server error, a timeout, or a dropped connection.
type TransientAPIError struct {
	Provider   Provider
	StatusCode int
	Message    string
	Wait       time.Duration
	Err        error
}

func (e *TransientAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: transient failure: %s", providerLabel(e.Provider), e.Message)
	}
	return fmt.Sprintf("%s: transient failure (HTTP %d): %s", providerLabel(e.Provider), e.StatusCode, e.Message)
}

func (e *TransientAPIError) Unwrap() error { return e.Err }

// RetryAfter returns the server-requested delay, if any.
func (e *TransientAPIError) RetryAfter() time.Duration { return e.Wait }

// APIError reports a non-retryable request failure other than auth or
// quota, such as a malformed request or unknown model.
type APIError struct {
	Provider   Provider
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: request failed (HTTP %d): %s", providerLabel(e.Provider), e.StatusCode, e.Message)
}

func providerLabel(p Provider) string {
	if p == "" {
		return "llm"
	}
	return string(p)
}

// IsRetryable reports whether err is a TransientAPIError.
func IsRetryable(err error) bool {
	var t *TransientAPIError
	return errors.As(err, &t)
}

// IsFatal reports whether err means the provider cannot serve any further
// request this run: a rejected key or exhausted quota.
func IsFatal(err error) bool {
	var a *AuthError
	var q *QuotaError
	return errors.As(err, &a) || errors.As(err, &q)
}

// Provider-specific error codes that mean the account cannot pay.
var quotaCodes = map[string]bool{
	"insufficient_quota":  true, // OpenAI
	"1113":                true, // Zhipu: account in arrears
	"Arrearage":           true, // DashScope
	"AccountOverdueError": true, // Volcengine Ark
	"QuotaExhausted":      true,
}

// Provider-specific error codes that mean the key is bad.
var authCodes = map[string]bool{
	"invalid_api_key":     true, // OpenAI
	"1000":                true, // Zhipu: authentication failed
	"1001":                true,
	"1002":                true,
	"InvalidApiKey":       true, // DashScope
	"AuthenticationError": true, // Volcengine Ark
}

// classifyStatus turns a non-200 response into the error taxonomy.
func classifyStatus(p Provider, status int, header http.Header, body []byte) error {
	code, msg := parseErrorBody(body)
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case quotaCodes[code] || status == http.StatusPaymentRequired || mentionsBalance(msg):
		return &QuotaError{Provider: p, StatusCode: status, Code: code, Message: msg}
	case authCodes[code] || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: p, StatusCode: status, Message: msg}
	case httputil.Retryable(status):
		return &TransientAPIError{Provider: p, StatusCode: status, Message: msg, Wait: httputil.ParseRetryAfter(header.Get("Retry-After"))}
	default:
		return &APIError{Provider: p, StatusCode: status, Code: code, Message: msg}
	}
}

func mentionsBalance(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "credit balance") || strings.Contains(m, "insufficient balance") || strings.Contains(msg, "余额不足")
}

// classifyTransport wraps a failed round trip. A cancelled caller context
// is returned unwrapped so callers stop; everything else is transient.
func classifyTransport(ctx context.Context, p Provider, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := err.Error()
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		msg = "timeout: " + msg
	}
	return &TransientAPIError{Provider: p, Message: msg, Err: err}
}

// parseErrorBody extracts a code and message from the error shapes used by
// the supported providers:
//
//	{"error": {"code": "1113", "message": "..."}}     chat completions
//	{"code": "Arrearage", "message": "..."}           DashScope
func parseErrorBody(body []byte) (code, msg string) {
	var nested struct {
		Error *struct {
			Code    json.RawMessage `json:"code"`
			Type    string          `json:"type"`
			Message string          `json:"message"`
		} `json:"error"`
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &nested); err != nil {
		return "", strings.TrimSpace(truncate(string(body), 300))
	}
	if e := nested.Error; e != nil {
		code = rawCode(e.Code)
		if code == "" {
			code = e.Type
		}
		return code, e.Message
	}
	return rawCode(nested.Code), nested.Message
}

// rawCode renders a JSON string or number code as text.
func rawCode(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
