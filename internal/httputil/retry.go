// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry policy and HTTP helpers shared by
// the catalog, model, and notification clients.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Retryable reports whether an HTTP status is worth retrying: rate limits
// and server-side failures.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request and retries rate-limited (429) and
// unavailable (502, 503, 504) responses under p. A Retry-After header in
// seconds stretches the wait when it exceeds the computed backoff.
//
// On each retried response the body is drained and closed before sleeping.
// Requests with a body are replayed through req.GetBody. Transport errors
// are returned immediately. After exhausting attempts the last response is
// returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, p Policy) (*http.Response, error) {
	p = p.withDefaults()

	for attempt := 1; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}
		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}

		if !retryGateway(resp.StatusCode) || attempt >= p.MaxAttempts {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		wait := p.Backoff(attempt)
		if ra := ParseRetryAfter(resp.Header.Get("Retry-After")); ra > wait {
			wait = min(ra, p.MaxDelay)
		}
		if err := Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func retryGateway(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ParseRetryAfter reads a Retry-After header given in seconds. HTTP-date
// values and malformed input yield zero.
func ParseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
