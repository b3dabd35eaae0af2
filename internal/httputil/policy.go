// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy bounds how often and how slowly an operation is retried. Delays
// start at BaseDelay, double per retry, and never exceed MaxDelay. Jitter
// spreads each delay by up to that fraction in either direction.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// DefaultPolicy allows one call plus three retries starting at 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    time.Minute,
		Jitter:      0.2,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Backoff returns the delay before retry n, where n is 1 for the first retry.
func (p Policy) Backoff(n int) time.Duration {
	p = p.withDefaults()
	if n < 1 {
		n = 1
	}

	d := p.MaxDelay
	if n <= 32 {
		if scaled := p.BaseDelay << (n - 1); scaled > 0 && scaled < p.MaxDelay {
			d = scaled
		}
	}

	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d += time.Duration(spread * (2*rand.Float64() - 1))
	}
	return min(max(d, 0), p.MaxDelay)
}

// RetryAfterError is implemented by errors that carry a server-requested
// delay, such as a Retry-After header on a 429.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// Do calls fn until it succeeds, returns an error that retryable rejects,
// or MaxAttempts calls have been made. The last error is returned as is so
// callers can inspect it with errors.As. A cancelled context during a wait
// returns ctx.Err().
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	p = p.withDefaults()

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts || !retryable(err) {
			return err
		}
		if err := Sleep(ctx, p.delayFor(err, attempt)); err != nil {
			return err
		}
	}
}

func (p Policy) delayFor(err error, attempt int) time.Duration {
	d := p.Backoff(attempt)
	var ra RetryAfterError
	if errors.As(err, &ra) && ra.RetryAfter() > d {
		d = min(ra.RetryAfter(), p.MaxDelay)
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
