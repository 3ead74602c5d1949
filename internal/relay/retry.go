// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts is the number of user-stats attempts per refresh.
	DefaultMaxAttempts = 3

	// DefaultInitialDelay is the wait after the first failed attempt.
	DefaultInitialDelay = time.Second
)

// RetryPolicy controls FetchWithRetry.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryPolicy returns 3 attempts starting at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, InitialDelay: DefaultInitialDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	return p
}

// Backoff returns the wait after failed attempt k (1-based):
// InitialDelay * 2^(k-1). No jitter, no cap.
func (p RetryPolicy) Backoff(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	return p.InitialDelay * time.Duration(1<<uint(k-1))
}

// FetchWithRetry calls UserStats up to MaxAttempts times. After failed
// attempt k it waits Backoff(k) unless k was the last attempt. Exhaustion
// returns a *RetryError. Cancellation of ctx stops immediately with the
// context error.
func (c *Client) FetchWithRetry(ctx context.Context, apiID string, policy RetryPolicy) (*UserStats, error) {
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		c.logf("relay: fetching stats (attempt %d/%d)", attempt, policy.MaxAttempts)

		stats, err := c.UserStats(ctx, apiID)
		if err == nil {
			return stats, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		c.logf("relay: attempt %d failed: %v", attempt, err)

		if attempt == policy.MaxAttempts {
			break
		}
		delay := policy.Backoff(attempt)
		c.logf("relay: retrying in %v", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &RetryError{Attempts: policy.MaxAttempts, Err: lastErr}
}

// IsRetryExhausted reports whether err came from an exhausted FetchWithRetry.
func IsRetryExhausted(err error) bool {
	var re *RetryError
	return errors.As(err, &re)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
