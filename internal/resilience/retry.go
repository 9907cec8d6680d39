// Package resilience provides retry with exponential backoff for calls to
// the upstream SaaS platforms.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	// A value of 1 disables retries. Default: 3.
	Attempts int

	// BaseDelay is the sleep before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default: 15s.
	MaxDelay time.Duration

	// Jitter is the random fraction applied to each delay
	// (0.25 means ±25%). Default: 0.25.
	Jitter float64

	// Retryable overrides the default IsTransient check when set.
	Retryable func(err error) bool
}

// DefaultPolicy returns the retry policy used for all upstream API calls.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  15 * time.Second,
		Jitter:    0.25,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 15 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Do runs fn under p, retrying transient failures with exponential backoff.
// Context cancellation stops the loop immediately.
func Do(ctx context.Context, p Policy, operation string, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(lastErr) || attempt >= p.Attempts-1 {
			break
		}

		zap.L().Warn("retrying after transient failure",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(backoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func backoff(attempt int, p Policy) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
