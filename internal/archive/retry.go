package archive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Backoff strategy names accepted in configuration.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next one. Attempts are 1-based.
type RetryPolicy interface {
	MaxAttempts() int
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// FixedRetryPolicy waits the same interval between every attempt.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a fixed-interval policy.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts, delay: delay}
}

// MaxAttempts returns the total attempt budget, initial try included.
func (p *FixedRetryPolicy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry reports whether attempt may be followed by another.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	return retryable(err, attempt, p.maxAttempts)
}

// Backoff returns the wait before the attempt following attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration { return p.delay }

// ExponentialRetryPolicy doubles the wait on each attempt, capped at maxDelay.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds an exponential policy.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts returns the total attempt budget, initial try included.
func (p *ExponentialRetryPolicy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry reports whether attempt may be followed by another.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	return retryable(err, attempt, p.maxAttempts)
}

// Backoff returns base*2^(attempt-1), capped at maxDelay.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay)
}

// NewRetryPolicy selects a policy by strategy name.
func NewRetryPolicy(strategy string, maxAttempts int, delay time.Duration) (RetryPolicy, error) {
	switch strategy {
	case BackoffFixed, "":
		return NewFixedRetryPolicy(maxAttempts, delay), nil
	case BackoffExponential:
		return NewExponentialRetryPolicy(maxAttempts, delay, time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q", strategy)
	}
}

func retryable(err error, attempt, maxAttempts int) bool {
	if err == nil {
		return false
	}
	if attempt >= maxAttempts {
		return false
	}
	// Request timeouts count as failed attempts and are retried; only an
	// outer cancellation stops the loop.
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Sleep waits for delay or until the context finishes, whichever comes first.
func Sleep(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
