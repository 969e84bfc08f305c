package gateway

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/user/songforge/internal/types"
)

// RetryPolicy controls how failed operations are retried. Classifier decides
// whether an error deserves another attempt; DelayFunc computes the sleep
// before the next one. When unset, errors are classified by type and delays
// follow exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Classifier   func(err error) bool
	DelayFunc    func(err error, attempt int) time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// ShouldRetry returns true if the error is retryable and the attempt count
// has not exceeded MaxAttempts.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt > p.MaxAttempts {
		return false
	}
	if p.Classifier != nil {
		return p.Classifier(err)
	}
	return classify(err)
}

// classify sorts errors by type. Caller mistakes and precondition failures
// are permanent; flaky collaborators and rejected content are worth another
// attempt. Unknown errors default to retryable.
func classify(err error) bool {
	if err == nil {
		return false
	}

	var validation *types.ValidationError
	var notFound *types.NotFoundError
	var state *types.StateError
	if errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &state) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// NextDelay returns the backoff delay before the given attempt is retried
// (1-indexed). Without a DelayFunc the delay is
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) NextDelay(err error, attempt int) time.Duration {
	if p.DelayFunc != nil {
		return p.DelayFunc(err, attempt)
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, sleeping between retries.
// Returns nil on success, ctx.Err() if the context is cancelled while
// waiting, or the last error when all attempts fail or the error is
// classified permanent.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		if attempt < p.MaxAttempts {
			if delay := p.NextDelay(err, attempt); delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
