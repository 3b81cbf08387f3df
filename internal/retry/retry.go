// Package retry separates the backoff policy (pure, unit-testable) from
// the I/O loop that applies it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/khalidmab/jobpress/internal/model"
)

// Policy bounds a retry loop: attempt count, exponential backoff with
// jitter, and a cap on total time spent waiting.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the first retry, doubled after
	MaxDelay    time.Duration // per-wait ceiling, 0 = uncapped
	MaxElapsed  time.Duration // total-wait ceiling, 0 = uncapped
}

// NextDelay returns the delay to sleep before retry number attempt
// (1-based), given how long the loop has already waited in total.
// ok is false when the policy says give up.
func (p Policy) NextDelay(attempt int, waited time.Duration) (delay time.Duration, ok bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	// Exponential: BaseDelay * 2^(attempt-1)
	delay = p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	// Apply ±30% jitter
	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	if p.MaxElapsed > 0 && waited+delay > p.MaxElapsed {
		return 0, false
	}
	return delay, true
}

// Do runs fn under the policy, sleeping between attempts. A Retry-After
// hint on an HTTPError takes precedence over the computed delay. Context
// cancellation and non-retryable errors stop the loop immediately.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var waited time.Duration

	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	for attempt := 1; ; attempt++ {
		// The loop's own context ending is final; a per-call deadline
		// inside fn is just a failed attempt.
		if ctx.Err() != nil || !isRetryable(err) {
			return zero, err
		}

		delay, ok := p.NextDelay(attempt, waited)
		if !ok {
			return zero, err
		}
		var httpErr *model.HTTPError
		if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
			delay = httpErr.RetryAfter
		}

		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: retry cancelled: %w", op, ctx.Err())
		case <-time.After(delay):
			waited += delay
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation — never retry. A DeadlineExceeded is a per-call
	// timeout and counts as an ordinary transient failure; Do checks the
	// outer context separately.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 Too Many Requests — retryable.
		if httpErr.StatusCode == 429 {
			return true
		}
		// 5xx — retryable.
		if httpErr.StatusCode >= 500 {
			return true
		}
		// 4xx (not 429) — not retryable.
		return false
	}

	// Non-HTTP errors (network, DNS, per-call timeout) — retryable.
	return true
}
