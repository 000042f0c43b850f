// Package retry bounds how often a failing catalog call is attempted again.
package retry

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/metrics"
)

// Policy retries rate-limited and unavailable calls with linear backoff:
// the n-th retry waits BaseDelay*n. Any other error fails immediately.
type Policy struct {
	Name       string
	MaxRetries int
	BaseDelay  time.Duration

	// Sleep waits between attempts; tests replace it. It must return early with
	// ctx.Err() when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a policy with the default sleeper.
func New(name string, maxRetries int, baseDelay time.Duration) Policy {
	return Policy{Name: name, MaxRetries: maxRetries, BaseDelay: baseDelay}
}

// Delay returns the wait before the given retry (1-based).
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(retry)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the policy runs out
// of retries. Running out yields a RetriesExhaustedError wrapping the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 0; ; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		if !errors.IsRetryable(err) {
			return zero, err
		}
		if attempt >= p.MaxRetries {
			metrics.IncRetriesExhausted(p.Name)
			slog.Warn("Retries exhausted", "policy", p.Name, "retries", p.MaxRetries, "error", err)
			return zero, errors.NewRetriesExhaustedError(p.Name, p.MaxRetries, err)
		}

		delay := p.Delay(attempt + 1)
		if hint := retryAfter(err); hint > delay {
			delay = hint
		}
		metrics.IncRetry(p.Name)
		slog.Info("Retrying after transient failure", "policy", p.Name, "retry", attempt+1, "delay", delay, "error", err)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryAfter(err error) time.Duration {
	var rateErr *errors.RateLimitError
	if stdErrors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	return 0
}
