package scanning

import (
	"context"
	"log/slog"
	"math"
	"time"
)

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = time.Second
)

// RetryPolicy controls how Invoke retries a failing model call.
// Delays grow as BaseDelay * 2^(attempt-1) with no jitter and no cap short
// of the largest time.Duration.
type RetryPolicy struct {
	// MaxRetries bounds the retries after the first attempt. Past 34
	// retries at a one second base the delay no longer fits a time.Duration
	// and Delay saturates at the maximum duration.
	MaxRetries int
	BaseDelay  time.Duration

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff sleep
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns 5 retries starting at one second
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// Delay returns the backoff before retry number attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	if attempt-1 >= 63 || p.BaseDelay > math.MaxInt64>>uint(attempt-1) {
		return time.Duration(math.MaxInt64)
	}
	return p.BaseDelay << uint(attempt-1)
}

// Invoke runs op until it succeeds, fails permanently, the context ends, or
// more than MaxRetries retries would be needed. Only one attempt is in flight
// at a time.
func Invoke(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (string, error)) (string, error) {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	attempt := 0
	for {
		text, err := op(ctx)
		if err == nil {
			return text, nil
		}
		if IsPermanent(err) {
			return "", err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		attempt++
		if attempt > policy.MaxRetries {
			return "", &InferenceError{Attempts: attempt, Err: err}
		}

		delay := policy.Delay(attempt)
		slog.Warn("Retrying model call",
			"attempt", attempt,
			"max_retries", policy.MaxRetries,
			"delay", delay,
			"error", err,
		)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
