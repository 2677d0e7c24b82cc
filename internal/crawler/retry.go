package crawler

import (
	"context"
	"time"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
)

// RetryPolicy is a fixed-backoff retry budget.
type RetryPolicy struct {
	Attempts int           `mapstructure:"attempts" validate:"min=1"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// DefaultRetryPolicy returns three attempts ten seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 10 * time.Second}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the budget
// is spent. It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, what string, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !fetcher.IsRetryable(err) {
			logger.Debug("giving up on non-retryable error", "what", what, "attempt", attempt, "error", err)
			return attempt, err
		}
		if attempt == attempts {
			return attempt, err
		}

		logger.Debug("retrying after backoff",
			"what", what,
			"attempt", attempt,
			"backoff", p.Backoff,
			"error", err)
		if werr := sleep(ctx, p.Backoff); werr != nil {
			return attempt, err
		}
	}
	return attempts, err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
