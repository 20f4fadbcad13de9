package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns the retry policy used for generation calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        8 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ErrorChecker decides whether an error is transient and worth another attempt.
type ErrorChecker func(err error) bool

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       *slog.Logger
	Name         string
}

// Delay computes the pause before retry number attempt (0-based) using exponential backoff.
func (c Config) Delay(attempt int) time.Duration {
	multiple := c.BackoffMultiple
	if multiple <= 0 {
		multiple = 1
	}
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(multiple, float64(attempt)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, fails with a non-transient error, or the retry budget is spent.
// The backoff pause is cut short when ctx is cancelled.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	maxRetries := opts.Config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := opts.Config.Delay(attempt - 1)
			opts.debug("retrying", "attempt", attempt+1, "max_attempts", maxRetries+1, "delay", delay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				opts.debug("succeeded after retry", "attempt", attempt+1)
			}
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%w (last error: %w)", ctxErr, err)
		}
		if opts.ErrorChecker == nil || !opts.ErrorChecker(err) {
			return zero, err
		}
		if opts.Logger != nil {
			opts.Logger.Warn("transient failure", "name", opts.Name, "attempt", attempt+1, "max_attempts", maxRetries+1, "error", err)
		}
	}

	return zero, &ExhaustedError{
		Name:     opts.Name,
		Attempts: maxRetries + 1,
		Last:     lastErr,
	}
}

func (o Options) debug(msg string, args ...any) {
	if o.Logger != nil {
		o.Logger.Debug(msg, append([]any{"name", o.Name}, args...)...)
	}
}

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retry attempts exhausted after %d tries: %v", e.Name, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
