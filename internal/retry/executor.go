package retry

import (
	"context"
	"time"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// Executor runs an operation until it succeeds, fails fatally, or the
// strategy runs out of attempts.
//
// Thread-Safety: Execute may be called concurrently. WithOnRetry returns a
// copy, so configuring one executor never affects another.
type Executor struct {
	classifier pgload.ErrorClassifier
	strategy   pgload.BackoffStrategy
	logger     pgload.Logger
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor creates a retry executor. The logger may be nil, in which case
// retries are silent. Panics if classifier or strategy is nil.
func NewExecutor(classifier pgload.ErrorClassifier, strategy pgload.BackoffStrategy, logger pgload.Logger) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
		logger:     logger,
	}
}

// WithOnRetry returns a new Executor that calls callback before each retry wait.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Execute runs operation, retrying transient failures with backoff.
// The last error is returned when attempts are exhausted.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	lastErr := operation(ctx)
	if lastErr == nil || !e.classifier.IsTransient(lastErr) {
		return lastErr
	}

	maxAttempts := e.strategy.MaxAttempts()
	for attempt := 0; maxAttempts < 0 || attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := e.strategy.NextDelay(attempt)
		if e.logger != nil {
			e.logger.Verbose("Transient error (attempt %d): %v. Retrying in %v", attempt+1, lastErr, delay)
		}
		if e.onRetry != nil {
			e.onRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		lastErr = operation(ctx)
		if lastErr == nil || !e.classifier.IsTransient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
