package retry

import (
	"context"
	"fmt"
	"time"
)

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // Exponential backoff
	// ShouldRetry reports whether err is transient. Nil means every error is.
	ShouldRetry func(err error) bool
}

func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.ShouldRetry != nil && !config.ShouldRetry(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		delay := config.Delay
		if config.Backoff {
			delay = time.Duration(1<<(attempt-1)) * config.Delay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if config.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}
