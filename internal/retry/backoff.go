package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Func is an operation that may be retried.
type Func func(ctx context.Context) error

// Config holds retry configuration.
type Config struct {
	MaxRetries int           // Attempts after the first one
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool

	// Retryable reports whether err is worth another attempt.
	// Nil retries every error.
	Retryable func(err error) bool
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  20 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Retrier runs operations with exponential backoff.
type Retrier struct {
	config Config
	logger logrus.FieldLogger
}

// New creates a new Retrier.
func New(config Config, logger logrus.FieldLogger) *Retrier {
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultConfig().MaxDelay
	}
	return &Retrier{config: config, logger: logger}
}

// Execute runs fn until it succeeds, returns a non-retryable error,
// the context ends, or the retry budget is spent.
func (r *Retrier) Execute(ctx context.Context, fn Func) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.WithField("attempts", attempt+1).Info("Operation succeeded after retries")
			}
			return nil
		}

		lastErr = err

		if r.config.Retryable != nil && !r.config.Retryable(err) {
			return err
		}

		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.delay(attempt)
		r.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay.String(),
		}).Debug("Operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry limit exceeded after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

func (r *Retrier) delay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// Up to 10% jitter.
	if r.config.Jitter {
		delay += delay * 0.1 * rand.Float64()
	}

	return time.Duration(delay)
}
