package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Retry defaults for indexing.
const (
	// DefaultMaxAttempts bounds the outer indexing attempts.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay is doubled after every failed outer attempt.
	DefaultBaseDelay = 2 * time.Second

	// DefaultMaxJitter bounds the random delay added to every backoff.
	DefaultMaxJitter = 2 * time.Second

	// DefaultPopulateAttempts bounds the embed-and-upsert attempts within one outer attempt.
	DefaultPopulateAttempts = 3

	// DefaultPopulateDelay separates embed-and-upsert attempts.
	DefaultPopulateDelay = 15 * time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Backoff retries an operation with exponentially growing, jittered delays.
// The delay after failed attempt n is baseDelay*2^(n-1) plus a jitter in [0, maxJitter).
type Backoff struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	sleep       Sleeper
	jitter      func(bound time.Duration) time.Duration
}

// BackoffOption configures a Backoff.
type BackoffOption func(*Backoff)

// WithMaxAttempts sets the number of attempts.
func WithMaxAttempts(n int) BackoffOption {
	return func(b *Backoff) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay after the first failed attempt.
func WithBaseDelay(d time.Duration) BackoffOption {
	return func(b *Backoff) {
		if d >= 0 {
			b.baseDelay = d
		}
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) BackoffOption {
	return func(b *Backoff) {
		if s != nil {
			b.sleep = s
		}
	}
}

// WithJitter replaces the jitter source. fn receives the jitter bound.
func WithJitter(fn func(bound time.Duration) time.Duration) BackoffOption {
	return func(b *Backoff) {
		if fn != nil {
			b.jitter = fn
		}
	}
}

// NewBackoff creates a retry controller with the given options.
func NewBackoff(opts ...BackoffOption) *Backoff {
	b := &Backoff{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxJitter:   DefaultMaxJitter,
		sleep:       SleepContext,
		jitter:      uniformJitter,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func uniformJitter(bound time.Duration) time.Duration {
	if bound <= 0 {
		return 0
	}
	return rand.N(bound)
}

// MaxAttempts returns the attempt bound.
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}

// Delay returns the wait after failed attempt n (1-based).
func (b *Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return b.baseDelay<<(n-1) + b.jitter(b.maxJitter)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the attempts
// run out. fn receives the 1-based attempt number. After the last failed attempt
// the final error is returned inside a *domain.ServiceError.
func (b *Backoff) Do(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) error {
	var err error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		logger.Info("%s: attempt %d/%d", op, attempt, b.maxAttempts)

		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			logger.Debug("%s: not retrying: %v", op, err)
			return err
		}
		if attempt == b.maxAttempts {
			break
		}

		delay := b.Delay(attempt)
		logger.Warn("%s: attempt %d failed: %v; retrying in %.1fs", op, attempt, err, delay.Seconds())
		if serr := b.sleep(ctx, delay); serr != nil {
			return &domain.ServiceError{Op: op, Attempts: attempt, Err: errors.Join(err, serr)}
		}
	}
	return &domain.ServiceError{Op: op, Attempts: b.maxAttempts, Err: err}
}

// Fixed calls fn up to attempts times, waiting delay between failures.
// Every error is retried. The last error is returned inside a *domain.ServiceError.
func (b *Backoff) Fixed(ctx context.Context, op string, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn("%s: attempt %d/%d failed: %v", op, attempt, attempts, err)
		if serr := b.sleep(ctx, delay); serr != nil {
			return &domain.ServiceError{Op: op, Attempts: attempt, Err: errors.Join(err, serr)}
		}
	}
	return &domain.ServiceError{Op: op, Attempts: attempts, Err: err}
}
