package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "tweetcrawler/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the retry that follows attempt
	NextDelay(attempt int) time.Duration
	// Reset resets the backoff strategy to initial state
	Reset()
}

// ErrorBackoff is a BackoffStrategy that can also look at the failed
// attempt's error when choosing a delay.
type ErrorBackoff interface {
	BackoffStrategy
	NextDelayForError(attempt int, err error) time.Duration
}

func nextDelay(b BackoffStrategy, attempt int, err error) time.Duration {
	if eb, ok := b.(ErrorBackoff); ok {
		return eb.NextDelayForError(attempt, err)
	}
	return b.NextDelay(attempt)
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))

	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Reset is a no-op; the delay depends only on the attempt number
func (eb *ExponentialBackoff) Reset() {}

// LinearBackoff implements linear backoff strategy
type LinearBackoff struct {
	// BaseDelay is the delay after the first attempt
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Increment is the amount to increase delay by each attempt
	Increment time.Duration
	// JitterFactor adds randomness (0.0 to 1.0)
	JitterFactor float64
}

// NextDelay calculates the next delay with linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))

	if lb.MaxDelay > 0 && delay > float64(lb.MaxDelay) {
		delay = float64(lb.MaxDelay)
	}

	if lb.JitterFactor > 0 {
		jitter := delay * lb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Reset is a no-op for linear backoff
func (lb *LinearBackoff) Reset() {}

// ConstantBackoff waits the same Delay between every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Reset is a no-op for constant backoff
func (cb *ConstantBackoff) Reset() {}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorAwareBackoff picks a strategy by error type and, when asked, never
// waits less than the server's advertised RetryAfter.
type ErrorAwareBackoff struct {
	// Default is used for error types without an entry in ByType
	Default BackoffStrategy
	// ByType overrides the strategy for specific error types
	ByType map[errs.ErrorType]BackoffStrategy
	// HonorRetryAfter raises the delay to the error's RetryAfter when larger
	HonorRetryAfter bool
	// MaxDelay caps a server-advertised RetryAfter (0 means no cap)
	MaxDelay time.Duration
}

// StrategyFor returns the strategy used for the given error type
func (b *ErrorAwareBackoff) StrategyFor(t errs.ErrorType) BackoffStrategy {
	if s, ok := b.ByType[t]; ok && s != nil {
		return s
	}
	if b.Default != nil {
		return b.Default
	}
	return &ConstantBackoff{}
}

// NextDelay returns the default strategy's delay
func (b *ErrorAwareBackoff) NextDelay(attempt int) time.Duration {
	return b.StrategyFor("").NextDelay(attempt)
}

// NextDelayForError returns the delay for the failed attempt's error type
func (b *ErrorAwareBackoff) NextDelayForError(attempt int, err error) time.Duration {
	delay := b.StrategyFor(errs.TypeOf(err)).NextDelay(attempt)

	if b.HonorRetryAfter {
		ra := errs.RetryAfterOf(err)
		if b.MaxDelay > 0 && ra > b.MaxDelay {
			ra = b.MaxDelay
		}
		if ra > delay {
			delay = ra
		}
	}

	return delay
}

// Reset resets every underlying strategy
func (b *ErrorAwareBackoff) Reset() {
	if b.Default != nil {
		b.Default.Reset()
	}
	for _, s := range b.ByType {
		if s != nil {
			s.Reset()
		}
	}
}
