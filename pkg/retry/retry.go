package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tweetcrawler/pkg/config"
	errs "tweetcrawler/pkg/errors"
	"tweetcrawler/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// State is the position of one retry run in its state machine
type State int

const (
	// Attempting is the initial state; the operation is about to run or has
	// failed retryably with attempts left.
	Attempting State = iota
	// Succeeded is terminal: the operation returned nil.
	Succeeded
	// Exhausted is terminal: every allowed attempt failed.
	Exhausted
	// Aborted is terminal: a non-retryable error or cancellation.
	Aborted
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition describes one edge taken by the state machine
type Transition struct {
	From      State
	To        State
	Attempt   int
	Remaining int
	Delay     time.Duration
	Err       error
}

// ExhaustedError is returned when every allowed attempt failed. It wraps the
// error from the last attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err carries an ExhaustedError
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// Config holds retry configuration
type Config struct {
	// MaxAttempts bounds the number of times the operation runs. Values
	// below 1 are treated as 1.
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry wait
	OnRetry func(attempt int, err error, delay time.Duration)
	// OnTransition is called on every state change, including the
	// Attempting to Attempting self-loop
	OnTransition func(Transition)
	// Context for cancellation
	Context context.Context
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns the crawler's retry policy: ten attempts, a fixed
// fifteen second wait, retrying only the transient error kinds.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: 15 * time.Second},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
	}
}

// FromConfig builds a retry configuration from the retry section of the
// application config. Rate-limit errors get their own strategy and honor the
// server's advertised reset time.
func FromConfig(rc config.RetryConfig, log logger.Logger) *Config {
	constant := &ConstantBackoff{Delay: rc.Wait}

	var rateLimit BackoffStrategy = constant
	switch rc.RateLimitBackoff {
	case config.BackoffLinear:
		rateLimit = &LinearBackoff{
			BaseDelay: rc.Wait,
			MaxDelay:  rc.MaxWait,
			Increment: rc.Wait,
		}
	case config.BackoffExponential:
		rateLimit = &ExponentialBackoff{
			BaseDelay:    rc.Wait,
			MaxDelay:     rc.MaxWait,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		}
	}

	return &Config{
		MaxAttempts: rc.MaxAttempts,
		Backoff: &ErrorAwareBackoff{
			Default: constant,
			ByType: map[errs.ErrorType]BackoffStrategy{
				errs.ErrorTypeRateLimit: rateLimit,
			},
			HonorRetryAfter: true,
			MaxDelay:        rc.MaxWait,
		},
		RetryIf: DefaultRetryIf,
		Context: context.Background(),
		Logger:  log,
	}
}

// DefaultRetryIf retries only the closed set of transient error kinds:
// network, rate limit, server error and stream protocol errors.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsRetryable(errs.TypeOf(err))
}

// Do executes an operation with retry logic
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = &ConstantBackoff{}
	}
	backoff.Reset()

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	remaining := maxAttempts
	attempt := 0

	transition := func(to State, delay time.Duration, err error) {
		if cfg.OnTransition != nil {
			cfg.OnTransition(Transition{
				From:      Attempting,
				To:        to,
				Attempt:   attempt,
				Remaining: remaining,
				Delay:     delay,
				Err:       err,
			})
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			transition(Aborted, 0, err)
			return err
		}

		attempt++
		remaining--
		err := op()

		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			transition(Succeeded, 0, nil)
			return nil
		}

		if !retryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"attempt": attempt,
					"error":   err.Error(),
				})
			}
			transition(Aborted, 0, err)
			return err
		}

		if remaining <= 0 {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt,
					"last_error": err.Error(),
				})
			}
			transition(Exhausted, 0, err)
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := nextDelay(backoff, attempt, err)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":    attempt,
				"remaining":  remaining,
				"error":      err.Error(),
				"error_type": string(errs.TypeOf(err)),
				"delay":      delay,
			})
		}
		transition(Attempting, delay, err)

		if werr := Wait(ctx, delay); werr != nil {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retry cancelled", map[string]interface{}{
					"attempt": attempt,
					"reason":  werr.Error(),
				})
			}
			transition(Aborted, 0, werr)
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic.
// On success the result of the successful attempt is returned; otherwise the
// zero value.
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(func() error {
		r, opErr := op()
		if opErr != nil {
			return opErr
		}
		result = r
		return nil
	}, cfg)
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}
