package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"tweetcrawler/pkg/config"
	errs "tweetcrawler/pkg/errors"
	"tweetcrawler/pkg/logger"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}

var errTransient = errs.New(errs.ErrorTypeServerError, 503, "service unavailable")

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt yet"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{9, 1 * time.Second, "Ninth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("jittered delay %v outside [140ms, 260ms]", delay)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  350 * time.Millisecond,
		Increment: 100 * time.Millisecond,
	}

	want := []time.Duration{100, 200, 300, 350, 350}
	for i, w := range want {
		if delay := backoff.NextDelay(i + 1); delay != w*time.Millisecond {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w*time.Millisecond, delay)
		}
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 15 * time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		if delay := backoff.NextDelay(attempt); delay != 15*time.Second {
			t.Errorf("attempt %d: expected 15s, got %v", attempt, delay)
		}
	}
}

func TestFailsThenSucceedsWithinBound(t *testing.T) {
	// Fails N times then succeeds; with bound B >= N+1 the operation runs
	// N+1 times and the successful value is returned.
	for _, tc := range []struct{ failures, bound int }{
		{0, 1}, {1, 2}, {3, 10}, {9, 10}, {2, 3},
	} {
		t.Run(fmt.Sprintf("N=%d,B=%d", tc.failures, tc.bound), func(t *testing.T) {
			calls := 0
			result, err := DoWithResult(func() (string, error) {
				calls++
				if calls <= tc.failures {
					return "partial", errTransient
				}
				return "batch", nil
			}, fastConfig(tc.bound))

			if err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if calls != tc.failures+1 {
				t.Errorf("Expected %d calls, got %d", tc.failures+1, calls)
			}
			if result != "batch" {
				t.Errorf("Expected result from successful attempt, got %q", result)
			}
		})
	}
}

func TestAlwaysFailsExhaustsBound(t *testing.T) {
	for _, bound := range []int{1, 2, 10} {
		t.Run(fmt.Sprintf("B=%d", bound), func(t *testing.T) {
			calls := 0
			result, err := DoWithResult(func() (int, error) {
				calls++
				return 42, errTransient
			}, fastConfig(bound))

			if calls != bound {
				t.Errorf("Expected %d calls, got %d", bound, calls)
			}
			if result != 0 {
				t.Errorf("Expected zero result on failure, got %d", result)
			}

			var exhausted *ExhaustedError
			if !errors.As(err, &exhausted) {
				t.Fatalf("Expected ExhaustedError, got %T: %v", err, err)
			}
			if exhausted.Attempts != bound {
				t.Errorf("Expected Attempts=%d, got %d", bound, exhausted.Attempts)
			}
			if !errors.Is(err, errTransient) {
				t.Error("ExhaustedError does not wrap the underlying error")
			}
			if !IsExhausted(err) {
				t.Error("IsExhausted() = false")
			}
		})
	}
}

func TestZeroMaxAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errTransient
	}, fastConfig(0))

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if !IsExhausted(err) {
		t.Errorf("Expected ExhaustedError, got %v", err)
	}
}

func TestNonRetryableErrorAborts(t *testing.T) {
	for _, errType := range []errs.ErrorType{
		errs.ErrorTypeAuth,
		errs.ErrorTypeInvalidQuery,
		errs.ErrorTypeNotFound,
		errs.ErrorTypeConfig,
		errs.ErrorTypeUnknown,
	} {
		t.Run(string(errType), func(t *testing.T) {
			fatal := errs.New(errType, 400, "nope")
			calls := 0
			err := Do(func() error {
				calls++
				return fatal
			}, fastConfig(10))

			if calls != 1 {
				t.Errorf("Expected 1 call, got %d", calls)
			}
			if err != fatal {
				t.Errorf("Expected the original error unwrapped, got %v", err)
			}
		})
	}
}

func TestUntypedErrorsAreNotRetried(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errors.New("something odd")
	}, fastConfig(10))

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if err == nil || IsExhausted(err) {
		t.Errorf("Expected plain error, got %v", err)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "reset"), true},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, 429, "slow down"), true},
		{"server error", errs.New(errs.ErrorTypeServerError, 502, "bad gateway"), true},
		{"stream", errs.New(errs.ErrorTypeStream, 200, "bad json"), true},
		{"wrapped server error", fmt.Errorf("page 2: %w", errTransient), true},
		{"auth", errs.New(errs.ErrorTypeAuth, 401, "unauthorized"), false},
		{"invalid query", errs.New(errs.ErrorTypeInvalidQuery, 400, "bad operator"), false},
		{"raw net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), false},
		{"plain", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: time.Hour},
		RetryIf:     DefaultRetryIf,
		Context:     ctx,
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(func() error {
		calls++
		return errTransient
	}, cfg)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the wait")
	}
}

func TestAlreadyCancelledContextSkipsAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	cfg := fastConfig(3)
	cfg.Context = ctx

	err := Do(func() error {
		calls++
		return nil
	}, cfg)

	if calls != 0 {
		t.Errorf("Expected no calls, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestTransitions(t *testing.T) {
	var got []Transition
	cfg := fastConfig(3)
	cfg.OnTransition = func(tr Transition) { got = append(got, tr) }

	calls := 0
	_ = Do(func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, cfg)

	want := []struct {
		to        State
		attempt   int
		remaining int
	}{
		{Attempting, 1, 2},
		{Attempting, 2, 1},
		{Succeeded, 3, 0},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d transitions, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].To != w.to || got[i].Attempt != w.attempt || got[i].Remaining != w.remaining {
			t.Errorf("transition %d = %+v, want to=%v attempt=%d remaining=%d",
				i, got[i], w.to, w.attempt, w.remaining)
		}
		if got[i].From != Attempting {
			t.Errorf("transition %d left from %v", i, got[i].From)
		}
	}

	got = nil
	_ = Do(func() error { return errTransient }, cfg)
	if last := got[len(got)-1]; last.To != Exhausted || last.Remaining != 0 {
		t.Errorf("Expected final Exhausted transition, got %+v", last)
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		Attempting: "attempting",
		Succeeded:  "succeeded",
		Exhausted:  "exhausted",
		Aborted:    "aborted",
		State(42):  "state(42)",
	} {
		if state.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), state.String(), want)
		}
	}
}

func TestRetryLogsDiagnostics(t *testing.T) {
	log := logger.NewTestLogger()
	cfg := fastConfig(2)
	cfg.Logger = log

	_ = Do(func() error { return errTransient }, cfg)

	warns := log.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Message != "retrying operation" {
		t.Fatalf("Expected one retry warning, got %+v", warns)
	}
	if warns[0].Fields["remaining"] != 1 {
		t.Errorf("Expected remaining=1, got %v", warns[0].Fields["remaining"])
	}
	if warns[0].Fields["error_type"] != "server_error" {
		t.Errorf("Expected error_type=server_error, got %v", warns[0].Fields["error_type"])
	}
	if !log.HasMessage("max retry attempts exceeded") {
		t.Error("Expected exhaustion to be logged")
	}
}

func TestOnRetryReceivesDelay(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.Backoff = &ConstantBackoff{Delay: 2 * time.Millisecond}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	_ = Do(func() error { return errTransient }, cfg)

	if len(delays) != 2 {
		t.Fatalf("Expected 2 retries, got %d", len(delays))
	}
	for _, d := range delays {
		if d != 2*time.Millisecond {
			t.Errorf("Expected 2ms delay, got %v", d)
		}
	}
}

func TestErrorAwareBackoff(t *testing.T) {
	b := &ErrorAwareBackoff{
		Default: &ConstantBackoff{Delay: 15 * time.Second},
		ByType: map[errs.ErrorType]BackoffStrategy{
			errs.ErrorTypeRateLimit: &ConstantBackoff{Delay: time.Minute},
		},
		HonorRetryAfter: true,
		MaxDelay:        10 * time.Minute,
	}

	if d := b.NextDelayForError(1, errTransient); d != 15*time.Second {
		t.Errorf("server error delay = %v, want 15s", d)
	}

	rateLimited := errs.New(errs.ErrorTypeRateLimit, 429, "too many requests")
	if d := b.NextDelayForError(1, rateLimited); d != time.Minute {
		t.Errorf("rate limit delay = %v, want 1m", d)
	}

	rateLimited.RetryAfter = 3 * time.Minute
	if d := b.NextDelayForError(1, rateLimited); d != 3*time.Minute {
		t.Errorf("RetryAfter not honored: %v", d)
	}

	rateLimited.RetryAfter = time.Hour
	if d := b.NextDelayForError(1, rateLimited); d != 10*time.Minute {
		t.Errorf("RetryAfter not capped: %v", d)
	}

	if d := b.NextDelay(1); d != 15*time.Second {
		t.Errorf("NextDelay() = %v, want default 15s", d)
	}
}

func TestFromConfig(t *testing.T) {
	rc := config.DefaultConfig().Retry
	cfg := FromConfig(rc, logger.NewNopLogger())

	if cfg.MaxAttempts != 10 {
		t.Errorf("MaxAttempts = %d, want 10", cfg.MaxAttempts)
	}
	if d := nextDelay(cfg.Backoff, 3, errTransient); d != 15*time.Second {
		t.Errorf("default delay = %v, want 15s", d)
	}

	rc.RateLimitBackoff = config.BackoffExponential
	rc.Wait = time.Second
	cfg = FromConfig(rc, logger.NewNopLogger())
	eb := cfg.Backoff.(*ErrorAwareBackoff)
	if _, ok := eb.StrategyFor(errs.ErrorTypeRateLimit).(*ExponentialBackoff); !ok {
		t.Error("exponential rate limit backoff not configured")
	}
	if d := nextDelay(cfg.Backoff, 3, errTransient); d != time.Second {
		t.Errorf("non rate-limit delay = %v, want 1s", d)
	}

	rc.RateLimitBackoff = config.BackoffLinear
	rc.MaxWait = 5 * time.Second
	cfg = FromConfig(rc, logger.NewNopLogger())
	rateLimited := errs.New(errs.ErrorTypeRateLimit, 429, "too many requests")
	for attempt, want := range map[int]time.Duration{1: time.Second, 3: 3 * time.Second, 9: 5 * time.Second} {
		if d := nextDelay(cfg.Backoff, attempt, rateLimited); d != want {
			t.Errorf("linear rate limit delay after attempt %d = %v, want %v", attempt, d, want)
		}
	}
	if d := nextDelay(cfg.Backoff, 3, errTransient); d != time.Second {
		t.Errorf("linear backoff leaked into server errors: %v", d)
	}
}

func TestWait(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("Wait(0) = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on cancelled ctx = %v", err)
	}
}
