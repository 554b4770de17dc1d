package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SlidingWindow allows at most maxRequests in any windowSize interval. It
// matches the search API's fifteen minute request windows.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	pausedUntil time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	if now.Before(sw.pausedUntil) {
		return false
	}
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		if err := sleep(ctx, sw.timeToWait()); err != nil {
			return err
		}
	}
	return nil
}

func (sw *SlidingWindow) timeToWait() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	if now.Before(sw.pausedUntil) {
		return sw.pausedUntil.Sub(now)
	}
	if len(sw.requests) > 0 {
		if d := sw.windowSize - now.Sub(sw.requests[0]); d > 0 {
			return d
		}
	}
	return 100 * time.Millisecond
}

// PauseUntil denies requests until t, for when the server reports that the
// current window is used up.
func (sw *SlidingWindow) PauseUntil(t time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if t.After(sw.pausedUntil) {
		sw.pausedUntil = t
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
	sw.pausedUntil = time.Time{}
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Pacer enforces a minimum interval between consecutive requests
type Pacer struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewPacer creates a pacer that spaces requests at least interval apart
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval, now: time.Now}
}

// Allow reports whether a request may go out now and records it if so
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return false
	}
	p.last = now
	return true
}

// Wait blocks until the interval since the previous request has passed
func (p *Pacer) Wait(ctx context.Context) error {
	for !p.Allow() {
		p.mu.Lock()
		d := p.interval - p.now().Sub(p.last)
		p.mu.Unlock()

		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Reset forgets the previous request
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = time.Time{}
}

// Multi waits on every limiter in order
type Multi []Limiter

// Allow reports whether every limiter allows a request. Limiters after the
// first refusal are not consulted.
func (m Multi) Allow() bool {
	for _, l := range m {
		if !l.Allow() {
			return false
		}
	}
	return true
}

// Wait blocks on each limiter in turn
func (m Multi) Wait(ctx context.Context) error {
	for _, l := range m {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets every limiter
func (m Multi) Reset() {
	for _, l := range m {
		l.Reset()
	}
}

// PauseUntil forwards to every limiter that supports pausing
func (m Multi) PauseUntil(t time.Time) {
	for _, l := range m {
		if p, ok := l.(Pauser); ok {
			p.PauseUntil(t)
		}
	}
}

// Pauser is implemented by limiters that can hold off all requests until a
// given time
type Pauser interface {
	PauseUntil(t time.Time)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
