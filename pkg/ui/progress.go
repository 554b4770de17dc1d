package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// StatusTracker keeps the day and record counters of a crawl
type StatusTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	skipped   int
	failed    int
	retries   int
	records   int
	tweets    int
	startTime time.Time
	now       func() time.Time
}

// Snapshot is a point-in-time copy of a StatusTracker
type Snapshot struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Retries   int
	Records   int
	Tweets    int
	Elapsed   time.Duration
}

// Done is the number of days no longer pending
func (s Snapshot) Done() int {
	return s.Completed + s.Skipped
}

// DaysPerMinute is the processing rate over the days fetched in this run
func (s Snapshot) DaysPerMinute() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Completed) / s.Elapsed.Minutes()
}

// ETA estimates the time left from the rate of days fetched in this run.
// It returns false until at least one day has been fetched.
func (s Snapshot) ETA() (time.Duration, bool) {
	if s.Completed == 0 || s.Elapsed <= 0 {
		return 0, false
	}
	remaining := s.Total - s.Done()
	if remaining <= 0 {
		return 0, true
	}
	perDay := s.Elapsed / time.Duration(s.Completed)
	return perDay * time.Duration(remaining), true
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Start resets the counters for a crawl of total days
func (st *StatusTracker) Start(total int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.total = total
	st.completed, st.skipped, st.failed, st.retries = 0, 0, 0, 0
	st.records, st.tweets = 0, 0
	st.startTime = st.now()
}

// Complete counts a fetched and written day
func (st *StatusTracker) Complete(records, tweets int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.completed++
	st.records += records
	st.tweets += tweets
}

// Skip counts a day a previous run already wrote
func (st *StatusTracker) Skip() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.skipped++
}

// Fail counts a day that could not be retrieved
func (st *StatusTracker) Fail() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failed++
}

// Retry counts one retry wait
func (st *StatusTracker) Retry() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.retries++
}

// Snapshot returns the current counters
func (st *StatusTracker) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Snapshot{
		Total:     st.total,
		Completed: st.completed,
		Skipped:   st.skipped,
		Failed:    st.failed,
		Retries:   st.retries,
		Records:   st.records,
		Tweets:    st.tweets,
		Elapsed:   st.now().Sub(st.startTime),
	}
}

// Bar renders a done/total progress bar width cells wide
func Bar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
