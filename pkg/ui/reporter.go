package ui

import "time"

// Reporter receives crawl progress. Implementations must be safe for use
// from the crawl goroutine while the terminal is being drawn elsewhere.
type Reporter interface {
	// StartCrawl announces the number of days in range and how many of them
	// a previous run already completed.
	StartCrawl(total, completed int)
	StartDay(day string)
	// RetryDay is called before the wait that precedes another attempt.
	RetryDay(day string, attempt, remaining int, delay time.Duration, err error)
	RateLimited(resetAt time.Time)
	CompleteDay(day string, records, tweets int, file string)
	SkipDay(day string)
	FailDay(day string, err error)
	Complete()
}

// Pauser is implemented by reporters that let the user hold the crawl
// between days.
type Pauser interface {
	IsPaused() bool
}

// NopReporter discards all progress
type NopReporter struct{}

func (NopReporter) StartCrawl(int, int) {}
func (NopReporter) StartDay(string) {}
func (NopReporter) RetryDay(string, int, int, time.Duration, error) {}
func (NopReporter) RateLimited(time.Time) {}
func (NopReporter) CompleteDay(string, int, int, string) {}
func (NopReporter) SkipDay(string) {}
func (NopReporter) FailDay(string, error) {}
func (NopReporter) Complete() {}
