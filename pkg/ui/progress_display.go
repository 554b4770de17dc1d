package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay provides a clean, minimal single-line progress display.
// In verbose mode it prints one line per event instead.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	label      string
	tracker    *StatusTracker
	currentDay string
	verbose    bool
}

var _ Reporter = (*ProgressDisplay)(nil)

// NewProgressDisplay creates a progress display for a crawl of query
func NewProgressDisplay(out io.Writer, query string, verbose bool) *ProgressDisplay {
	if out == nil {
		out = Output()
	}
	return &ProgressDisplay{
		out:     out,
		label:   truncate(query, 32),
		tracker: NewStatusTracker(),
		verbose: verbose,
	}
}

// Stats returns the current counters
func (p *ProgressDisplay) Stats() Snapshot {
	return p.tracker.Snapshot()
}

// StartCrawl sets the number of days in range
func (p *ProgressDisplay) StartCrawl(total, completed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Start(total)
	if p.verbose {
		fmt.Fprintf(p.out, "%s %d days, %d already written\n", Magenta("→"), total, completed)
	}
}

// StartDay marks the start of a day's retrieval
func (p *ProgressDisplay) StartDay(day string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentDay = day
	if p.verbose {
		fmt.Fprintf(p.out, "%s Fetching %s\n", Magenta("→"), day)
		return
	}
	p.printProgress()
}

// RetryDay reports a failed attempt that will be retried
func (p *ProgressDisplay) RetryDay(day string, attempt, remaining int, delay time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Retry()
	fmt.Fprintf(p.out, "\n%s %s attempt %d failed (%v). %d left, retrying in %s\n",
		Yellow("⚠"), day, attempt, err, remaining, FormatDuration(delay))
}

// RateLimited shows a rate limit warning
func (p *ProgressDisplay) RateLimited(resetAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wait := time.Until(resetAt)
	if wait < 0 {
		wait = 0
	}
	fmt.Fprintf(p.out, "\n%s Rate limit reached. Waiting %s...\n", Yellow("⚠"), FormatDuration(wait))
}

// CompleteDay marks a day as written
func (p *ProgressDisplay) CompleteDay(day string, records, tweets int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Complete(records, tweets)
	p.currentDay = ""
	if p.verbose {
		fmt.Fprintf(p.out, "%s %s • %d records • %d tweets • %s\n", Green("✓"), day, records, tweets, Dim(file))
		return
	}
	p.printProgress()
}

// SkipDay marks a day a previous run already wrote
func (p *ProgressDisplay) SkipDay(day string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Skip()
	if p.verbose {
		fmt.Fprintf(p.out, "%s %s already written\n", Dim("•"), day)
	}
}

// FailDay marks a day whose retrieval was given up
func (p *ProgressDisplay) FailDay(day string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Fail()
	fmt.Fprintf(p.out, "\n%s %s failed: %v\n", Red("✗"), day, err)
}

// Complete prints the summary of the crawl
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.tracker.Snapshot()
	fmt.Fprintf(p.out, "\n\n%s Wrote %d of %d days for %s\n", Green("✓"), s.Completed, s.Total, Cyan(p.label))
	fmt.Fprintf(p.out, "  %s %d records, %d tweets in %s (%.1f days/min)\n",
		Dim("•"), s.Records, s.Tweets, FormatDuration(s.Elapsed), s.DaysPerMinute())
	if s.Skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d days skipped from checkpoint\n", Dim("•"), s.Skipped)
	}
	if s.Retries > 0 {
		fmt.Fprintf(p.out, "  %s %d retries\n", Dim("•"), s.Retries)
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %d days failed\n", Dim("•"), s.Failed)
	}
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	s := p.tracker.Snapshot()

	eta := "calculating..."
	if d, ok := s.ETA(); ok {
		eta = FormatDuration(d)
	}

	line := fmt.Sprintf("%s [%s] %d/%d days • %d tweets • %s",
		Cyan(p.label),
		Bar(s.Done(), s.Total, 20),
		s.Done(),
		s.Total,
		s.Tweets,
		eta,
	)
	if p.currentDay != "" {
		line += fmt.Sprintf(" • %s", p.currentDay)
	}
	if s.Failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", s.Failed)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
