// Package daterange yields the calendar days of a half-open date range.
package daterange

import (
	"fmt"
	"iter"
	"time"
)

// Layout is the ISO calendar date format used on the command line and in
// object log file names.
const Layout = "2006-01-02"

// Day is the length of one cursor step
const Day = 24 * time.Hour

// Truncate normalizes t to midnight UTC of its calendar date in t's location
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns the days start, start+1, ..., end-1. An end on or before start
// yields nothing. The sequence is lazy and can be ranged over any number of
// times.
func Days(start, end time.Time) iter.Seq[time.Time] {
	start, end = Truncate(start), Truncate(end)

	return func(yield func(time.Time) bool) {
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			if !yield(d) {
				return
			}
		}
	}
}

// Count returns how many days Days(start, end) yields
func Count(start, end time.Time) int {
	start, end = Truncate(start), Truncate(end)
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / Day)
}

// Parse parses a YYYY-MM-DD date as midnight UTC
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// Format renders the calendar date of t as YYYY-MM-DD
func Format(t time.Time) string {
	return Truncate(t).Format(Layout)
}
