package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat(ProgressEmpty, 10), Bar(0, 4, 10))
	assert.Equal(t, strings.Repeat(ProgressBar, 5)+strings.Repeat(ProgressEmpty, 5), Bar(2, 4, 10))
	assert.Equal(t, strings.Repeat(ProgressBar, 10), Bar(4, 4, 10))
	assert.Equal(t, strings.Repeat(ProgressBar, 10), Bar(9, 4, 10), "overflow is clamped")
	assert.Equal(t, strings.Repeat(ProgressEmpty, 10), Bar(3, 0, 10))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "15s", FormatDuration(15*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestStatusTracker(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	st := NewStatusTracker()
	st.now = func() time.Time { return now }

	st.Start(10)
	st.Skip()
	st.Skip()
	st.Retry()
	now = now.Add(2 * time.Minute)
	st.Complete(3, 250)
	st.Complete(1, 50)

	s := st.Snapshot()
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 4, s.Done())
	assert.Equal(t, 4, s.Records)
	assert.Equal(t, 300, s.Tweets)
	assert.Equal(t, 1, s.Retries)
	assert.InDelta(t, 1.0, s.DaysPerMinute(), 0.001)

	eta, ok := s.ETA()
	require.True(t, ok)
	assert.Equal(t, 6*time.Minute, eta, "six days left at one minute per fetched day")

	st.Start(3)
	s = st.Snapshot()
	assert.Equal(t, 0, s.Done())
	_, ok = s.ETA()
	assert.False(t, ok)
}

func TestProgressDisplay(t *testing.T) {
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })

	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "(snow OR rain) lang:en", false)

	p.StartCrawl(3, 1)
	p.SkipDay("2021-01-01")
	p.StartDay("2021-01-02")
	assert.Contains(t, buf.String(), "1/3 days")
	assert.Contains(t, buf.String(), "2021-01-02")

	p.RetryDay("2021-01-02", 1, 9, 15*time.Second, errors.New("server error"))
	assert.Contains(t, buf.String(), "attempt 1 failed (server error). 9 left, retrying in 15s")

	p.CompleteDay("2021-01-02", 2, 180, "out/tweets_2021-01-02.ndjson")
	assert.Contains(t, buf.String(), "2/3 days • 180 tweets")

	p.FailDay("2021-01-03", errors.New("retries exhausted"))
	p.Complete()

	out := buf.String()
	assert.Contains(t, out, "Wrote 1 of 3 days for (snow OR rain) lang:en")
	assert.Contains(t, out, "2 records, 180 tweets")
	assert.Contains(t, out, "1 days skipped from checkpoint")
	assert.Contains(t, out, "1 retries")
	assert.Contains(t, out, "1 days failed")

	s := p.Stats()
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
}

func TestProgressDisplayVerbose(t *testing.T) {
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })

	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "snow", true)
	p.StartCrawl(2, 0)
	p.StartDay("2021-01-01")
	p.CompleteDay("2021-01-01", 1, 10, "tweets_2021-01-01.ndjson")

	assert.Contains(t, buf.String(), "→ Fetching 2021-01-01\n")
	assert.Contains(t, buf.String(), "✓ 2021-01-01 • 1 records • 10 tweets • tweets_2021-01-01.ndjson\n")
	assert.NotContains(t, buf.String(), "\r")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(nil)
		SetNoColor(false)
		SetQuietMode(false)
	})

	sender := &recordingSender{err: errors.New("no display")}
	n := NewNotifierWithSender(sender)

	n.SendSuccess("Crawl complete", "2 days written")
	n.SendError("Crawl failed", "2021-01-03")

	assert.Equal(t, []string{"Crawl complete", "Crawl failed"}, sender.titles)
	assert.Contains(t, buf.String(), "Crawl complete: 2 days written")
	assert.Contains(t, buf.String(), "Crawl failed: 2021-01-03")

	buf.Reset()
	SetQuietMode(true)
	n.SendNotification("Crawl started", "snow")
	n.SendError("Crawl failed", "boom")
	assert.NotContains(t, buf.String(), "Crawl started")
	assert.Contains(t, buf.String(), "Crawl failed: boom", "errors print in quiet mode")
	assert.Len(t, sender.titles, 4, "desktop notifications ignore quiet mode")
}

func TestNewNotifierConsoleOnly(t *testing.T) {
	n := NewNotifier(false)
	assert.Nil(t, n.sender)
	assert.Nil(t, platformSender("plan9"))
	assert.NotNil(t, platformSender("linux"))
}

func TestQuietModeSuppressesOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetQuietMode(false)
	})

	SetQuietMode(true)
	PrintLogo()
	PrintInfo("Query", "snow")
	PrintSuccess("done")
	PrintWarning("careful")
	PrintHighlight("[CRAWL]")
	assert.Empty(t, buf.String())

	PrintError("failed", "reason")
	assert.Contains(t, buf.String(), "failed: reason")
}
