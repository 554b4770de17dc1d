package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tweetcrawler/pkg/checkpoint"
	"tweetcrawler/pkg/config"
	"tweetcrawler/pkg/daterange"
	errs "tweetcrawler/pkg/errors"
	"tweetcrawler/pkg/logger"
	"tweetcrawler/pkg/query"
	"tweetcrawler/pkg/retry"
	"tweetcrawler/pkg/search"
	"tweetcrawler/pkg/ui"
)

// ErrCheckpointExists is returned when an earlier run left a checkpoint and
// neither resume nor force restart was requested
var ErrCheckpointExists = errors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")

// Fetcher retrieves every result page of one day's query
type Fetcher interface {
	Fetch(ctx context.Context, spec query.Spec) (*search.Batch, error)
}

// Appender stores one day's batch as a single object log entry
type Appender interface {
	Append(ctx context.Context, day string, records []json.RawMessage) (string, error)
	RunID() string
}

// DayError reports the day a run stopped at
type DayError struct {
	Day string
	Err error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("crawl %s: %v", e.Day, e.Err)
}

func (e *DayError) Unwrap() error {
	return e.Err
}

// Summary describes a finished or aborted run
type Summary struct {
	RunID    string
	Total    int
	Days     int
	Skipped  int
	Records  int
	Tweets   int
	Pages    int
	Files    []string
	Duration time.Duration
}

// Crawler runs one query over a date range
type Crawler struct {
	cfg          *config.Config
	builder      *query.Builder
	fetcher      Fetcher
	writer       Appender
	checkpoints  *checkpoint.Manager
	reporter     ui.Reporter
	logger       logger.Logger
	resume       bool
	forceRestart bool
	pollInterval time.Duration
	now          func() time.Time
}

// Option configures a Crawler
type Option func(*Crawler)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithReporter sends progress to r. A reporter that also implements
// ui.Pauser can hold the crawl between days.
func WithReporter(r ui.Reporter) Option {
	return func(c *Crawler) { c.reporter = r }
}

// WithCheckpoint records completed days through m
func WithCheckpoint(m *checkpoint.Manager) Option {
	return func(c *Crawler) { c.checkpoints = m }
}

// WithResume continues from an existing checkpoint
func WithResume(resume bool) Option {
	return func(c *Crawler) { c.resume = resume }
}

// WithForceRestart discards an existing checkpoint
func WithForceRestart(force bool) Option {
	return func(c *Crawler) { c.forceRestart = force }
}

// New creates a Crawler. cfg must already be validated.
func New(cfg *config.Config, fetcher Fetcher, writer Appender, opts ...Option) (*Crawler, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrorTypeConfig, 0, "crawler: nil config")
	}
	if fetcher == nil || writer == nil {
		return nil, errs.New(errs.ErrorTypeConfig, 0, "crawler: fetcher and writer are required")
	}

	c := &Crawler{
		cfg:          cfg,
		builder:      query.NewBuilder(cfg.Search),
		fetcher:      fetcher,
		writer:       writer,
		reporter:     ui.NopReporter{},
		logger:       logger.GetLogger(),
		pollInterval: 250 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.NewNopLogger()
	}
	if c.reporter == nil {
		c.reporter = ui.NopReporter{}
	}
	return c, nil
}

// RunIDFor returns the run id a crawl should use: the checkpoint's when
// resuming one, a fresh one otherwise
func RunIDFor(m *checkpoint.Manager, resume bool) string {
	if m != nil && resume {
		if cp, err := m.Load(); err == nil && cp != nil && cp.RunID != "" {
			return cp.RunID
		}
	}
	return uuid.NewString()
}

// Run processes every day in [start, end) in order
func (c *Crawler) Run(ctx context.Context, start, end time.Time) (*Summary, error) {
	began := c.now()
	start, end = daterange.Truncate(start), daterange.Truncate(end)
	first, last := daterange.Format(start), daterange.Format(end)

	summary := &Summary{
		RunID: c.writer.RunID(),
		Total: daterange.Count(start, end),
	}
	defer func() { summary.Duration = c.now().Sub(began) }()

	cp, err := c.prepareCheckpoint(first, last)
	if err != nil {
		return summary, err
	}

	log := c.logger.WithFields(map[string]interface{}{
		"run_id": summary.RunID,
		"query":  c.cfg.Search.Query,
	})
	logger.LogComponentStart(log, "crawler", map[string]interface{}{
		"start":        first,
		"end":          last,
		"days":         summary.Total,
		"max_attempts": c.cfg.Retry.MaxAttempts,
		"wait":         c.cfg.Retry.Wait,
	})

	alreadyDone := 0
	if cp != nil {
		for day := range daterange.Days(start, end) {
			if cp.IsDayCompleted(daterange.Format(day)) {
				alreadyDone++
			}
		}
	}
	c.reporter.StartCrawl(summary.Total, alreadyDone)

	for day := range daterange.Days(start, end) {
		key := daterange.Format(day)

		if cp != nil && cp.IsDayCompleted(key) {
			log.WithField("day", key).Debug("Day already written, skipping")
			summary.Skipped++
			c.reporter.SkipDay(key)
			continue
		}

		if err := c.waitWhilePaused(ctx); err != nil {
			return summary, &DayError{Day: key, Err: err}
		}

		rec, err := c.crawlDay(ctx, day, log)
		if err != nil {
			log.WithError(err).WithField("day", key).Error("Day failed, aborting crawl")
			c.reporter.FailDay(key, err)
			logger.LogComponentStop(log, "crawler", "failed")
			return summary, &DayError{Day: key, Err: err}
		}

		summary.Days++
		summary.Records += rec.Records
		summary.Tweets += rec.Tweets
		summary.Pages += rec.Pages
		summary.addFile(rec.File)

		if cp != nil {
			if err := c.checkpoints.RecordDay(cp, key, rec); err != nil {
				log.WithError(err).WithField("day", key).Warn("Failed to record day in checkpoint")
			}
		}

		c.reporter.CompleteDay(key, rec.Records, rec.Tweets, rec.File)
		logger.LogCrawlProgress(log, summary.Days+summary.Skipped, summary.Total)
	}

	if c.checkpoints != nil && c.checkpoints.Exists() {
		if err := c.checkpoints.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		} else {
			log.Debug("Checkpoint deleted after successful completion")
		}
	}

	c.reporter.Complete()
	log.InfoWithFields("Crawl completed", map[string]interface{}{
		"days":    summary.Days,
		"skipped": summary.Skipped,
		"records": summary.Records,
		"tweets":  summary.Tweets,
	})
	logger.LogComponentStop(log, "crawler", "completed")
	return summary, nil
}

// crawlDay fetches one day with retries and appends its batch
func (c *Crawler) crawlDay(ctx context.Context, day time.Time, log logger.Logger) (checkpoint.DayRecord, error) {
	spec := c.builder.Build(day)
	key := spec.Day()
	dayLog := log.WithField("day", key)
	started := c.now()

	c.reporter.StartDay(key)
	dayLog.Debug("Fetching day")

	rc := retry.FromConfig(c.cfg.Retry, dayLog)
	rc.Context = ctx
	rc.OnTransition = func(tr retry.Transition) {
		if tr.To != retry.Attempting {
			return
		}
		c.reporter.RetryDay(key, tr.Attempt, tr.Remaining, tr.Delay, tr.Err)
		if errs.TypeOf(tr.Err) == errs.ErrorTypeRateLimit {
			c.reporter.RateLimited(c.now().Add(tr.Delay))
		}
	}

	batch, err := retry.DoWithResult(func() (*search.Batch, error) {
		return c.fetcher.Fetch(ctx, spec)
	}, rc)
	if err != nil {
		return checkpoint.DayRecord{}, err
	}

	path, err := c.writer.Append(ctx, key, batch.Records)
	if err != nil {
		return checkpoint.DayRecord{}, fmt.Errorf("append batch: %w", err)
	}

	took := c.now().Sub(started)
	logger.LogDayComplete(dayLog, key, batch.Len(), batch.Pages, path, took)

	return checkpoint.DayRecord{
		Records:     batch.Len(),
		Tweets:      batch.Tweets,
		Pages:       batch.Pages,
		File:        path,
		CompletedAt: c.now(),
	}, nil
}

// prepareCheckpoint applies the resume and force-restart rules and returns
// the checkpoint to record days in, or nil when checkpointing is off
func (c *Crawler) prepareCheckpoint(start, end string) (*checkpoint.Checkpoint, error) {
	m := c.checkpoints
	if m == nil {
		return nil, nil
	}

	var cp *checkpoint.Checkpoint
	switch {
	case c.forceRestart && m.Exists():
		if err := m.BackupCheckpoint(); err != nil {
			c.logger.WithError(err).Warn("Failed to back up existing checkpoint")
		} else {
			c.logger.WithField("backup", m.BackupPath()).Info("Existing checkpoint backed up")
		}
		if err := m.Delete(); err != nil {
			c.logger.WithError(err).Warn("Failed to delete existing checkpoint")
		}
		c.logger.Info("Force restart, ignoring existing checkpoint")
	case c.resume && m.Exists():
		loaded, err := m.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		cp = loaded
		if cp != nil {
			c.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"run_id":         cp.RunID,
				"completed_days": len(cp.CompletedDays),
				"total_records":  cp.TotalRecords,
			})
		}
	case m.Exists():
		return nil, ErrCheckpointExists
	}

	if cp == nil {
		created, err := m.Create(c.writer.RunID(), c.cfg.Search.Query, start, end)
		if err != nil {
			// Continue without checkpoint
			c.logger.WithError(err).Warn("Failed to create checkpoint")
			return nil, nil
		}
		cp = created
	}
	return cp, nil
}

// waitWhilePaused blocks while the reporter says the user paused the crawl
func (c *Crawler) waitWhilePaused(ctx context.Context) error {
	p, ok := c.reporter.(ui.Pauser)
	if !ok || !p.IsPaused() {
		return ctx.Err()
	}

	c.logger.Info("Crawl paused")
	for p.IsPaused() {
		if err := retry.Wait(ctx, c.pollInterval); err != nil {
			return err
		}
	}
	c.logger.Info("Crawl resumed")
	return nil
}

func (s *Summary) addFile(path string) {
	for _, f := range s.Files {
		if f == path {
			return
		}
	}
	s.Files = append(s.Files, path)
}
