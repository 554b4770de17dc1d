package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"tweetcrawler/pkg/auth"
	"tweetcrawler/pkg/checkpoint"
	"tweetcrawler/pkg/config"
	"tweetcrawler/pkg/crawler"
	"tweetcrawler/pkg/daterange"
	"tweetcrawler/pkg/logger"
	"tweetcrawler/pkg/objectlog"
	"tweetcrawler/pkg/search"
	"tweetcrawler/pkg/ui"
	"tweetcrawler/pkg/ui/tui"
)

var (
	// Crawl command flags
	startDate    string
	endDate      string
	wait         = waitFlag(15 * time.Second)
	maxAttempts  int
	outputDir    string
	prefix       string
	layout       string
	recordMode   string
	searchConfig string
	keysFile     string
	keysKey      string
	accountName  string
	maxTweets    int
	resumeCrawl  bool
	forceRestart bool
	useTUI       bool
	notify       bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Search every day in a date range and append the results",
	Long: `Run the configured search query once per day for every day from
--start-date up to, but not including, --end-date.

Each day's results are collected across all result pages and appended as
one entry to the object log. A day that keeps failing after the configured
number of attempts stops the crawl; days already written are kept and a
later run with --resume continues after them.

The query comes from the search config file (--search-config), the search
section of the main config file or TWEETCRAWLER_QUERY.`,
	Example: `  # Crawl the first week of 2021
  tweetcrawler crawl -s 2021-01-01 -e 2021-01-08 --search-config search_config.yaml

  # Wait 30 seconds between attempts and give up after 5
  tweetcrawler crawl -s 2021-01-01 -e 2021-02-01 -w 30s --max-attempts 5

  # Write all days of the run into one file
  tweetcrawler crawl -s 2021-01-01 -e 2021-02-01 --layout per_run

  # Continue an interrupted crawl
  tweetcrawler crawl -s 2021-01-01 -e 2021-02-01 --resume

  # Watch the crawl in the terminal dashboard
  tweetcrawler crawl -s 2021-01-01 -e 2021-02-01 --tui`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	f := crawlCmd.Flags()
	f.StringVarP(&startDate, "start-date", "s", "", "first day to crawl (YYYY-MM-DD)")
	f.StringVarP(&endDate, "end-date", "e", "", "day after the last day to crawl (YYYY-MM-DD)")
	f.VarP(&wait, "wait", "w", "delay between attempts of a failing day, as seconds (45) or a duration (45s)")
	f.IntVar(&maxAttempts, "max-attempts", 10, "attempts per day before the crawl gives up")
	f.StringVarP(&outputDir, "output", "o", "", "directory for the object log")
	f.StringVar(&prefix, "prefix", "", "object log file name prefix")
	f.StringVar(&layout, "layout", "", "object log layout (per_day, per_run)")
	f.StringVar(&recordMode, "record-mode", "", "what one record is (page, tweet)")
	f.StringVar(&searchConfig, "search-config", "", "YAML file with query, results_per_call, max_tweets, filename_prefix")
	f.StringVar(&keysFile, "keys", "", "YAML credentials file (default .twitter_keys.yaml)")
	f.StringVar(&keysKey, "keys-key", "", "entry of the credentials file to use (default search_tweets_v2)")
	f.StringVarP(&accountName, "account", "a", "", "use a stored account")
	f.IntVar(&maxTweets, "max-tweets", 0, "maximum tweets per day (0 = no limit)")
	f.BoolVar(&resumeCrawl, "resume", false, "resume from last checkpoint")
	f.BoolVar(&forceRestart, "force-restart", false, "force restart, ignoring existing checkpoint")
	f.BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	f.BoolVar(&notify, "notify", false, "send a desktop notification when the crawl ends")

	_ = crawlCmd.MarkFlagRequired("start-date")
	_ = crawlCmd.MarkFlagRequired("end-date")
	crawlCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	start, err := daterange.Parse(startDate)
	if err != nil {
		return fmt.Errorf("invalid --start-date: %w", err)
	}
	end, err := daterange.Parse(endDate)
	if err != nil {
		return fmt.Errorf("invalid --end-date: %w", err)
	}

	cfg, err := config.Load(configFile, searchConfig, crawlFlags(cmd))
	if err != nil {
		return err
	}

	// Console log lines would tear the progress line or the dashboard
	if cfg.Logging.File == "" && !cmd.Flags().Changed("log-level") {
		switch {
		case useTUI:
			cfg.Logging.Level = "error"
		case !verbose:
			cfg.Logging.Level = "warn"
		}
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.WithField("version", version)
	log.Info("tweetcrawler starting")

	credManager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential store unavailable, using config and key file only")
		credManager = nil
	}
	creds, err := auth.Resolve(cfg.Credentials, credManager)
	if err != nil {
		if !ui.IsQuietMode() {
			auth.WriteCredentialGuide(ui.Output())
		}
		return err
	}
	log.WithField("account", creds.Name).Info("Using credentials")

	client, err := search.NewClient(cfg, creds, log)
	if err != nil {
		return fmt.Errorf("failed to create search client: %w", err)
	}

	first, last := daterange.Format(start), daterange.Format(end)
	cpMgr, err := checkpoint.NewManager(checkpoint.Key(cfg.Search.Query, first, last))
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
		cpMgr = nil
	}

	writer, err := objectlog.NewFromConfig(cfg, crawler.RunIDFor(cpMgr, resumeCrawl))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []crawler.Option{
		crawler.WithLogger(log),
		crawler.WithResume(resumeCrawl),
		crawler.WithForceRestart(forceRestart),
	}
	if cpMgr != nil {
		opts = append(opts, crawler.WithCheckpoint(cpMgr))
	}

	if !useTUI {
		ui.PrintInfo("Query", cfg.Search.Query)
		ui.PrintInfo("Range", fmt.Sprintf("%s .. %s (%d days)", first, last, daterange.Count(start, end)))
		ui.PrintInfo("Output", writer.Dir())
	}

	var summary *crawler.Summary
	if useTUI {
		summary, err = crawlWithTUI(ctx, cfg, client, writer, opts, start, end)
	} else {
		summary, err = crawlWithProgress(ctx, cfg, client, writer, opts, start, end)
	}

	notifier := ui.NewNotifier(notify)
	if err != nil {
		return crawlFailed(err, notifier, cpMgr)
	}

	msg := fmt.Sprintf("%d days, %d records, %d tweets in %s",
		summary.Days, summary.Records, summary.Tweets, ui.FormatDuration(summary.Duration))
	log.WithFields(map[string]interface{}{
		"run_id":  summary.RunID,
		"days":    summary.Days,
		"skipped": summary.Skipped,
		"records": summary.Records,
		"files":   len(summary.Files),
	}).Info("Crawl completed successfully")
	notifier.SendSuccess("Crawl complete", msg)
	return nil
}

// waitFlag is a retry delay given as bare seconds or as a Go duration
type waitFlag time.Duration

func (w *waitFlag) String() string {
	return time.Duration(*w).String()
}

func (w *waitFlag) Set(s string) error {
	d, err := config.ParseWait(s)
	if err != nil {
		return err
	}
	if d < 0 {
		return errors.New("wait cannot be negative")
	}
	*w = waitFlag(d)
	return nil
}

func (w *waitFlag) Type() string {
	return "duration"
}

// crawlFlags collects the flags the user set explicitly
func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("wait") {
		flags["wait"] = time.Duration(wait)
	}
	if changed("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if changed("max-tweets") {
		flags["max-tweets"] = maxTweets
	}
	for key, value := range map[string]string{
		"output":      outputDir,
		"prefix":      prefix,
		"layout":      layout,
		"record-mode": recordMode,
		"keys-file":   keysFile,
		"keys-key":    keysKey,
		"account":     accountName,
		"log-level":   logLevel,
	} {
		if value != "" {
			flags[key] = value
		}
	}
	return flags
}

func crawlWithProgress(ctx context.Context, cfg *config.Config, client *search.Client, writer *objectlog.Writer,
	opts []crawler.Option, start, end time.Time) (*crawler.Summary, error) {
	var reporter ui.Reporter = ui.NopReporter{}
	if !ui.IsQuietMode() {
		reporter = ui.NewProgressDisplay(ui.Output(), cfg.Search.Query, verbose)
	}

	c, err := crawler.New(cfg, client, writer, append(opts, crawler.WithReporter(reporter))...)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, start, end)
}

func crawlWithTUI(ctx context.Context, cfg *config.Config, client *search.Client, writer *objectlog.Writer,
	opts []crawler.Option, start, end time.Time) (*crawler.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(cfg.Search.Query)
	c, err := crawler.New(cfg, client, writer, append(opts, crawler.WithReporter(terminal))...)
	if err != nil {
		return nil, err
	}

	type result struct {
		summary *crawler.Summary
		err     error
	}

	// Run crawler in a goroutine
	crawlDone := make(chan result, 1)
	go func() {
		s, err := c.Run(ctx, start, end)
		crawlDone <- result{s, err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()

	// Wait for either to finish
	select {
	case r := <-crawlDone:
		terminal.Stop()
		<-tuiDone
		return r.summary, r.err
	case err := <-tuiDone:
		// The user closed the dashboard
		cancel()
		r := <-crawlDone
		if err != nil {
			logger.WithError(err).Error("TUI failed")
			return r.summary, err
		}
		return r.summary, r.err
	}
}

func crawlFailed(err error, notifier *ui.Notifier, cpMgr *checkpoint.Manager) error {
	switch {
	case errors.Is(err, crawler.ErrCheckpointExists):
		for _, line := range checkpointSummary(cpMgr) {
			ui.PrintInfo(line[0], line[1])
		}
		return err
	case errors.Is(err, context.Canceled):
		logger.Warn("Crawl interrupted")
		ui.PrintWarning("Crawl interrupted", "run again with --resume to continue")
		return err
	}

	var dayErr *crawler.DayError
	if errors.As(err, &dayErr) {
		logger.WithError(dayErr.Err).WithField("day", dayErr.Day).Error("Crawl failed")
		notifier.SendError("Crawl failed", fmt.Sprintf("stopped at %s", dayErr.Day))
		ui.PrintInfo("Resume with", "--resume (days before "+dayErr.Day+" are kept)")
		return err
	}

	logger.WithError(err).Error("Crawl failed")
	notifier.SendError("Crawl failed", err.Error())
	return err
}

// checkpointSummary describes the checkpoint left by an earlier run as
// label/value pairs, or nothing when there is none to describe
func checkpointSummary(m *checkpoint.Manager) [][2]string {
	if m == nil {
		return nil
	}
	info, err := m.GetCheckpointInfo()
	if err != nil {
		logger.WithError(err).Warn("Failed to read existing checkpoint")
		return nil
	}
	if info == nil {
		return nil
	}

	age, _ := info["age"].(time.Duration)
	return [][2]string{
		{"Checkpoint", fmt.Sprint(info["run_id"])},
		{"Range", fmt.Sprint(info["range"])},
		{"Completed days", fmt.Sprint(info["completed_days"])},
		{"Records", fmt.Sprint(info["total_records"])},
		{"Last update", ui.FormatDuration(age) + " ago"},
	}
}
