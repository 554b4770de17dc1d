package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"tweetcrawler/pkg/auth"
	"tweetcrawler/pkg/config"
	"tweetcrawler/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tweetcrawler configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TWEETCRAWLER_*) and .env files
  - Search config file (--search-config)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'tweetcrawler.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Credentials are masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields (the search query)
  - Value ranges
  - Output and log paths
  - Whether credentials can be found`,
	RunE: runConfigValidate,
}

var showSearchConfig string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	configCmd.PersistentFlags().StringVar(&showSearchConfig, "search-config", "", "search config file to merge")
}

const exampleConfig = `# tweetcrawler configuration file
#
# Environment variables prefixed with TWEETCRAWLER_ override these values,
# for example TWEETCRAWLER_QUERY or TWEETCRAWLER_BEARER_TOKEN.

search:
  # Query run once per day (required)
  query: "(snow OR blizzard) lang:en -is:retweet"

  # Page size, 10-500
  results_per_call: 100

  # Per-day caps, 0 means no cap
  max_tweets: 0
  max_pages: 0

  # Object log file name prefix
  filename_prefix: "tweets_"

  # page: one record per API page, tweet: one record per tweet
  record_mode: "page"

api:
  endpoint: "https://api.twitter.com/2/tweets/search/all"
  token_url: "https://api.twitter.com/oauth2/token"
  timeout: 30s

retry:
  # Attempts per day before the crawl stops
  max_attempts: 10

  # Delay between attempts
  wait: 15s

  # constant, linear or exponential for rate limit responses
  rate_limit_backoff: "constant"

  # Upper bound on a server-advertised rate limit reset
  max_wait: 15m

rate_limit:
  requests_per_window: 300
  window: 15m
  request_delay: 1s

output:
  directory: "./data"

  # per_day: one file per day, per_run: one file per crawl
  layout: "per_day"

  # fsync every entry
  sync: true

credentials:
  # YAML key file with one entry per account
  keys_file: ".twitter_keys.yaml"
  keys_key: "search_tweets_v2"

  # Stored account from 'tweetcrawler auth login'
  account: ""

logging:
  # debug, info, warn, error
  level: "info"

  # Optional log file
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "tweetcrawler.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Fprintln(ui.Output(), "\nTo overwrite, first remove the existing file:")
		fmt.Fprintf(ui.Output(), "  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output(), "\nNext steps:")
	fmt.Fprintln(ui.Output(), "1. Edit the query and output directory")
	fmt.Fprintln(ui.Output(), "2. Store credentials with 'tweetcrawler auth login' or a key file")
	fmt.Fprintln(ui.Output(), "3. Run 'tweetcrawler config validate'")
	fmt.Fprintln(ui.Output(), "4. Crawl with 'tweetcrawler crawl -s 2021-01-01 -e 2021-01-08'")
	return nil
}

// loadUnvalidated reads every configuration source but leaves validation to
// the caller, so incomplete configurations can still be shown
func loadUnvalidated() (*config.Config, error) {
	config.LoadEnvFiles()

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadSearchFile(showSearchConfig); err != nil {
		return nil, fmt.Errorf("failed to load search config: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadUnvalidated()
	if err != nil {
		return err
	}

	displayCfg := *cfg
	displayCfg.Credentials.BearerToken = auth.MaskString(cfg.Credentials.BearerToken)
	displayCfg.Credentials.ConsumerKey = auth.MaskString(cfg.Credentials.ConsumerKey)
	displayCfg.Credentials.ConsumerSecret = auth.MaskString(cfg.Credentials.ConsumerSecret)

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := ui.Output()
	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (TWEETCRAWLER_*)")
	if showSearchConfig != "" {
		fmt.Fprintf(out, "3. Search config file: %s\n", showSearchConfig)
	} else {
		fmt.Fprintln(out, "3. Search config file: (not specified)")
	}
	if configFile != "" {
		fmt.Fprintf(out, "4. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "4. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(out, "5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadUnvalidated()
	if err != nil {
		ui.PrintError("Configuration could not be read", err.Error())
		return err
	}

	var problems []string
	var warnings []string

	if err := cfg.Validate(); err != nil {
		problems = append(problems, splitJoined(err)...)
	}

	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	manager, err := auth.NewManager()
	if err != nil {
		manager = nil
	}
	if _, err := auth.Resolve(cfg.Credentials, manager); err != nil {
		warnings = append(warnings, err.Error())
	}

	out := ui.Output()
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return errors.New("invalid configuration")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
		fmt.Fprintln(out)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Query: %s\n", cfg.Search.Query)
	fmt.Fprintf(out, "  Output: %s (%s)\n", cfg.Output.Directory, cfg.Output.Layout)
	fmt.Fprintf(out, "  Record mode: %s\n", cfg.Search.RecordMode)
	fmt.Fprintf(out, "  Retry: %d attempts, %s apart\n", cfg.Retry.MaxAttempts, cfg.Retry.Wait)
	fmt.Fprintf(out, "  Rate limit: %d requests per %s\n", cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// splitJoined unpacks an errors.Join result into its messages
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
