package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Record modes for the Result Batch
const (
	RecordModePage  = "page"
	RecordModeTweet = "tweet"
)

// Object log layouts
const (
	LayoutPerDay = "per_day"
	LayoutPerRun = "per_run"
)

// Backoff strategies for rate-limit errors
const (
	BackoffConstant    = "constant"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Config holds all configuration options for the crawler
type Config struct {
	// Search query and paging limits
	Search SearchConfig `yaml:"search" json:"search"`

	// Search API endpoint settings
	API APIConfig `yaml:"api" json:"api"`

	// Retry wrapper configuration
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Request pacing configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Object log settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Credential sources
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig holds the static per-day query configuration
type SearchConfig struct {
	Query          string   `yaml:"query" json:"query"`
	ResultsPerCall int      `yaml:"results_per_call" json:"results_per_call"`
	MaxTweets      int      `yaml:"max_tweets" json:"max_tweets"`
	MaxPages       int      `yaml:"max_pages" json:"max_pages"`
	TweetFields    []string `yaml:"tweet_fields" json:"tweet_fields"`
	UserFields     []string `yaml:"user_fields" json:"user_fields"`
	Expansions     []string `yaml:"expansions" json:"expansions"`
	FilenamePrefix string   `yaml:"filename_prefix" json:"filename_prefix"`
	RecordMode     string   `yaml:"record_mode" json:"record_mode"`
}

// APIConfig holds search API connection settings
type APIConfig struct {
	Endpoint  string        `yaml:"endpoint" json:"endpoint"`
	TokenURL  string        `yaml:"token_url" json:"token_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig holds retry configuration for one day's retrieval
type RetryConfig struct {
	MaxAttempts      int           `yaml:"max_attempts" json:"max_attempts"`
	Wait             time.Duration `yaml:"wait" json:"wait"`
	RateLimitBackoff string        `yaml:"rate_limit_backoff" json:"rate_limit_backoff"`
	MaxWait          time.Duration `yaml:"max_wait" json:"max_wait"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window"`
	Window            time.Duration `yaml:"window" json:"window"`
	RequestDelay      time.Duration `yaml:"request_delay" json:"request_delay"`
}

// OutputConfig holds object log configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	Layout    string `yaml:"layout" json:"layout"`
	Sync      bool   `yaml:"sync" json:"sync"`
}

// CredentialsConfig holds credential source configuration
type CredentialsConfig struct {
	KeysFile       string `yaml:"keys_file" json:"keys_file"`
	KeysKey        string `yaml:"keys_key" json:"keys_key"`
	Account        string `yaml:"account" json:"account"`
	BearerToken    string `yaml:"bearer_token" json:"bearer_token"`
	ConsumerKey    string `yaml:"consumer_key" json:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" json:"consumer_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultTweetFields are requested when no tweet fields are configured
var DefaultTweetFields = []string{"created_at", "geo", "id", "lang", "public_metrics", "source", "text"}

// DefaultUserFields are requested when no user fields are configured
var DefaultUserFields = []string{"created_at", "description", "location", "name", "public_metrics", "username"}

// DefaultExpansions are requested when no expansions are configured
var DefaultExpansions = []string{"author_id"}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			ResultsPerCall: 100,
			MaxTweets:      0, // 0 means no cap
			MaxPages:       0, // 0 means no cap
			TweetFields:    append([]string(nil), DefaultTweetFields...),
			UserFields:     append([]string(nil), DefaultUserFields...),
			Expansions:     append([]string(nil), DefaultExpansions...),
			FilenamePrefix: "tweets_",
			RecordMode:     RecordModePage,
		},
		API: APIConfig{
			Endpoint:  "https://api.twitter.com/2/tweets/search/all",
			TokenURL:  "https://api.twitter.com/oauth2/token",
			UserAgent: "tweetcrawler/1.0",
			Timeout:   30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:      10,
			Wait:             15 * time.Second,
			RateLimitBackoff: BackoffConstant,
			MaxWait:          15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 300,
			Window:            15 * time.Minute,
			RequestDelay:      time.Second,
		},
		Output: OutputConfig{
			Directory: ".",
			Layout:    LayoutPerDay,
			Sync:      true,
		},
		Credentials: CredentialsConfig{
			KeysFile: ".twitter_keys.yaml",
			KeysKey:  "search_tweets_v2",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Search
	if query := os.Getenv("TWEETCRAWLER_QUERY"); query != "" {
		c.Search.Query = query
	}
	if prefix := os.Getenv("TWEETCRAWLER_FILENAME_PREFIX"); prefix != "" {
		c.Search.FilenamePrefix = prefix
	}
	if maxTweets := os.Getenv("TWEETCRAWLER_MAX_TWEETS"); maxTweets != "" {
		val, err := strconv.Atoi(maxTweets)
		if err != nil {
			return fmt.Errorf("invalid TWEETCRAWLER_MAX_TWEETS: %w", err)
		}
		c.Search.MaxTweets = val
	}

	// API
	if endpoint := os.Getenv("TWEETCRAWLER_ENDPOINT"); endpoint != "" {
		c.API.Endpoint = endpoint
	}

	// Credentials
	if token := os.Getenv("TWEETCRAWLER_BEARER_TOKEN"); token != "" {
		c.Credentials.BearerToken = token
	}
	if key := os.Getenv("TWEETCRAWLER_CONSUMER_KEY"); key != "" {
		c.Credentials.ConsumerKey = key
	}
	if secret := os.Getenv("TWEETCRAWLER_CONSUMER_SECRET"); secret != "" {
		c.Credentials.ConsumerSecret = secret
	}
	if keysFile := os.Getenv("TWEETCRAWLER_KEYS_FILE"); keysFile != "" {
		c.Credentials.KeysFile = keysFile
	}

	// Retry
	if wait := os.Getenv("TWEETCRAWLER_RETRY_WAIT"); wait != "" {
		d, err := ParseWait(wait)
		if err != nil {
			return fmt.Errorf("invalid TWEETCRAWLER_RETRY_WAIT: %w", err)
		}
		c.Retry.Wait = d
	}
	if attempts := os.Getenv("TWEETCRAWLER_MAX_ATTEMPTS"); attempts != "" {
		val, err := strconv.Atoi(attempts)
		if err != nil {
			return fmt.Errorf("invalid TWEETCRAWLER_MAX_ATTEMPTS: %w", err)
		}
		c.Retry.MaxAttempts = val
	}

	// Output directory
	if outputDir := os.Getenv("TWEETCRAWLER_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}

	// Logging level
	if logLevel := os.Getenv("TWEETCRAWLER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// ParseWait accepts either a Go duration ("15s") or a bare number of seconds ("45")
func ParseWait(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// searchFile mirrors the search configuration file. Keys may be flat or
// grouped under search_rules, search_params and output_params.
type searchFile struct {
	searchFileFields `yaml:",inline"`
	SearchRules      searchFileFields `yaml:"search_rules"`
	SearchParams     searchFileFields `yaml:"search_params"`
	OutputParams     searchFileFields `yaml:"output_params"`
}

type searchFileFields struct {
	Query          string   `yaml:"query"`
	ResultsPerCall int      `yaml:"results_per_call"`
	MaxTweets      int      `yaml:"max_tweets"`
	MaxPages       int      `yaml:"max_pages"`
	TweetFields    []string `yaml:"tweet_fields"`
	UserFields     []string `yaml:"user_fields"`
	Expansions     []string `yaml:"expansions"`
	FilenamePrefix string   `yaml:"filename_prefix"`
	RecordMode     string   `yaml:"record_mode"`
}

// apply overlays the non-zero fields onto the search configuration
func (f searchFileFields) apply(s *SearchConfig) {
	if f.Query != "" {
		s.Query = f.Query
	}
	if f.ResultsPerCall != 0 {
		s.ResultsPerCall = f.ResultsPerCall
	}
	if f.MaxTweets != 0 {
		s.MaxTweets = f.MaxTweets
	}
	if f.MaxPages != 0 {
		s.MaxPages = f.MaxPages
	}
	if len(f.TweetFields) > 0 {
		s.TweetFields = f.TweetFields
	}
	if len(f.UserFields) > 0 {
		s.UserFields = f.UserFields
	}
	if len(f.Expansions) > 0 {
		s.Expansions = f.Expansions
	}
	if f.FilenamePrefix != "" {
		s.FilenamePrefix = f.FilenamePrefix
	}
	if f.RecordMode != "" {
		s.RecordMode = f.RecordMode
	}
}

// LoadSearchFile loads the query configuration file (query, results_per_call,
// max_tweets, filename_prefix, ...) into the Search section
func (c *Config) LoadSearchFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read search config file: %w", err)
	}

	var f searchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse search config file: %w", err)
	}

	f.searchFileFields.apply(&c.Search)
	f.SearchRules.apply(&c.Search)
	f.SearchParams.apply(&c.Search)
	f.OutputParams.apply(&c.Search)

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"tweetcrawler.yaml",
		"tweetcrawler.yml",
		".tweetcrawler.yaml",
		".tweetcrawler.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tweetcrawler", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".tweetcrawler.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Search
	if strings.TrimSpace(c.Search.Query) == "" {
		errs = append(errs, errors.New("search query is required"))
	}
	if c.Search.ResultsPerCall < 10 || c.Search.ResultsPerCall > 500 {
		errs = append(errs, errors.New("results per call must be between 10 and 500"))
	}
	if c.Search.MaxTweets < 0 {
		errs = append(errs, errors.New("max tweets cannot be negative"))
	}
	if c.Search.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Search.RecordMode != RecordModePage && c.Search.RecordMode != RecordModeTweet {
		errs = append(errs, fmt.Errorf("invalid record mode %q", c.Search.RecordMode))
	}

	// API
	if c.API.Endpoint == "" {
		errs = append(errs, errors.New("API endpoint is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	// Retry
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Retry.Wait < 0 {
		errs = append(errs, errors.New("retry wait cannot be negative"))
	}
	switch c.Retry.RateLimitBackoff {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		errs = append(errs, fmt.Errorf("invalid rate limit backoff %q", c.Retry.RateLimitBackoff))
	}

	// Rate limiting
	if c.RateLimit.RequestsPerWindow <= 0 {
		errs = append(errs, errors.New("requests per window must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.RequestDelay < 0 {
		errs = append(errs, errors.New("request delay cannot be negative"))
	}

	// Output
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.Layout != LayoutPerDay && c.Output.Layout != LayoutPerRun {
		errs = append(errs, fmt.Errorf("invalid output layout %q", c.Output.Layout))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if query, ok := flags["query"].(string); ok && query != "" {
		c.Search.Query = query
	}
	if prefix, ok := flags["prefix"].(string); ok && prefix != "" {
		c.Search.FilenamePrefix = prefix
	}
	if mode, ok := flags["record-mode"].(string); ok && mode != "" {
		c.Search.RecordMode = mode
	}
	if maxTweets, ok := flags["max-tweets"].(int); ok && maxTweets > 0 {
		c.Search.MaxTweets = maxTweets
	}
	if wait, ok := flags["wait"].(time.Duration); ok && wait >= 0 {
		c.Retry.Wait = wait
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Retry.MaxAttempts = attempts
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if layout, ok := flags["layout"].(string); ok && layout != "" {
		c.Output.Layout = layout
	}
	if keysFile, ok := flags["keys-file"].(string); ok && keysFile != "" {
		c.Credentials.KeysFile = keysFile
	}
	if keysKey, ok := flags["keys-key"].(string); ok && keysKey != "" {
		c.Credentials.KeysKey = keysKey
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Credentials.Account = account
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// LoadEnvFiles loads ./.env and ~/.tweetcrawler.env into the process
// environment. Missing files are ignored and set variables are not replaced.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tweetcrawler.env"))
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file >
// Search config file > Config file > Defaults
func Load(configPath, searchPath string, flags map[string]interface{}) (*Config, error) {
	LoadEnvFiles()

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadSearchFile(searchPath); err != nil {
		return nil, fmt.Errorf("failed to load search config: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
