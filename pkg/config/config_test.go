package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Search.Query = "(covid OR vaccine) lang:en -is:retweet"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)

	// Search defaults
	assert.Empty(t, cfg.Search.Query)
	assert.Equal(t, 100, cfg.Search.ResultsPerCall)
	assert.Equal(t, 0, cfg.Search.MaxTweets)
	assert.Equal(t, 0, cfg.Search.MaxPages)
	assert.Equal(t, DefaultTweetFields, cfg.Search.TweetFields)
	assert.Equal(t, DefaultUserFields, cfg.Search.UserFields)
	assert.Equal(t, []string{"author_id"}, cfg.Search.Expansions)
	assert.Equal(t, RecordModePage, cfg.Search.RecordMode)

	// Retry defaults
	assert.Equal(t, 10, cfg.Retry.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Retry.Wait)
	assert.Equal(t, BackoffConstant, cfg.Retry.RateLimitBackoff)

	// Output defaults
	assert.Equal(t, ".", cfg.Output.Directory)
	assert.Equal(t, LayoutPerDay, cfg.Output.Layout)
	assert.True(t, cfg.Output.Sync)

	// Credential defaults
	assert.Equal(t, ".twitter_keys.yaml", cfg.Credentials.KeysFile)
	assert.Equal(t, "search_tweets_v2", cfg.Credentials.KeysKey)

	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestDefaultConfigFieldsAreCopies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.TweetFields[0] = "mutated"

	assert.Equal(t, "created_at", DefaultTweetFields[0])
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWEETCRAWLER_QUERY", "env query")
	t.Setenv("TWEETCRAWLER_BEARER_TOKEN", "env-bearer")
	t.Setenv("TWEETCRAWLER_CONSUMER_KEY", "env-key")
	t.Setenv("TWEETCRAWLER_CONSUMER_SECRET", "env-secret")
	t.Setenv("TWEETCRAWLER_RETRY_WAIT", "45")
	t.Setenv("TWEETCRAWLER_MAX_ATTEMPTS", "3")
	t.Setenv("TWEETCRAWLER_MAX_TWEETS", "2500")
	t.Setenv("TWEETCRAWLER_OUTPUT_DIR", "/tmp/tweets")
	t.Setenv("TWEETCRAWLER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env query", cfg.Search.Query)
	assert.Equal(t, "env-bearer", cfg.Credentials.BearerToken)
	assert.Equal(t, "env-key", cfg.Credentials.ConsumerKey)
	assert.Equal(t, "env-secret", cfg.Credentials.ConsumerSecret)
	assert.Equal(t, 45*time.Second, cfg.Retry.Wait)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2500, cfg.Search.MaxTweets)
	assert.Equal(t, "/tmp/tweets", cfg.Output.Directory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"max attempts", "TWEETCRAWLER_MAX_ATTEMPTS", "ten"},
		{"max tweets", "TWEETCRAWLER_MAX_TWEETS", "lots"},
		{"retry wait", "TWEETCRAWLER_RETRY_WAIT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			cfg := DefaultConfig()
			err := cfg.LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseWait(t *testing.T) {
	d, err := ParseWait("15")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)

	d, err = ParseWait("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseWait("never")
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "tweetcrawler.yaml")

		testConfig := `
search:
  query: "from:nasa"
  results_per_call: 500
  max_tweets: 1000
  filename_prefix: nasa_
  record_mode: tweet

api:
  endpoint: https://example.test/2/tweets/search/all
  timeout: 10s

retry:
  max_attempts: 4
  wait: 2s
  rate_limit_backoff: exponential

output:
  directory: /data/tweets
  layout: per_run
  sync: false

logging:
  level: warn
  file: /var/log/tweetcrawler.log
`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, "from:nasa", cfg.Search.Query)
		assert.Equal(t, 500, cfg.Search.ResultsPerCall)
		assert.Equal(t, 1000, cfg.Search.MaxTweets)
		assert.Equal(t, "nasa_", cfg.Search.FilenamePrefix)
		assert.Equal(t, RecordModeTweet, cfg.Search.RecordMode)

		assert.Equal(t, "https://example.test/2/tweets/search/all", cfg.API.Endpoint)
		assert.Equal(t, 10*time.Second, cfg.API.Timeout)

		assert.Equal(t, 4, cfg.Retry.MaxAttempts)
		assert.Equal(t, 2*time.Second, cfg.Retry.Wait)
		assert.Equal(t, BackoffExponential, cfg.Retry.RateLimitBackoff)

		assert.Equal(t, "/data/tweets", cfg.Output.Directory)
		assert.Equal(t, LayoutPerRun, cfg.Output.Layout)
		assert.False(t, cfg.Output.Sync)

		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "/var/log/tweetcrawler.log", cfg.Logging.File)

		// Untouched sections keep their defaults
		assert.Equal(t, DefaultTweetFields, cfg.Search.TweetFields)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("search: [unclosed"), 0644))

		cfg := DefaultConfig()
		err := cfg.LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestLoadSearchFile(t *testing.T) {
	t.Run("flat keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "search_config.yaml")
		content := `
query: "climate lang:en"
results_per_call: 100
max_tweets: 50000
filename_prefix: climate_
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadSearchFile(path))

		assert.Equal(t, "climate lang:en", cfg.Search.Query)
		assert.Equal(t, 100, cfg.Search.ResultsPerCall)
		assert.Equal(t, 50000, cfg.Search.MaxTweets)
		assert.Equal(t, "climate_", cfg.Search.FilenamePrefix)
	})

	t.Run("grouped keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "search_config.yaml")
		content := `
search_rules:
  query: "snow has:geo"
search_params:
  results_per_call: 250
  max_tweets: 700
output_params:
  filename_prefix: snow_
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadSearchFile(path))

		assert.Equal(t, "snow has:geo", cfg.Search.Query)
		assert.Equal(t, 250, cfg.Search.ResultsPerCall)
		assert.Equal(t, 700, cfg.Search.MaxTweets)
		assert.Equal(t, "snow_", cfg.Search.FilenamePrefix)
	})

	t.Run("empty path is a no-op", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadSearchFile(""))
		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing query", func(c *Config) { c.Search.Query = "  " }, "search query is required"},
		{"results per call too small", func(c *Config) { c.Search.ResultsPerCall = 5 }, "results per call"},
		{"results per call too large", func(c *Config) { c.Search.ResultsPerCall = 501 }, "results per call"},
		{"negative max tweets", func(c *Config) { c.Search.MaxTweets = -1 }, "max tweets"},
		{"bad record mode", func(c *Config) { c.Search.RecordMode = "raw" }, "invalid record mode"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts"},
		{"negative wait", func(c *Config) { c.Retry.Wait = -time.Second }, "retry wait"},
		{"bad backoff", func(c *Config) { c.Retry.RateLimitBackoff = "fibonacci" }, "rate limit backoff"},
		{"no endpoint", func(c *Config) { c.API.Endpoint = "" }, "API endpoint"},
		{"bad layout", func(c *Config) { c.Output.Layout = "per_week" }, "invalid output layout"},
		{"no output dir", func(c *Config) { c.Output.Directory = "" }, "output directory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retry.MaxAttempts = 0
	cfg.Output.Layout = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search query is required")
	assert.Contains(t, err.Error(), "max attempts")
	assert.Contains(t, err.Error(), "invalid output layout")
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := validConfig()
	cfg.Retry.Wait = 45 * time.Second
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := validConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"wait":         45 * time.Second,
		"max-attempts": 5,
		"output":       "/flags/out",
		"prefix":       "flag_",
		"layout":       LayoutPerRun,
		"record-mode":  RecordModeTweet,
		"keys-file":    "/flags/keys.yaml",
		"keys-key":     "premium",
		"account":      "research",
		"log-level":    "debug",
	})

	assert.Equal(t, 45*time.Second, cfg.Retry.Wait)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "/flags/out", cfg.Output.Directory)
	assert.Equal(t, "flag_", cfg.Search.FilenamePrefix)
	assert.Equal(t, LayoutPerRun, cfg.Output.Layout)
	assert.Equal(t, RecordModeTweet, cfg.Search.RecordMode)
	assert.Equal(t, "/flags/keys.yaml", cfg.Credentials.KeysFile)
	assert.Equal(t, "premium", cfg.Credentials.KeysKey)
	assert.Equal(t, "research", cfg.Credentials.Account)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestMergeCommandLineFlagsIgnoresZeroValues(t *testing.T) {
	cfg := validConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"max-attempts": 0,
		"output":       "",
		"layout":       "",
	})

	assert.Equal(t, 10, cfg.Retry.MaxAttempts)
	assert.Equal(t, ".", cfg.Output.Directory)
	assert.Equal(t, LayoutPerDay, cfg.Output.Layout)
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		tempDir := t.TempDir()

		configPath := filepath.Join(tempDir, "config.yaml")
		configContent := `
search:
  query: file query
  filename_prefix: file_
output:
  directory: /file/output
retry:
  max_attempts: 7
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

		searchPath := filepath.Join(tempDir, "search_config.yaml")
		require.NoError(t, os.WriteFile(searchPath, []byte("query: search file query\n"), 0644))

		t.Setenv("TWEETCRAWLER_OUTPUT_DIR", "/env/output")
		t.Setenv("TWEETCRAWLER_MAX_ATTEMPTS", "8")

		flags := map[string]interface{}{
			"max-attempts": 9,
		}

		cfg, err := Load(configPath, searchPath, flags)
		require.NoError(t, err)

		assert.Equal(t, "search file query", cfg.Search.Query) // search file over config file
		assert.Equal(t, "file_", cfg.Search.FilenamePrefix)    // config file
		assert.Equal(t, "/env/output", cfg.Output.Directory)   // env over file
		assert.Equal(t, 9, cfg.Retry.MaxAttempts)              // flag over env
	})

	t.Run("validation failure", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("retry:\n  max_attempts: 3\n"), 0644))
		t.Setenv("TWEETCRAWLER_QUERY", "")

		cfg, err := Load(configPath, "", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
		assert.Nil(t, cfg)
	})

	t.Run("loads .env file", func(t *testing.T) {
		tempDir := t.TempDir()
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)
		require.NoError(t, os.Chdir(tempDir))

		envContent := "TWEETCRAWLER_QUERY=dotenv query\nTWEETCRAWLER_BEARER_TOKEN=dotenv-bearer\n"
		require.NoError(t, os.WriteFile(".env", []byte(envContent), 0644))

		os.Unsetenv("TWEETCRAWLER_QUERY")
		os.Unsetenv("TWEETCRAWLER_BEARER_TOKEN")
		defer os.Unsetenv("TWEETCRAWLER_QUERY")
		defer os.Unsetenv("TWEETCRAWLER_BEARER_TOKEN")

		configPath := filepath.Join(tempDir, "empty.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("{}\n"), 0644))

		cfg, err := Load(configPath, "", nil)
		require.NoError(t, err)

		assert.Equal(t, "dotenv query", cfg.Search.Query)
		assert.Equal(t, "dotenv-bearer", cfg.Credentials.BearerToken)
	})
}

func TestDurationParsing(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("retry:\n  wait: 1m30s\napi:\n  timeout: 5s\n"), &cfg))

	assert.Equal(t, 90*time.Second, cfg.Retry.Wait)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
}

func BenchmarkValidate(b *testing.B) {
	cfg := validConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
