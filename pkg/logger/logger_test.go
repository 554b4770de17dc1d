package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"tweetcrawler/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "DEBUG"}, false},
		{"invalid log level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "crawl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNewWithWriterFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.log")
	var console bytes.Buffer

	log, err := NewWithWriter(&config.LoggingConfig{Level: "info", File: path}, &console)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.WithField("day", "2021-01-01").Info("Day written")
	log.Debug("below threshold")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"message":"Day written"`) {
		t.Errorf("file output missing message: %s", line)
	}
	if !strings.Contains(line, `"day":"2021-01-01"`) {
		t.Errorf("file output missing field: %s", line)
	}
	if !strings.Contains(line, `"app":"tweetcrawler"`) {
		t.Errorf("file output missing app field: %s", line)
	}
	if strings.Contains(line, "below threshold") {
		t.Error("debug message written at info level")
	}
	if !strings.Contains(console.String(), "Day written") {
		t.Error("console output missing message")
	}
}

func TestNewWithWriterNilConsole(t *testing.T) {
	log, err := NewWithWriter(&config.LoggingConfig{Level: "info"}, nil)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	// Must not panic with no outputs
	log.Info("discarded")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	for name, logFn := range map[string]func(string){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	} {
		t.Run(name, func(t *testing.T) {
			buf.Reset()
			logFn(name + " message")
			if !strings.Contains(buf.String(), name+" message") {
				t.Errorf("%s message not found in output", name)
			}
			if !strings.Contains(buf.String(), `"level":"`+name+`"`) {
				t.Errorf("%s level not found in output", name)
			}
		})
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newBufferLogger(&buf)

	child := parent.WithField("day", "2021-01-02")
	child.Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"day":"2021-01-02"`) {
		t.Error("child line missing field")
	}
	if strings.Contains(lines[1], `"day"`) {
		t.Error("parent logger picked up child field")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("connection reset")).Error("fetch failed")

	output := buf.String()
	if !strings.Contains(output, "fetch failed") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, "connection reset") {
		t.Error("Error message not found in output")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoWithFields("all types", map[string]interface{}{
		"string":   "test",
		"int":      123,
		"int64":    int64(456),
		"float":    3.5,
		"bool":     true,
		"time":     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"cause":    errors.New("boom"),
		"custom":   struct{ Name string }{Name: "x"},
	})

	output := buf.String()
	for _, want := range []string{
		`"string":"test"`,
		`"int":123`,
		`"int64":456`,
		`"float":3.5`,
		`"bool":true`,
		`"strings":["a","b"]`,
		`"cause":"boom"`,
		`"custom":{"Name":"x"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %s: %s", want, output)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	defer SetLogger(NewNopLogger())

	if GetLogger() == nil {
		t.Error("GetLogger() returned nil")
	}

	Debug("debug message")
	Info("info message")
	WithField("key", "value").Info("with field")
	WithError(errors.New("test")).Warn("with error")
}

func TestSetLogger(t *testing.T) {
	test := NewTestLogger()
	SetLogger(test)
	defer SetLogger(NewNopLogger())

	Info("routed")
	if !test.HasMessage("routed") {
		t.Error("global logger did not route to the test logger")
	}
}

func TestHelpers(t *testing.T) {
	test := NewTestLogger()

	LogRequest(test, "GET", "https://api.test/2/tweets/search/all", 200, 120*time.Millisecond)
	LogRequest(test, "GET", "https://api.test/2/tweets/search/all", 429, time.Millisecond)
	LogRequest(test, "GET", "https://api.test/2/tweets/search/all", 503, time.Millisecond)
	LogRateLimit(test, "search", 30*time.Second)
	LogDayComplete(test, "2021-01-01", 12, 2, "/tmp/tweets_2021-01-01.ndjson", time.Second)
	LogComponentStart(test, "crawler", map[string]interface{}{"days": 2})
	LogComponentStop(test, "crawler", "completed")

	if got := len(test.GetMessagesByLevel("DEBUG")); got != 1 {
		t.Errorf("expected 1 debug message, got %d", got)
	}
	if got := len(test.GetMessagesByLevel("WARN")); got != 2 {
		t.Errorf("expected 2 warn messages, got %d", got)
	}
	if !test.HasError() {
		t.Error("expected server error to be logged at error level")
	}

	for _, msg := range test.GetMessages() {
		if msg.Message == "Day written" && msg.Fields["records"] != 12 {
			t.Errorf("Day written records = %v, want 12", msg.Fields["records"])
		}
		if msg.Message == "Component started" && msg.Fields["component"] != "crawler" {
			t.Errorf("component field = %v", msg.Fields["component"])
		}
	}
}

func TestTestLoggerCapturesScopedFields(t *testing.T) {
	test := NewTestLogger()
	scoped := test.WithField("day", "2021-01-01").WithError(errors.New("timeout"))

	scoped.WarnWithFields("retrying", map[string]interface{}{"attempt": 1})
	test.Info("unscoped")

	msgs := test.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Fields["day"] != "2021-01-01" || msgs[0].Fields["attempt"] != 1 {
		t.Errorf("scoped fields not merged: %v", msgs[0].Fields)
	}
	if msgs[0].Error == nil || msgs[0].Error.Error() != "timeout" {
		t.Errorf("scoped error not captured: %v", msgs[0].Error)
	}
	if msgs[1].Fields != nil || msgs[1].Error != nil {
		t.Error("root logger picked up scoped state")
	}

	test.Clear()
	if len(test.GetMessages()) != 0 || test.String() != "" {
		t.Error("Clear() did not reset captured output")
	}
}
