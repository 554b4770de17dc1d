package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tweetcrawler/pkg/ui"
)

// TUI represents the terminal user interface. It implements ui.Reporter so
// the crawler can drive it from its own goroutine.
type TUI struct {
	program *tea.Program
	model   *Model
}

var (
	_ ui.Reporter = (*TUI)(nil)
	_ ui.Pauser   = (*TUI)(nil)
)

// NewTUI creates a new TUI instance
func NewTUI(query string, opts ...tea.ProgramOption) *TUI {
	model := NewModel(query)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the TUI until it is stopped or the user quits
func (t *TUI) Start() error {
	go func() {
		// Send initial tick to start the spinner
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) StartCrawl(total, completed int) {
	t.Send(CrawlStartMsg{Total: total, Completed: completed})
}

func (t *TUI) StartDay(day string) {
	t.Send(DayStartMsg{Day: day})
}

func (t *TUI) RetryDay(day string, attempt, remaining int, delay time.Duration, err error) {
	t.Send(DayRetryMsg{Day: day, Attempt: attempt, Remaining: remaining, Delay: delay, Error: err})
}

func (t *TUI) RateLimited(resetAt time.Time) {
	t.Send(RateLimitMsg{ResetAt: resetAt})
}

func (t *TUI) CompleteDay(day string, records, tweets int, file string) {
	t.Send(DayCompleteMsg{Day: day, Records: records, Tweets: tweets, File: file})
}

func (t *TUI) SkipDay(day string) {
	t.Send(DaySkipMsg{Day: day})
}

func (t *TUI) FailDay(day string, err error) {
	t.Send(DayFailedMsg{Day: day, Error: err})
}

func (t *TUI) Complete() {
	t.Send(CrawlCompleteMsg{})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogSuccess logs a success message
func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}

// IsPaused returns whether the user paused the crawl
func (t *TUI) IsPaused() bool {
	return t.model.IsPaused()
}
