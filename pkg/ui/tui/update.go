package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// CrawlStartMsg is sent once the range is known
type CrawlStartMsg struct {
	Total     int
	Completed int
}

// DayStartMsg is sent when a day's retrieval starts
type DayStartMsg struct {
	Day string
}

// DayRetryMsg is sent when an attempt failed and will be retried
type DayRetryMsg struct {
	Day       string
	Attempt   int
	Remaining int
	Delay     time.Duration
	Error     error
}

// DayCompleteMsg is sent when a day's batch has been written
type DayCompleteMsg struct {
	Day     string
	Records int
	Tweets  int
	File    string
}

// DaySkipMsg is sent for days a previous run already wrote
type DaySkipMsg struct {
	Day string
}

// DayFailedMsg is sent when a day's retrieval is given up
type DayFailedMsg struct {
	Day   string
	Error error
}

// RateLimitMsg is sent when the API asks the crawler to back off
type RateLimitMsg struct {
	ResetAt time.Time
}

// CrawlCompleteMsg is sent when the crawl returns
type CrawlCompleteMsg struct{}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, (msg.Width-4)/2-12)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.progress.Update(msg)
		if p, ok := updated.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case TickMsg:
		// Regular UI update tick
		return m, tea.Batch(
			tickCmd(),
			m.spinner.Tick,
		)

	case CrawlStartMsg:
		m.StartCrawl(msg.Total, msg.Completed)
		m.AddLogMessage("INFO", fmt.Sprintf("Crawling %d days, %d already written", msg.Total, msg.Completed))
		return m, nil

	case DayStartMsg:
		m.StartDay(msg.Day)
		m.AddLogMessage("INFO", "Fetching "+msg.Day)
		return m, nil

	case DayRetryMsg:
		m.RetryDay(msg.Day, msg.Attempt, msg.Remaining, msg.Delay, msg.Error)
		m.AddLogMessage("WARN", fmt.Sprintf("%s attempt %d failed: %v", msg.Day, msg.Attempt, msg.Error))
		return m, nil

	case DayCompleteMsg:
		m.CompleteDay(msg.Day, msg.Records, msg.Tweets, msg.File)
		m.AddLogMessage("SUCCESS", fmt.Sprintf("%s written: %d tweets", msg.Day, msg.Tweets))
		return m, m.progress.SetPercent(m.percent())

	case DaySkipMsg:
		m.SkipDay(msg.Day)
		return m, m.progress.SetPercent(m.percent())

	case DayFailedMsg:
		m.FailDay(msg.Day, msg.Error)
		m.AddLogMessage("ERROR", fmt.Sprintf("%s failed: %v", msg.Day, msg.Error))
		return m, nil

	case RateLimitMsg:
		m.UpdateRateLimit(msg.ResetAt)
		m.AddLogMessage("WARN", "Rate limited until "+msg.ResetAt.Format("15:04:05"))
		return m, nil

	case CrawlCompleteMsg:
		m.Finish()
		m.AddLogMessage("SUCCESS", "Crawl finished")
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// percent is the share of days in range that are written
func (m *Model) percent() float64 {
	s := m.stats.Snapshot()
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done()) / float64(s.Total)
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.TogglePause()
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		// Clear logs
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
