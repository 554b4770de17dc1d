package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tweetcrawler/pkg/ui"
)

// DayState represents where a day is in the crawl
type DayState int

const (
	DayActive DayState = iota
	DayRetrying
	DayCompleted
	DaySkipped
	DayFailed
)

func (s DayState) String() string {
	switch s {
	case DayActive:
		return "fetching"
	case DayRetrying:
		return "retrying"
	case DayCompleted:
		return "written"
	case DaySkipped:
		return "skipped"
	case DayFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DayItem represents one day of the range once the crawl has reached it
type DayItem struct {
	Day       string
	State     DayState
	Attempt   int
	Remaining int
	RetryAt   time.Time
	Records   int
	Tweets    int
	File      string
	StartTime time.Time
	Error     error
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner  spinner.Model
	progress progress.Model

	// Crawl state
	query    string
	days     map[string]*DayItem
	dayOrder []string
	stats    *ui.StatusTracker
	finished bool

	// Rate limiting
	rateLimitResetAt time.Time
	rateLimitHits    int

	// UI state
	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int
	now            func() time.Time

	// Guards the fields read from outside the bubbletea loop
	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model for a crawl of query
func NewModel(query string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:        s,
		progress:       p,
		query:          query,
		days:           make(map[string]*DayItem),
		stats:          ui.NewStatusTracker(),
		logMessages:    []LogMessage{},
		maxLogMessages: 50,
		now:            time.Now,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// StartCrawl resets the day counters
func (m *Model) StartCrawl(total, completed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Start(total)
	m.days = make(map[string]*DayItem)
	m.dayOrder = nil
	m.finished = false
}

// day returns the item for day, creating it if needed. Callers hold mu.
func (m *Model) day(day string) *DayItem {
	item, ok := m.days[day]
	if !ok {
		item = &DayItem{Day: day}
		m.days[day] = item
		m.dayOrder = append(m.dayOrder, day)
	}
	return item
}

// StartDay marks day as being fetched
func (m *Model) StartDay(day string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.day(day)
	item.State = DayActive
	item.Attempt = 1
	item.StartTime = m.now()
}

// RetryDay records a failed attempt that will be retried after delay
func (m *Model) RetryDay(day string, attempt, remaining int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.day(day)
	item.State = DayRetrying
	item.Attempt = attempt + 1
	item.Remaining = remaining
	item.RetryAt = m.now().Add(delay)
	item.Error = err
	m.stats.Retry()
}

// CompleteDay marks day as written
func (m *Model) CompleteDay(day string, records, tweets int, file string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.day(day)
	item.State = DayCompleted
	item.Records = records
	item.Tweets = tweets
	item.File = file
	item.Error = nil
	m.stats.Complete(records, tweets)
}

// SkipDay marks day as written by a previous run
func (m *Model) SkipDay(day string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.day(day).State = DaySkipped
	m.stats.Skip()
}

// FailDay marks day as given up
func (m *Model) FailDay(day string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.day(day)
	item.State = DayFailed
	item.Error = err
	m.stats.Fail()
}

// UpdateRateLimit records that requests are held until resetAt
func (m *Model) UpdateRateLimit(resetAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimitResetAt = resetAt
	m.rateLimitHits++
}

// Finish marks the crawl as over
func (m *Model) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = true
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// TogglePause flips the paused flag and returns the new value
func (m *Model) TogglePause() bool {
	m.mu.Lock()
	m.isPaused = !m.isPaused
	paused := m.isPaused
	m.mu.Unlock()

	if paused {
		m.AddLogMessage("WARN", "Crawl paused by user, the current day will finish first")
	} else {
		m.AddLogMessage("INFO", "Crawl resumed by user")
	}
	return paused
}

// IsPaused returns whether the user paused the crawl
func (m *Model) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetCurrentDay returns the day being fetched or retried, or nil
func (m *Model) GetCurrentDay() *DayItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.dayOrder) - 1; i >= 0; i-- {
		item := m.days[m.dayOrder[i]]
		if item.State == DayActive || item.State == DayRetrying {
			copied := *item
			return &copied
		}
	}
	return nil
}

// GetDaysInState returns copies of the days in state, in crawl order
func (m *Model) GetDaysInState(state DayState) []DayItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []DayItem
	for _, day := range m.dayOrder {
		if item := m.days[day]; item.State == state {
			out = append(out, *item)
		}
	}
	return out
}

// Stats returns the crawl counters
func (m *Model) Stats() ui.Snapshot {
	return m.stats.Snapshot()
}
