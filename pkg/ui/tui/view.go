package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderLogo())

	// Main content area with two columns
	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderLogo renders the banner
func (m *Model) renderLogo() string {
	logo := `
╔══════════════════════════════════════════════════════════════╗
║ ████████╗██╗    ██╗███████╗███████╗████████╗                 ║
║ ╚══██╔══╝██║    ██║██╔════╝██╔════╝╚══██╔══╝   CRAWLER       ║
║    ██║   ██║ █╗ ██║█████╗  █████╗     ██║                    ║
║    ██║   ╚███╔███╔╝███████╗███████╗   ██║                    ║
║    ╚═╝    ╚══╝╚══╝ ╚══════╝╚══════╝   ╚═╝                    ║
╚══════════════════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderCurrentDayPanel(width),
		m.renderDaysPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRateLimitPanel(width),
		m.renderLogsPanel(width),
	)
}

// renderStatsPanel renders the crawl statistics
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" CRAWL STATS ")

	s := m.Stats()
	eta := "calculating..."
	if d, ok := s.ETA(); ok {
		eta = formatDuration(d)
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Query:"), statsValueStyle.Render(truncate(m.query, width-14))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatDuration(s.Elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Days:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", s.Done(), s.Total))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Records:"), statsValueStyle.Render(fmt.Sprintf("%d", s.Records))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Tweets:"), statsValueStyle.Render(fmt.Sprintf("%d", s.Tweets))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Retries:"), statsValueStyle.Render(fmt.Sprintf("%d", s.Retries))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(eta)),
		m.progress.View(),
	}

	if m.IsPaused() {
		stats = append(stats, warningStyle.Render("⏸  PAUSED"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

// renderCurrentDayPanel renders the day being fetched
func (m *Model) renderCurrentDayPanel(width int) string {
	title := titleStyle.Render(" CURRENT DAY ")

	item := m.GetCurrentDay()
	if item == nil {
		text := "Idle"
		m.mu.RLock()
		if m.finished {
			text = "Crawl finished"
		}
		m.mu.RUnlock()
		content := lipgloss.NewStyle().Foreground(dimWhite).Render(text)
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	lines := []string{
		fmt.Sprintf("%s %s %s", m.spinner.View(), queueItemActiveStyle.Render(item.Day), statsValueStyle.Render(item.State.String())),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Attempt:"), statsValueStyle.Render(fmt.Sprintf("%d", item.Attempt))),
	}
	if item.State == DayRetrying {
		wait := item.RetryAt.Sub(m.now())
		if wait < 0 {
			wait = 0
		}
		lines = append(lines,
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Next try in:"), warningStyle.Render(formatDuration(wait))),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Attempts left:"), statsValueStyle.Render(fmt.Sprintf("%d", item.Remaining))),
		)
		if item.Error != nil {
			lines = append(lines, errorStyle.Render(truncate(item.Error.Error(), width-6)))
		}
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

// renderDaysPanel renders the recently finished days
func (m *Model) renderDaysPanel(width int) string {
	title := titleStyle.Render(" DAYS ")

	var items []string

	failed := m.GetDaysInState(DayFailed)
	for _, item := range failed {
		items = append(items, errorStyle.Render("✗ "+item.Day))
	}

	completed := m.GetDaysInState(DayCompleted)
	if n := len(completed); n > 0 {
		items = append(items, successStyle.Render(fmt.Sprintf("✓ %d written", n)))
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, item := range completed[start:] {
			items = append(items, queueItemCompletedStyle.Render(
				fmt.Sprintf("✓ %s  %d tweets  %s", item.Day, item.Tweets, item.File)))
		}
	}

	if skipped := len(m.GetDaysInState(DaySkipped)); skipped > 0 {
		items = append(items, queueItemStyle.Render(fmt.Sprintf("• %d skipped from checkpoint", skipped)))
	}

	s := m.Stats()
	if pending := s.Total - s.Done() - s.Failed; pending > 0 {
		items = append(items, warningStyle.Render(fmt.Sprintf("⏳ %d pending", pending)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, items...)
	if len(items) == 0 {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No days yet")
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

// renderRateLimitPanel renders the rate limit status
func (m *Model) renderRateLimitPanel(width int) string {
	m.mu.RLock()
	resetAt := m.rateLimitResetAt
	hits := m.rateLimitHits
	m.mu.RUnlock()

	title := titleStyle.Render(" RATE LIMIT STATUS ")

	resetIn := resetAt.Sub(m.now())
	status := rateLimitNormalStyle.Render("clear")
	if resetIn > 0 {
		status = rateLimitCriticalStyle.Render("waiting " + formatDuration(resetIn))
	}

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Status:"), status),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Limited:"), statsValueStyle.Render(fmt.Sprintf("%d times", hits))),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" CRAWL LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 35
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Navigation:
    q/Q      - Quit the application
    p/P      - Pause/Resume after the current day
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Written
    ` + warningStyle.Render("Orange") + `   - Retrying/Pending
    ` + errorStyle.Render("Red") + `      - Failed

  Icons:
    ⏳       - Pending days
    ✓        - Written day
    ✗        - Failed day
    ⏸        - Paused
`

	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
