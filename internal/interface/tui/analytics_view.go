package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/neilberkman/pitchside/internal/core/models"
)

const recentShown = 5

func (m Model) updateAnalytics(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "?":
		m.showHelp = true
	case "r":
		m.loading = true
		return m, refreshHistory(m.ctx, m.history)
	}
	return m, nil
}

// renderBar draws a share of a whole as a fixed-width bar
func renderBar(current, total, width int) string {
	if total == 0 {
		return ""
	}

	barWidth := width - 40
	if barWidth > 40 {
		barWidth = 40
	}
	if barWidth < 10 {
		barWidth = 10
	}

	filled := int(float64(barWidth) * float64(current) / float64(total))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	pct := float64(current) / float64(total) * 100

	return fmt.Sprintf("[%s] %3.0f%% (%d)", bar, pct, current)
}

func (m Model) viewAnalytics() string {
	if m.loading && len(m.snap.Sessions) == 0 {
		return "Loading analytics..."
	}

	stats := m.snap.Stats
	var b strings.Builder

	if m.snap.Degraded {
		b.WriteString(errorStyle.Render("Offline: figures computed from saved history") + "\n\n")
	}

	fmt.Fprintf(&b, "Total chats:         %d\n", stats.TotalChats)
	fmt.Fprintf(&b, "Total messages:      %d\n", stats.TotalMessages)
	fmt.Fprintf(&b, "Avg messages/chat:   %.0f\n", stats.AvgMessagesPerChat)
	topic := stats.MostActiveTopic
	if topic == "" {
		topic = models.TopicGeneral.Label()
	}
	fmt.Fprintf(&b, "Most active topic:   %s\n", topic)

	if dist := history.TopicDistribution(m.snap.Sessions); len(dist) > 0 {
		b.WriteString("\n" + titleStyle.Render("Topics") + "\n")
		for _, tc := range dist {
			fmt.Fprintf(&b, "  %-11s %s\n", tc.Topic.Label(), renderBar(tc.Count, len(m.snap.Sessions), m.width))
		}
	}

	recent := stats.RecentActivity
	if len(recent) == 0 {
		recent = m.snap.Sessions
	}
	if len(recent) > recentShown {
		recent = recent[:recentShown]
	}
	if len(recent) > 0 {
		b.WriteString("\n" + titleStyle.Render("Recent activity") + "\n")
		for _, s := range recent {
			when := ""
			if !s.LastActivity.IsZero() {
				when = timestampStyle.Render(" " + humanize.Time(s.LastActivity))
			}
			fmt.Fprintf(&b, "  • %s%s\n", s.DisplayTitle(), when)
		}
	}

	b.WriteString("\n" + helpStyle.Render("r refresh • tab switch view • ? help • q quit"))
	return b.String()
}
