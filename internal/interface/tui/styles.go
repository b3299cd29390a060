package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/neilberkman/pitchside/internal/core/models"
)

// Global styles used across views
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Padding(0, 1)

	// List view styles
	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(lipgloss.Color("170")).
				Bold(true)

	// Transcript styles
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("cyan")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")) // Lighter gray that works better in dark terminals

	typingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Italic(true)

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 3).
			Width(60)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

var topicColors = map[models.Topic]lipgloss.Color{
	models.TopicChelsea:  lipgloss.Color("25"),
	models.TopicFrontend: lipgloss.Color("37"),
	models.TopicMixed:    lipgloss.Color("97"),
	models.TopicGeneral:  lipgloss.Color("241"),
}

// topicBadge renders the colored topic label shown in lists
func topicBadge(t models.Topic) string {
	t = models.ParseTopic(string(t))
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("231")).
		Background(topicColors[t]).
		Padding(0, 1).
		Render(t.Label())
}
