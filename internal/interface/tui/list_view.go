package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/neilberkman/pitchside/internal/core/models"
)

type sessionListItem struct {
	session models.Session
}

func (i sessionListItem) FilterValue() string {
	return i.session.Title + " " + i.session.Preview
}

func (i sessionListItem) Title() string {
	return i.session.DisplayTitle()
}

func (i sessionListItem) Description() string {
	desc := messageCountLabel(i.session.MessageCount)
	if !i.session.LastActivity.IsZero() {
		desc += " | " + humanize.Time(i.session.LastActivity)
	}
	return desc
}

// Custom delegate to draw topic badges
type sessionDelegate struct {
	list.DefaultDelegate
}

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	s, ok := item.(sessionListItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	title := s.Title()
	if w := m.Width() - 16; w > 10 {
		title = ansi.Truncate(title, w, "…")
	}
	desc := s.Description()

	if index == m.Index() {
		title = selectedItemStyle.Render(title)
		desc = selectedItemStyle.Faint(true).Render(desc)
	} else {
		title = itemStyle.Render(title)
		desc = itemStyle.Render(desc)
	}

	fmt.Fprintf(w, "%s %s\n%s", title, topicBadge(s.session.Topic), desc)
}

func createSessionList(sessions []models.Session, width, height int) list.Model {
	delegate := sessionDelegate{DefaultDelegate: list.NewDefaultDelegate()}

	l := list.New(sessionItems(sessions), delegate, width, height)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false) // Filtering uses history.ParseFilter on /

	return l
}

func sessionItems(sessions []models.Session) []list.Item {
	items := make([]list.Item, len(sessions))
	for i, s := range sessions {
		items[i] = sessionListItem{session: s}
	}
	return items
}

// applyFilter rebuilds the list from the snapshot and the active filter
func (m Model) applyFilter() Model {
	sessions := history.ParseFilter(m.filterQuery).Apply(m.snap.Sessions)
	idx := m.list.Index()
	m.list.SetItems(sessionItems(sessions))
	if idx >= len(sessions) {
		idx = len(sessions) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	return m
}

func (m Model) selectedSession() (models.Session, bool) {
	item, ok := m.list.SelectedItem().(sessionListItem)
	if !ok {
		return models.Session{}, false
	}
	return item.session, true
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		return m.updateFilter(msg)
	}

	if m.confirmDelete != "" {
		id := m.confirmDelete
		m.confirmDelete = ""
		if msg.String() == "y" || msg.String() == "Y" {
			m.status = "Deleting..."
			return m, deleteSession(m.ctx, m.history, id)
		}
		m.status = ""
		return m, nil
	}

	switch {
	case key.Matches(msg, listKeys.Quit):
		return m.quit()

	case key.Matches(msg, listKeys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, listKeys.Open):
		if s, ok := m.selectedSession(); ok {
			m.status = "Opening..."
			return m, continueSession(m.ctx, m.history, s.SessionID, m.ctrl)
		}
		return m, nil

	case key.Matches(msg, listKeys.Delete):
		if s, ok := m.selectedSession(); ok {
			m.confirmDelete = s.SessionID
			m.status = ""
		}
		return m, nil

	case key.Matches(msg, listKeys.Copy):
		if s, ok := m.selectedSession(); ok {
			return m, copyTranscript(m.ctx, m.history, s.SessionID)
		}
		return m, nil

	case key.Matches(msg, listKeys.NewChat):
		m.tab = chatTab
		return m, tea.Batch(startNewChat(m.ctrl), m.input.Focus())

	case key.Matches(msg, listKeys.Refresh):
		m.loading = true
		m.status = ""
		return m, refreshHistory(m.ctx, m.history)

	case key.Matches(msg, listKeys.Filter):
		m.filtering = true
		m.filter.SetValue(m.filterQuery)
		return m, m.filter.Focus()

	case msg.String() == "esc":
		if m.filterQuery != "" {
			m.filterQuery = ""
			m = m.applyFilter()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filterQuery = strings.TrimSpace(m.filter.Value())
		m.filter.Blur()
		m = m.applyFilter()
		return m, nil
	case "esc":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m Model) viewList() string {
	var footer string
	switch {
	case m.filtering:
		footer = m.filter.View()
	case m.confirmDelete != "":
		footer = errorStyle.Render("Delete this conversation? (y/N)")
	case m.status != "":
		footer = statusStyle.Render(m.status)
	case m.filterQuery != "":
		footer = statusStyle.Render("filter: "+m.filterQuery) + helpStyle.Render("  (esc clears)")
	}

	var notice string
	if m.snap.Degraded {
		notice = errorStyle.Render("Offline: showing saved history") + "\n"
	}

	keys := m.help.ShortHelpView(listKeys.ShortHelp())

	if len(m.list.Items()) == 0 {
		empty := "No conversations yet. Start one in the New Chat tab."
		switch {
		case m.loading:
			empty = "Loading history..."
		case m.filterQuery != "":
			empty = "No conversations match: " + m.filterQuery
		}
		return notice + empty + "\n\n" + footer + "\n" + keys
	}

	return notice + m.list.View() + "\n" + footer + "\n" + keys
}
