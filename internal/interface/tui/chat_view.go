package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
	"github.com/neilberkman/pitchside/internal/core/chat"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/prompts"
)

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if m.state != chat.StateIdle {
			m.status = "Still answering the last message..."
			return m, nil
		}
		m.input.Reset()
		m.status = ""
		m.err = nil
		return m, sendMessage(m.ctx, m.ctrl, text)

	case key.Matches(msg, m.keys.Stop):
		if m.state != chat.StateIdle {
			return m, cancelChat(m.ctrl)
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.status = ""
		m.err = nil
		return m, startNewChat(m.ctrl)

	case key.Matches(msg, m.keys.Copy):
		return m, copyCurrent(m.ctrl)

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Scroll):
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refreshTranscript re-renders the conversation and keeps the newest line
// in view unless the user scrolled up.
func (m Model) refreshTranscript() Model {
	atBottom := m.transcript.AtBottom()
	m.transcript.SetContent(m.renderTranscript())
	if atBottom {
		m.transcript.GotoBottom()
	}
	return m
}

func (m Model) welcome() string {
	d := prompts.WelcomeData{Free: !m.authenticated(), Limit: m.ctrl.Limit()}
	if m.opts.User != nil {
		d.Name = m.opts.User.DisplayName()
	}
	return m.opts.Prompts.Welcome(d)
}

func (m Model) renderTranscript() string {
	return renderConversation(m.ctrl.Transcript().Messages(), m.partial, m.state, m.welcome(), m.transcript.Width)
}

// renderConversation lays out the messages, the reply being typed and, for
// an empty conversation, the welcome line.
func renderConversation(messages []models.Message, partial string, state chat.State, welcome string, width int) string {
	wrapWidth := width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder
	if len(messages) == 0 {
		b.WriteString(assistantStyle.Render("▸ Assistant") + "\n")
		b.WriteString(wordwrap.String(welcome, wrapWidth) + "\n\n")
	}

	for _, msg := range messages {
		label := assistantStyle.Render("▸ Assistant")
		if msg.IsUser() {
			label = userStyle.Render("▸ You")
		}
		b.WriteString(label + " " + timestampStyle.Render(msg.Timestamp.Format("15:04")))
		if msg.OffTopic {
			b.WriteString(" " + timestampStyle.Render("(off topic)"))
		}
		b.WriteString("\n")

		text := wordwrap.String(msg.Text, wrapWidth)
		if msg.IsError {
			text = errorStyle.Render(text)
		}
		b.WriteString(text + "\n\n")
	}

	if state == chat.StatePlayback {
		b.WriteString(assistantStyle.Render("▸ Assistant") + " " + typingStyle.Render("typing...") + "\n")
		b.WriteString(wordwrap.String(partial, wrapWidth) + "▍\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) banner() string {
	if m.authenticated() {
		return m.opts.Prompts.Banner(prompts.BannerData{Premium: true})
	}
	if m.usage == nil {
		return ""
	}
	return m.opts.Prompts.Banner(prompts.BannerData{
		Count:   m.usage.Count,
		Limit:   m.ctrl.Limit(),
		Premium: m.usage.Premium,
	})
}

func (m Model) chatStatus() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("Error: " + m.err.Error())
	case m.state == chat.StateSending:
		return m.spinner.View() + " " + statusStyle.Render("Thinking...")
	case m.state == chat.StatePlayback:
		return statusStyle.Render("typing... (esc to skip)")
	case m.status != "":
		return statusStyle.Render(m.status)
	}
	return ""
}

func (m Model) viewChat() string {
	var b strings.Builder
	b.WriteString(m.transcript.View() + "\n")
	if banner := m.banner(); banner != "" {
		b.WriteString(bannerStyle.Render(banner))
	}
	b.WriteString("\n")
	b.WriteString(m.chatStatus() + "\n")
	b.WriteString(m.input.View() + "\n")

	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// messageCountLabel pluralizes a message count
func messageCountLabel(n int) string {
	if n == 1 {
		return "1 message"
	}
	return fmt.Sprintf("%d messages", n)
}
