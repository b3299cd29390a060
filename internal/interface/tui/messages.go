package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/pitchside/internal/core/chat"
	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/quota"
)

type errMsg struct {
	err error
}

// Controller hook events
type (
	stateMsg          struct{ state chat.State }
	chatMessageMsg    struct{ msg models.Message }
	typingMsg         struct{ partial string }
	quotaMsg          struct{ rec quota.Record }
	quotaExceededMsg  struct{ rec quota.Record }
	sessionCreatedMsg struct{ event chat.SessionCreated }
	turnCompleteMsg   struct{ result chat.Result }
)

// usageLoadedMsg answers loadUsage; it is not a hook event
type usageLoadedMsg struct {
	rec quota.Record
}

type sendDoneMsg struct {
	result chat.Result
	err    error
}

type historyLoadedMsg struct {
	snap history.Snapshot
	err  error
}

type deleteDoneMsg struct {
	sessionID string
	snap      history.Snapshot
	err       error
}

type continuedMsg struct {
	session *models.Session
	err     error
}

type copiedMsg struct {
	title string
	err   error
}

type canceledMsg struct{}

type newChatMsg struct{}

// events carries controller hooks from the send goroutine to Update
type events struct {
	ch   chan tea.Msg
	done chan struct{}
}

func newEvents() *events {
	return &events{ch: make(chan tea.Msg, 64), done: make(chan struct{})}
}

func (e *events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// close unblocks any hook still waiting on a full channel
func (e *events) close() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

func (e *events) hooks() chat.Hooks {
	return chat.Hooks{
		OnState:   func(s chat.State) { e.send(stateMsg{s}) },
		OnMessage: func(m models.Message) { e.send(chatMessageMsg{m}) },
		OnTyping: func(partial string) {
			// Later steps carry the full prefix, so a dropped one is harmless
			select {
			case e.ch <- typingMsg{partial}:
			default:
			}
		},
		OnQuota:          func(r quota.Record) { e.send(quotaMsg{r}) },
		OnQuotaExceeded:  func(r quota.Record) { e.send(quotaExceededMsg{r}) },
		OnSessionCreated: func(c chat.SessionCreated) { e.send(sessionCreatedMsg{c}) },
		OnTurnComplete:   func(r chat.Result) { e.send(turnCompleteMsg{r}) },
	}
}

func (e *events) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}

func sendMessage(ctx context.Context, ctrl *chat.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := ctrl.Send(ctx, text)
		return sendDoneMsg{result: res, err: err}
	}
}

func loadUsage(ctx context.Context, ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		rec, ok, err := ctrl.Usage(ctx)
		if err != nil {
			return errMsg{err}
		}
		if !ok {
			return nil
		}
		return usageLoadedMsg{rec}
	}
}

// cancelChat stops playback off the Update goroutine; Cancel waits for the
// ticker to exit and the ticker may be blocked on the events channel.
func cancelChat(ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.Cancel()
		return canceledMsg{}
	}
}

func startNewChat(ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.NewChat()
		return newChatMsg{}
	}
}

func refreshHistory(ctx context.Context, h History) tea.Cmd {
	return func() tea.Msg {
		snap, err := h.Refresh(ctx)
		return historyLoadedMsg{snap: snap, err: err}
	}
}

func insertSession(ctx context.Context, h History, s models.Session) tea.Cmd {
	return func() tea.Msg {
		h.Insert(ctx, s)
		return historyLoadedMsg{snap: h.Snapshot()}
	}
}

func deleteSession(ctx context.Context, h History, sessionID string) tea.Cmd {
	return func() tea.Msg {
		snap, err := h.DeleteSession(ctx, sessionID)
		return deleteDoneMsg{sessionID: sessionID, snap: snap, err: err}
	}
}

func continueSession(ctx context.Context, h History, sessionID string, ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		s, err := h.ContinueSession(ctx, sessionID, ctrl)
		return continuedMsg{session: s, err: err}
	}
}

// copyTranscript fetches a saved conversation and puts it on the clipboard
func copyTranscript(ctx context.Context, h History, sessionID string) tea.Cmd {
	return func() tea.Msg {
		s, err := h.Transcript(ctx, sessionID)
		if err != nil {
			return copiedMsg{err: err}
		}
		return writeClipboard(*s)
	}
}

// copyCurrent copies the conversation on screen
func copyCurrent(ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		return writeClipboard(ctrl.Transcript().Snapshot())
	}
}

func writeClipboard(s models.Session) tea.Msg {
	if len(s.Messages) == 0 {
		return copiedMsg{err: errors.New("nothing to copy")}
	}
	if err := clipboard.WriteAll(plainTranscript(s)); err != nil {
		return copiedMsg{err: fmt.Errorf("failed to copy to clipboard: %w", err)}
	}
	return copiedMsg{title: s.DisplayTitle()}
}

// plainTranscript renders a conversation as plain text for the clipboard
func plainTranscript(s models.Session) string {
	var b strings.Builder
	b.WriteString(s.DisplayTitle() + "\n\n")
	for _, m := range s.Messages {
		who := "Assistant"
		if m.IsUser() {
			who = "You"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", who, m.Text)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
