package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/neilberkman/pitchside/internal/core/chat"
	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/prompts"
	"github.com/neilberkman/pitchside/internal/core/quota"
	"github.com/rs/zerolog"
)

// History is what the dashboard needs from the history reconciler
type History interface {
	Refresh(ctx context.Context) (history.Snapshot, error)
	Snapshot() history.Snapshot
	DeleteSession(ctx context.Context, sessionID string) (history.Snapshot, error)
	ContinueSession(ctx context.Context, sessionID string, into history.Resumer) (*models.Session, error)
	Transcript(ctx context.Context, sessionID string) (*models.Session, error)
	Insert(ctx context.Context, s models.Session)
}

// Options wires the TUI
type Options struct {
	Mode chat.Mode
	// NewController builds the controller with the hooks the TUI listens on
	NewController func(chat.Hooks) (*chat.Controller, error)
	// History is required in authenticated mode
	History History
	Prompts prompts.Set
	User    *models.User
	// ResumeID opens a saved conversation at startup
	ResumeID string
	Logger   zerolog.Logger
}

type promptsChangedMsg struct {
	set prompts.Set
}

// PromptsChanged swaps the templates of a running program, e.g. after the
// config file was edited.
func PromptsChanged(set prompts.Set) tea.Msg {
	return promptsChangedMsg{set: set}
}

type tab int

const (
	chatTab tab = iota
	historyTab
	analyticsTab
)

var tabNames = []string{"New Chat", "History", "Analytics"}

type Model struct {
	ctx     context.Context
	opts    Options
	ctrl    *chat.Controller
	events  *events
	history History
	logger  zerolog.Logger

	keys        chatKeyMap
	help        help.Model
	tab         tab
	showHelp    bool
	showUpgrade bool
	width       int
	height      int

	// Chat view
	input      textarea.Model
	transcript viewport.Model
	spinner    spinner.Model
	state      chat.State
	partial    string
	usage      *quota.Record
	status     string
	err        error

	// History and analytics views
	list          list.Model
	snap          history.Snapshot
	loading       bool
	filter        textinput.Model
	filtering     bool
	filterQuery   string
	confirmDelete string

	quitting bool
}

// New builds the model and its controller
func New(ctx context.Context, opts Options) (Model, error) {
	if opts.NewController == nil {
		return Model{}, errors.New("tui: controller factory is required")
	}
	if opts.Mode == chat.ModeAuthenticated && opts.History == nil {
		return Model{}, errors.New("tui: history is required when logged in")
	}
	if opts.Prompts == (prompts.Set{}) {
		opts.Prompts = prompts.Defaults()
	}

	ev := newEvents()
	ctrl, err := opts.NewController(ev.hooks())
	if err != nil {
		return Model{}, err
	}

	input := textarea.New()
	input.Placeholder = "Ask about Chelsea FC or frontend development..."
	input.ShowLineNumbers = false
	input.CharLimit = 2000
	input.SetHeight(3)
	keys := newChatKeys(opts.Mode == chat.ModeAuthenticated)
	input.KeyMap.InsertNewline = keys.Newline
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	filter := textinput.New()
	filter.Placeholder = "topic:chelsea after:last-week ..."
	filter.Prompt = "/ "

	return Model{
		ctx:        ctx,
		opts:       opts,
		ctrl:       ctrl,
		events:     ev,
		history:    opts.History,
		logger:     opts.Logger,
		keys:       keys,
		help:       help.New(),
		input:      input,
		transcript: viewport.New(0, 0),
		spinner:    sp,
		filter:     filter,
		list:       createSessionList(nil, 0, 0),
		loading:    opts.Mode == chat.ModeAuthenticated,
	}, nil
}

// Close releases the send goroutine and stops playback. Call it after the
// program exits.
func (m Model) Close() {
	m.events.close()
	m.ctrl.Cancel()
}

func (m Model) authenticated() bool {
	return m.opts.Mode == chat.ModeAuthenticated
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.events.wait(), textarea.Blink, loadUsage(m.ctx, m.ctrl)}
	if m.authenticated() {
		cmds = append(cmds, refreshHistory(m.ctx, m.history))
		if m.opts.ResumeID != "" {
			cmds = append(cmds, continueSession(m.ctx, m.history, m.opts.ResumeID, m.ctrl))
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case stateMsg:
		m.state = msg.state
		if m.state != chat.StatePlayback {
			m.partial = ""
		}
		m = m.refreshTranscript()
		var cmd tea.Cmd
		if m.state == chat.StateSending {
			cmd = m.spinner.Tick
		}
		return m, tea.Batch(m.events.wait(), cmd)

	case chatMessageMsg:
		m = m.refreshTranscript()
		return m, m.events.wait()

	case typingMsg:
		m.partial = msg.partial
		m = m.refreshTranscript()
		return m, m.events.wait()

	case quotaMsg:
		rec := msg.rec
		m.usage = &rec
		return m, m.events.wait()

	case usageLoadedMsg:
		rec := msg.rec
		m.usage = &rec
		return m, nil

	case quotaExceededMsg:
		rec := msg.rec
		m.usage = &rec
		m.showUpgrade = true
		return m, m.events.wait()

	case sessionCreatedMsg:
		var cmd tea.Cmd
		if m.history != nil {
			cmd = insertSession(m.ctx, m.history, msg.event.Session())
		}
		return m, tea.Batch(m.events.wait(), cmd)

	case turnCompleteMsg:
		if msg.result.Failed {
			m.logger.Debug().Err(msg.result.Err).Msg("turn failed")
		}
		return m, m.events.wait()

	case sendDoneMsg:
		switch {
		case errors.Is(msg.err, chat.ErrQuotaExceeded):
			m.showUpgrade = true
		case errors.Is(msg.err, chat.ErrBusy):
			m.status = "Still answering the last message..."
		case errors.Is(msg.err, chat.ErrEmptyInput):
		case msg.err != nil:
			m.err = msg.err
		}
		m = m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		if m.state != chat.StateSending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case historyLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.snap = msg.snap
		m = m.applyFilter()
		return m, nil

	case deleteDoneMsg:
		if msg.err != nil {
			m.status = "Delete failed: " + msg.err.Error()
			return m, nil
		}
		m.snap = msg.snap
		m.status = "Conversation deleted"
		m = m.applyFilter()
		if msg.sessionID == m.ctrl.Transcript().SessionID() {
			return m, startNewChat(m.ctrl)
		}
		return m, nil

	case continuedMsg:
		if msg.err != nil {
			m.status = "Could not open conversation: " + msg.err.Error()
			return m, nil
		}
		m.tab = chatTab
		m.status = ""
		m.err = nil
		m = m.refreshTranscript()
		m.transcript.GotoBottom()
		return m, m.input.Focus()

	case copiedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = "Copied \"" + chat.Truncate(msg.title, 30) + "\" to clipboard"
		}
		return m, nil

	case canceledMsg, newChatMsg:
		m.partial = ""
		m = m.refreshTranscript()
		return m, nil

	case promptsChangedMsg:
		m.opts.Prompts = msg.set
		m = m.refreshTranscript()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	if m.tab == chatTab {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.showUpgrade {
		switch msg.String() {
		case "esc", "enter", "q", " ":
			m.showUpgrade = false
		}
		return m, nil
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if key.Matches(msg, m.keys.Switch) && !m.filtering && m.confirmDelete == "" {
		n := tab(len(tabNames))
		if msg.String() == "shift+tab" {
			return m.switchTab((m.tab + n - 1) % n)
		}
		return m.switchTab((m.tab + 1) % n)
	}

	switch m.tab {
	case historyTab:
		return m.updateList(msg)
	case analyticsTab:
		return m.updateAnalytics(msg)
	default:
		return m.updateChat(msg)
	}
}

// switchTab leaves the current view; leaving the chat stops any send in flight
func (m Model) switchTab(to tab) (tea.Model, tea.Cmd) {
	if to == m.tab {
		return m, nil
	}
	var cmds []tea.Cmd
	if m.tab == chatTab {
		m.input.Blur()
		cmds = append(cmds, cancelChat(m.ctrl))
	}
	m.tab = to
	m.status = ""
	if to == chatTab {
		cmds = append(cmds, m.input.Focus())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.events.close()
	return m, tea.Sequence(cancelChat(m.ctrl), tea.Quit)
}

func (m Model) layout() Model {
	m.input.SetWidth(m.width - 2)
	m.help.Width = m.width
	vpHeight := m.height - m.input.Height() - 7
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.transcript.Width = m.width
	m.transcript.Height = vpHeight
	m = m.refreshTranscript()
	m.list.SetSize(m.width, m.height-5)
	return m
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.viewHelp()
	}

	var body string
	switch m.tab {
	case historyTab:
		body = m.viewList()
	case analyticsTab:
		body = m.viewAnalytics()
	default:
		body = m.viewChat()
	}

	view := m.viewHeader() + "\n" + body
	if m.showUpgrade {
		return m.viewUpgrade()
	}
	return view
}

func (m Model) viewHeader() string {
	title := titleStyle.Render("Pitchside")
	if !m.authenticated() {
		return title + "  " + statusStyle.Render("Free mode")
	}

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if tab(i) == m.tab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}
	header := title + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.opts.User != nil {
		header += "  " + statusStyle.Render(m.opts.User.DisplayName())
	}
	return header
}

func (m Model) viewUpgrade() string {
	limit := m.ctrl.Limit()
	body := titleStyle.Render("Daily limit reached") + "\n\n" +
		m.opts.Prompts.Upgrade(limit) + "\n\n" +
		helpStyle.Render("esc close")
	box := modalStyle.Render(body)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
