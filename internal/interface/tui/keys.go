package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

type chatKeyMap struct {
	Send    key.Binding
	Newline key.Binding
	Stop    key.Binding
	NewChat key.Binding
	Copy    key.Binding
	Scroll  key.Binding
	Switch  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp implements help.KeyMap.
func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.Send, k.Newline, k.Stop, k.NewChat, k.Copy, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k chatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Scroll}}
}

func newChatKeys(tabs bool) chatKeyMap {
	k := chatKeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("alt+enter", "newline"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new chat"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy"),
		),
		Scroll: key.NewBinding(
			key.WithKeys("pgup", "pgdown", "ctrl+up", "ctrl+down"),
			key.WithHelp("pgup/pgdn", "scroll"),
		),
		Switch: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "switch view"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
	k.Switch.SetEnabled(tabs)
	return k
}

type listKeyMap struct {
	Open    key.Binding
	Delete  key.Binding
	Copy    key.Binding
	Filter  key.Binding
	NewChat key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp implements help.KeyMap.
func (k listKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Delete, k.Copy, k.Filter, k.NewChat, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k listKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var listKeys = listKeyMap{
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "continue"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Copy: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "copy"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	NewChat: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new chat"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
}
