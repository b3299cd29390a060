package tui

func (m Model) viewHelp() string {
	help := `
Pitchside - Help
════════════════

CHAT
────
  Enter          Send message
  Alt+Enter      New line
  Esc            Stop the reply being typed
  Ctrl+N         Start a new chat
  Ctrl+Y         Copy this conversation
  PgUp/PgDn      Scroll the conversation
  F1             Show this help

HISTORY (logged in)
───────────────────
  ↑/↓, j/k       Navigate conversations
  Enter          Continue conversation
  d              Delete (asks for confirmation)
  c              Copy conversation to clipboard
  /              Filter: topic:chelsea after:last-week date:2025-01-31 words
  Esc            Clear filter
  n              New chat
  r              Refresh from server

GENERAL
───────
  Tab/Shift+Tab  Switch view (logged in)
  q              Quit (outside the chat input)
  Ctrl+C         Quit

Press any key to return
`

	return helpStyle.Render(help)
}
