package models

import "time"

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one rendered line of a conversation
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
	IsError   bool      `json:"isError,omitempty"`
	OffTopic  bool      `json:"isOffTopic,omitempty"`
}

// IsUser reports whether the message was typed by the local user
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}
