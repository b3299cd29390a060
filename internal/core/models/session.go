package models

import (
	"errors"
	"strings"
	"time"
)

// Topic classifies a conversation for badges and analytics
type Topic string

const (
	TopicChelsea  Topic = "chelsea"
	TopicFrontend Topic = "frontend"
	TopicMixed    Topic = "mixed"
	TopicGeneral  Topic = "general"
)

// Topics lists every known topic in display order
var Topics = []Topic{TopicChelsea, TopicFrontend, TopicMixed, TopicGeneral}

// ParseTopic maps a server value onto a known topic, defaulting to general
func ParseTopic(s string) Topic {
	switch Topic(strings.ToLower(strings.TrimSpace(s))) {
	case TopicChelsea:
		return TopicChelsea
	case TopicFrontend:
		return TopicFrontend
	case TopicMixed:
		return TopicMixed
	default:
		return TopicGeneral
	}
}

// Label returns the human readable badge text
func (t Topic) Label() string {
	switch t {
	case TopicChelsea:
		return "Chelsea FC"
	case TopicFrontend:
		return "Frontend"
	case TopicMixed:
		return "Mixed"
	default:
		return "General"
	}
}

// Session is the canonical shape of one persisted conversation.
// Remote payloads that use alternate field names are normalized into it
// at the API boundary.
type Session struct {
	SessionID    string    `json:"sessionId"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	Topic        Topic     `json:"topic"`
	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
	Messages     []Message `json:"messages,omitempty"`
}

// Validate checks if the session has required fields
func (s *Session) Validate() error {
	if s.SessionID == "" {
		return errors.New("session_id is required")
	}
	if s.MessageCount < 0 {
		return errors.New("message_count must not be negative")
	}
	return nil
}

// DisplayTitle falls back to the preview when the server sent no title
func (s *Session) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	if p := strings.TrimSpace(s.Preview); p != "" {
		return p
	}
	return "Untitled chat"
}

// Stats summarizes a user's chat usage
type Stats struct {
	TotalChats         int       `json:"totalChats"`
	TotalMessages      int       `json:"totalMessages"`
	AvgMessagesPerChat float64   `json:"avgMessagesPerChat"`
	MostActiveTopic    string    `json:"mostActiveTopic"`
	RecentActivity     []Session `json:"recentActivity,omitempty"`
}
