package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
)

// flexTime accepts RFC3339 strings, numeric strings and epoch numbers
type flexTime struct {
	time.Time
}

func (ft *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			ft.Time = fromEpoch(n)
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				ft.Time = t
				return nil
			}
		}
		return fmt.Errorf("unrecognized time %q", s)
	}

	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	ft.Time = fromEpoch(n)
	return nil
}

// fromEpoch treats large values as milliseconds
func fromEpoch(n float64) time.Time {
	if n > 1e11 {
		return time.UnixMilli(int64(n))
	}
	return time.Unix(int64(n), 0)
}

type wireMessage struct {
	ID         string   `json:"_id"`
	AltID      string   `json:"id"`
	Content    string   `json:"content"`
	Text       string   `json:"text"`
	Sender     string   `json:"sender"`
	Role       string   `json:"role"`
	Timestamp  flexTime `json:"timestamp"`
	IsOffTopic bool     `json:"isOffTopic"`
}

type wireSession struct {
	SessionID    string        `json:"sessionId"`
	ID           string        `json:"_id"`
	Title        string        `json:"title"`
	Preview      string        `json:"preview"`
	Topic        string        `json:"topic"`
	MessageCount int           `json:"messageCount"`
	LastActivity flexTime      `json:"lastActivity"`
	Timestamp    flexTime      `json:"timestamp"`
	CreatedAt    flexTime      `json:"createdAt"`
	LastMessage  *wireMessage  `json:"lastMessage"`
	Messages     []wireMessage `json:"messages"`
}

func normalizeSender(w wireMessage) models.Sender {
	s := w.Sender
	if s == "" {
		s = w.Role
	}
	if strings.EqualFold(s, "user") {
		return models.SenderUser
	}
	return models.SenderBot
}

func normalizeMessage(w wireMessage, sessionID string) models.Message {
	id := w.ID
	if id == "" {
		id = w.AltID
	}
	text := w.Content
	if text == "" {
		text = w.Text
	}
	return models.Message{
		ID:        id,
		Text:      text,
		Sender:    normalizeSender(w),
		Timestamp: w.Timestamp.Time.Local(),
		SessionID: sessionID,
		OffTopic:  w.IsOffTopic,
	}
}

// normalizeSession collapses the alternate field names the backend uses
// into one models.Session.
func normalizeSession(w wireSession) models.Session {
	s := models.Session{
		SessionID: w.SessionID,
		Title:     strings.TrimSpace(w.Title),
		Preview:   w.Preview,
		Topic:     models.ParseTopic(w.Topic),
	}
	if s.SessionID == "" {
		s.SessionID = w.ID
	}

	for _, m := range w.Messages {
		s.Messages = append(s.Messages, normalizeMessage(m, s.SessionID))
	}
	sort.SliceStable(s.Messages, func(i, j int) bool {
		return s.Messages[i].Timestamp.Before(s.Messages[j].Timestamp)
	})

	if s.Preview == "" && w.LastMessage != nil {
		s.Preview = firstNonEmpty(w.LastMessage.Content, w.LastMessage.Text)
	}

	switch {
	case w.MessageCount > 0:
		s.MessageCount = w.MessageCount
	case len(s.Messages) > 0:
		s.MessageCount = len(s.Messages)
	default:
		s.MessageCount = 1
	}

	s.LastActivity = firstNonZero(w.LastActivity.Time, w.Timestamp.Time, w.CreatedAt.Time)
	if s.LastActivity.IsZero() && len(s.Messages) > 0 {
		s.LastActivity = s.Messages[len(s.Messages)-1].Timestamp
	}
	s.LastActivity = s.LastActivity.Local()

	s.CreatedAt = firstNonZero(w.CreatedAt.Time, s.LastActivity).Local()
	return s
}

func normalizeSessions(ws []wireSession) []models.Session {
	out := make([]models.Session, 0, len(ws))
	for _, w := range ws {
		s := normalizeSession(w)
		if s.SessionID == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func firstNonZero(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
