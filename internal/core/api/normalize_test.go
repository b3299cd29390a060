package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSessionDateFallbacks(t *testing.T) {
	tests := []struct {
		name string
		json string
		want time.Time
	}{
		{
			name: "lastActivity wins",
			json: `{"sessionId":"a","lastActivity":"2024-11-02T10:00:00Z","timestamp":"2024-11-01T10:00:00Z","createdAt":"2024-10-01T10:00:00Z"}`,
			want: time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "timestamp when lastActivity missing",
			json: `{"sessionId":"a","timestamp":"2024-11-01T10:00:00.123Z","createdAt":"2024-10-01T10:00:00Z"}`,
			want: time.Date(2024, 11, 1, 10, 0, 0, 123e6, time.UTC),
		},
		{
			name: "createdAt as last resort",
			json: `{"sessionId":"a","createdAt":"2024-10-01T10:00:00Z"}`,
			want: time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "epoch millis",
			json: `{"sessionId":"a","lastActivity":1730541600000}`,
			want: time.UnixMilli(1730541600000),
		},
		{
			name: "null fields are skipped",
			json: `{"sessionId":"a","lastActivity":null,"timestamp":"","createdAt":"2024-10-01T10:00:00Z"}`,
			want: time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w wireSession
			require.NoError(t, json.Unmarshal([]byte(tt.json), &w))
			s := normalizeSession(w)
			assert.True(t, s.LastActivity.Equal(tt.want), "got %v want %v", s.LastActivity, tt.want)
		})
	}
}

func TestNormalizeSessionFields(t *testing.T) {
	raw := `{
		"_id": "abc",
		"title": "  Blues  ",
		"topic": "CHELSEA",
		"lastMessage": {"content": "Up the Chels"},
		"messages": [
			{"_id": "2", "content": "second", "sender": "bot", "timestamp": "2024-11-02T10:00:05Z"},
			{"_id": "1", "content": "first", "sender": "user", "timestamp": "2024-11-02T10:00:00Z"},
			{"content": "third", "role": "assistant", "timestamp": "2024-11-02T10:00:09Z"}
		]
	}`
	var w wireSession
	require.NoError(t, json.Unmarshal([]byte(raw), &w))
	s := normalizeSession(w)

	assert.Equal(t, "abc", s.SessionID)
	assert.Equal(t, "Blues", s.Title)
	assert.Equal(t, models.TopicChelsea, s.Topic)
	assert.Equal(t, "Up the Chels", s.Preview)
	assert.Equal(t, 3, s.MessageCount)
	require.Len(t, s.Messages, 3)
	assert.Equal(t, "first", s.Messages[0].Text, "messages sorted by timestamp")
	assert.Equal(t, models.SenderUser, s.Messages[0].Sender)
	assert.Equal(t, models.SenderBot, s.Messages[2].Sender)
	assert.Equal(t, "abc", s.Messages[2].SessionID)
	assert.True(t, s.LastActivity.Equal(time.Date(2024, 11, 2, 10, 0, 9, 0, time.UTC)), "falls back to last message")
}

func TestNormalizeMessageCountFloor(t *testing.T) {
	s := normalizeSession(wireSession{SessionID: "x"})
	assert.Equal(t, 1, s.MessageCount)
	assert.Equal(t, models.TopicGeneral, s.Topic)
}

func TestNormalizeSessionsDropsAnonymous(t *testing.T) {
	got := normalizeSessions([]wireSession{{Title: "no id"}, {SessionID: "ok"}})
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].SessionID)
}
