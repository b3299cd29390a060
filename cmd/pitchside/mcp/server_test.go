package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/neilberkman/pitchside/internal/core/db"
	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	snap        history.Snapshot
	transcripts map[string]*models.Session
}

func (f *fakeHistory) Refresh(ctx context.Context) (history.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeHistory) Transcript(ctx context.Context, id string) (*models.Session, error) {
	s, ok := f.transcripts[id]
	if !ok {
		return nil, history.ErrUnknownSession
	}
	return s, nil
}

type fakeSearcher struct {
	results []db.SearchResult
	err     error
}

func (f fakeSearcher) Search(ctx context.Context, query string, limit int) ([]db.SearchResult, error) {
	return f.results, f.err
}

func newFakeHistory() *fakeHistory {
	now := time.Now()
	sessions := []models.Session{
		{SessionID: "a", Title: "Who scored in Porto?", Topic: models.TopicChelsea, MessageCount: 4, LastActivity: now},
		{SessionID: "b", Title: "useEffect cleanup", Topic: models.TopicFrontend, MessageCount: 2, LastActivity: now.Add(-time.Hour)},
		{SessionID: "c", Title: "Kit colours in CSS", Topic: models.TopicMixed, MessageCount: 6, LastActivity: now.Add(-2 * time.Hour)},
	}
	return &fakeHistory{
		snap: history.Snapshot{Sessions: sessions, Stats: history.Aggregate(sessions)},
		transcripts: map[string]*models.Session{
			"a": {
				SessionID: "a",
				Title:     "Who scored in Porto?",
				Topic:     models.TopicChelsea,
				Messages: []models.Message{
					{ID: "1", Sender: models.SenderUser, Text: "Who scored in Porto?"},
					{ID: "2", Sender: models.SenderBot, Text: "Kai Havertz scored the winner in 2021."},
				},
			},
		},
	}
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestListChats(t *testing.T) {
	h := newFakeHistory()
	handler := makeListChatsHandler(h)

	tests := []struct {
		name string
		args map[string]any
		want []string
	}{
		{"all", map[string]any{}, []string{"a", "b", "c"}},
		{"limit", map[string]any{"limit": 2}, []string{"a", "b"}},
		{"topic filter", map[string]any{"filter": "topic:frontend"}, []string{"b"}},
		{"text filter", map[string]any{"filter": "porto"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := handler(context.Background(), call(tt.args))
			require.NoError(t, err)
			assert.False(t, res.IsError)

			var got []ChatSummary
			require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
			ids := make([]string, len(got))
			for i, c := range got {
				ids[i] = c.SessionID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetChat(t *testing.T) {
	handler := makeGetChatHandler(newFakeHistory())

	res, err := handler(context.Background(), call(map[string]any{"session_id": "a", "search_query": "havertz"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var detail ChatDetail
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &detail))
	assert.Equal(t, "Chelsea FC", detail.Topic)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "bot", detail.Messages[0].Sender)

	res, err = handler(context.Background(), call(map[string]any{"session_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = handler(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestChatStats(t *testing.T) {
	handler := makeChatStatsHandler(newFakeHistory())

	res, err := handler(context.Background(), call(nil))
	require.NoError(t, err)

	var stats StatsResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &stats))
	assert.Equal(t, 3, stats.TotalChats)
	assert.Equal(t, 12, stats.TotalMessages)
	assert.Equal(t, float64(4), stats.AvgMessagesPerChat)
	assert.Len(t, stats.Topics, 3)
	assert.False(t, stats.FromCache)
}

func TestSearchChats(t *testing.T) {
	handler := makeSearchChatsHandler(fakeSearcher{results: []db.SearchResult{
		{SessionID: "a", Title: "Who scored in Porto?", Topic: models.TopicChelsea, Sender: models.SenderBot, Snippet: "[Havertz] scored"},
	}})

	res, err := handler(context.Background(), call(map[string]any{"query": "havertz"}))
	require.NoError(t, err)
	var got []SearchMatch
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Chelsea FC", got[0].Topic)

	res, err = handler(context.Background(), call(map[string]any{"query": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	failing := makeSearchChatsHandler(fakeSearcher{err: errors.New("no such table")})
	res, err = failing(context.Background(), call(map[string]any{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
