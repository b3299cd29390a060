package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/pitchside/internal/core/db"
	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/neilberkman/pitchside/internal/core/models"
)

// ListChatsArgs defines arguments for the list_chats tool
type ListChatsArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Max chats to return (default: 20)"`
	Filter string `json:"filter,omitempty" jsonschema:"description=Filter query, e.g. topic:chelsea after:last-week"`
}

// GetChatArgs defines arguments for the get_chat tool
type GetChatArgs struct {
	SessionID   string `json:"session_id" jsonschema:"description=Session ID to retrieve,required"`
	SearchQuery string `json:"search_query,omitempty" jsonschema:"description=Only return messages containing this text"`
}

// SearchChatsArgs defines arguments for the search_chats tool
type SearchChatsArgs struct {
	Query string `json:"query" jsonschema:"description=Search term to match against cached messages,required"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max matches to return (default: 10)"`
}

// ChatSummary represents a chat in the list view
type ChatSummary struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	Preview      string `json:"preview,omitempty"`
	Topic        string `json:"topic"`
	MessageCount int    `json:"message_count"`
	LastActivity string `json:"last_activity"`
}

// ChatDetail is one chat with its messages
type ChatDetail struct {
	ChatSummary
	Messages []MessageDetail `json:"messages"`
}

// MessageDetail represents a single message in a chat
type MessageDetail struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	OffTopic  bool   `json:"off_topic,omitempty"`
}

// SearchMatch is one full-text hit in the local cache
type SearchMatch struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Topic     string `json:"topic"`
	Sender    string `json:"sender"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
}

// TopicShare is one slice of the topic distribution
type TopicShare struct {
	Topic string  `json:"topic"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// StatsResult is the chat_stats payload
type StatsResult struct {
	TotalChats         int          `json:"total_chats"`
	TotalMessages      int          `json:"total_messages"`
	AvgMessagesPerChat float64      `json:"avg_messages_per_chat"`
	MostActiveTopic    string       `json:"most_active_topic"`
	Topics             []TopicShare `json:"topics"`
	FromCache          bool         `json:"from_cache,omitempty"`
}

// History is the part of the reconciler the tools need
type History interface {
	Refresh(ctx context.Context) (history.Snapshot, error)
	Transcript(ctx context.Context, sessionID string) (*models.Session, error)
}

// Searcher runs full-text queries over cached transcripts
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]db.SearchResult, error)
}

// NewServer registers the chat history tools. search_chats is only
// offered when searcher is non-nil.
func NewServer(h History, searcher Searcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Pitchside",
		version,
	)

	listTool := mcp.NewTool("list_chats",
		mcp.WithDescription("List saved Chelsea FC & Frontend assistant conversations, most recent first"),
		mcp.WithNumber("limit",
			mcp.Description("Max chats to return (default: 20)")),
		mcp.WithString("filter",
			mcp.Description("Filter query: topic:chelsea|frontend|mixed|general, after:<date>, before:<date>, date:<date>, plus free text")),
	)
	s.AddTool(listTool, makeListChatsHandler(h))

	getTool := mcp.NewTool("get_chat",
		mcp.WithDescription("Retrieve the messages of one saved conversation"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID to retrieve")),
		mcp.WithString("search_query",
			mcp.Description("Optional text; only messages containing it are returned")),
	)
	s.AddTool(getTool, makeGetChatHandler(h))

	statsTool := mcp.NewTool("chat_stats",
		mcp.WithDescription("Usage analytics: totals, average length and topic distribution"),
	)
	s.AddTool(statsTool, makeChatStatsHandler(h))

	if searcher != nil {
		searchTool := mcp.NewTool("search_chats",
			mcp.WithDescription("Full-text search over conversations cached on this machine"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search term to match against message content")),
			mcp.WithNumber("limit",
				mcp.Description("Max matches to return (default: 10)")),
		)
		s.AddTool(searchTool, makeSearchChatsHandler(searcher))
	}

	return s
}

// StartServer serves the tools over stdio until stdin closes
func StartServer(h History, cache *db.DB, version string) error {
	var searcher Searcher
	if cache != nil {
		searcher = cache
	}
	return server.ServeStdio(NewServer(h, searcher, version))
}

func decodeArgs(request mcp.CallToolRequest, dst any) error {
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	return json.Unmarshal(argsBytes, dst)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func summarize(s models.Session) ChatSummary {
	return ChatSummary{
		SessionID:    s.SessionID,
		Title:        s.DisplayTitle(),
		Preview:      s.Preview,
		Topic:        s.Topic.Label(),
		MessageCount: s.MessageCount,
		LastActivity: formatTime(s.LastActivity),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func makeListChatsHandler(h History) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListChatsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = 20
		}

		snap, err := h.Refresh(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
		}

		sessions := history.ParseFilter(args.Filter).Apply(snap.Sessions)
		if len(sessions) > limit {
			sessions = sessions[:limit]
		}

		results := make([]ChatSummary, len(sessions))
		for i, s := range sessions {
			results[i] = summarize(s)
		}
		return jsonResult(results)
	}
}

func makeGetChatHandler(h History) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetChatArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.SessionID == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}

		session, err := h.Transcript(ctx, args.SessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get chat: %v", err)), nil
		}

		needle := strings.ToLower(strings.TrimSpace(args.SearchQuery))
		detail := ChatDetail{ChatSummary: summarize(*session), Messages: []MessageDetail{}}
		for _, m := range session.Messages {
			if needle != "" && !strings.Contains(strings.ToLower(m.Text), needle) {
				continue
			}
			detail.Messages = append(detail.Messages, MessageDetail{
				Sender:    string(m.Sender),
				Content:   m.Text,
				Timestamp: formatTime(m.Timestamp),
				OffTopic:  m.OffTopic,
			})
		}
		return jsonResult(detail)
	}
}

func makeChatStatsHandler(h History) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := h.Refresh(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
		}
		var topics []TopicShare
		for _, tc := range history.TopicDistribution(snap.Sessions) {
			topics = append(topics, TopicShare{Topic: tc.Topic.Label(), Count: tc.Count, Share: tc.Share})
		}
		return jsonResult(StatsResult{
			TotalChats:         snap.Stats.TotalChats,
			TotalMessages:      snap.Stats.TotalMessages,
			AvgMessagesPerChat: snap.Stats.AvgMessagesPerChat,
			MostActiveTopic:    snap.Stats.MostActiveTopic,
			Topics:             topics,
			FromCache:          snap.Degraded,
		})
	}
}

func makeSearchChatsHandler(searcher Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchChatsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if strings.TrimSpace(args.Query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}

		hits, err := searcher.Search(ctx, args.Query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		results := make([]SearchMatch, len(hits))
		for i, r := range hits {
			results[i] = SearchMatch{
				SessionID: r.SessionID,
				Title:     r.Title,
				Topic:     r.Topic.Label(),
				Sender:    string(r.Sender),
				Snippet:   r.Snippet,
				Timestamp: formatTime(r.Timestamp),
			}
		}
		return jsonResult(results)
	}
}
