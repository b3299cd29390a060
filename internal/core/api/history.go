package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/neilberkman/pitchside/internal/core/models"
)

type historyResponse struct {
	envelope
	Chats []wireSession `json:"chats"`
}

// ListHistory returns one page of the user's conversations
func (c *Client) ListHistory(ctx context.Context, limit, page int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))

	var resp historyResponse
	err := c.do(ctx, request{
		op:     "list history",
		method: http.MethodGet,
		url:    c.url("/api/users/chat/history?" + q.Encode()),
		authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return normalizeSessions(resp.Chats), nil
}

type sessionResponse struct {
	envelope
	Chat *wireSession `json:"chat"`
}

// GetSession fetches one conversation with its messages
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, request{
		op:     "get session",
		method: http.MethodGet,
		url:    c.url("/api/users/chat/history/" + url.PathEscape(sessionID)),
		authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Chat == nil {
		return nil, &Error{Op: "get session", Err: fmt.Errorf("session %s missing from response", sessionID)}
	}

	s := normalizeSession(*resp.Chat)
	if s.SessionID == "" {
		s.SessionID = sessionID
		for i := range s.Messages {
			s.Messages[i].SessionID = sessionID
		}
	}
	return &s, nil
}

// DeleteSession removes a conversation on the server
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	var resp envelope
	return c.do(ctx, request{
		op:     "delete session",
		method: http.MethodDelete,
		url:    c.url("/api/users/chat/history/" + url.PathEscape(sessionID)),
		authed: true,
	}, &resp)
}

type statsResponse struct {
	envelope
	Stats struct {
		TotalChats         int     `json:"totalChats"`
		TotalMessages      int     `json:"totalMessages"`
		AvgMessagesPerChat float64 `json:"avgMessagesPerChat"`
		MostActiveTopic    string  `json:"mostActiveTopic"`
	} `json:"stats"`
	RecentActivity []wireSession `json:"recentActivity"`
}

// Stats returns the server-side usage summary
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var resp statsResponse
	err := c.do(ctx, request{
		op:     "chat stats",
		method: http.MethodGet,
		url:    c.url("/api/users/chat/stats"),
		authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &models.Stats{
		TotalChats:         resp.Stats.TotalChats,
		TotalMessages:      resp.Stats.TotalMessages,
		AvgMessagesPerChat: resp.Stats.AvgMessagesPerChat,
		MostActiveTopic:    resp.Stats.MostActiveTopic,
		RecentActivity:     normalizeSessions(resp.RecentActivity),
	}, nil
}
