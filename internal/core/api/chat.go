package api

import (
	"context"
	"net/http"
	"strings"
)

// Reply is one assistant answer
type Reply struct {
	Text      string
	SessionID string
	OffTopic  bool
}

type freeMessageRequest struct {
	Message string `json:"message"`
}

type freeMessageResponse struct {
	envelope
	Response   string `json:"response"`
	IsOffTopic bool   `json:"isOffTopic"`
}

// SendFree posts one unauthenticated chat turn
func (c *Client) SendFree(ctx context.Context, message string) (*Reply, error) {
	var resp freeMessageResponse
	err := c.do(ctx, request{
		op:     "free message",
		method: http.MethodPost,
		url:    c.url("/api/free/message"),
		body:   freeMessageRequest{Message: message},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, &Error{Op: "free message", Err: ErrEmptyReply}
	}
	return &Reply{Text: resp.Response, OffTopic: resp.IsOffTopic}, nil
}

type chatMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatMessageResponse struct {
	envelope
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// SendMessage posts one authenticated chat turn within sessionID
func (c *Client) SendMessage(ctx context.Context, message, sessionID string) (*Reply, error) {
	var resp chatMessageResponse
	err := c.do(ctx, request{
		op:     "chat message",
		method: http.MethodPost,
		url:    c.url("/api/users/chat/message"),
		authed: true,
		body:   chatMessageRequest{Message: message, SessionID: sessionID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, &Error{Op: "chat message", Err: ErrEmptyReply}
	}

	sid := resp.SessionID
	if sid == "" {
		sid = sessionID
	}
	return &Reply{Text: resp.Response, SessionID: sid}, nil
}

// FreeChat sends turns through the unauthenticated endpoint
type FreeChat struct {
	Client *Client
}

// Send ignores sessionID; the free endpoint is stateless
func (f FreeChat) Send(ctx context.Context, message, _ string) (*Reply, error) {
	return f.Client.SendFree(ctx, message)
}

// UserChat sends turns through the authenticated endpoint
type UserChat struct {
	Client *Client
}

func (u UserChat) Send(ctx context.Context, message, sessionID string) (*Reply, error) {
	return u.Client.SendMessage(ctx, message, sessionID)
}
