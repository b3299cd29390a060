package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/neilberkman/pitchside/internal/core/models"
)

// Credentials is the login request body
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Registration is the sign-up request body
type Registration struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResult carries the issued token and profile
type LoginResult struct {
	Token string
	User  models.User
}

// wireUser accepts both id and _id
type wireUser struct {
	ID        string `json:"id"`
	MongoID   string `json:"_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (w wireUser) user() models.User {
	id := w.ID
	if id == "" {
		id = w.MongoID
	}
	return models.User{ID: id, Username: w.Username, Email: w.Email, FirstName: w.FirstName, LastName: w.LastName}
}

type loginResponse struct {
	envelope
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

func (c *Client) authEndpoint(path string) string {
	return c.authURL + path
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		url:    c.authEndpoint("/api/auth/login"),
		body:   creds,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return nil, &Error{Op: "login", Message: "no token in response", Err: ErrUnsuccessful}
	}

	var u wireUser
	if len(resp.User) > 0 {
		_ = json.Unmarshal(resp.User, &u)
	}
	return &LoginResult{Token: resp.Token, User: u.user()}, nil
}

// Register creates an account; the caller logs in afterwards
func (c *Client) Register(ctx context.Context, reg Registration) error {
	var resp envelope
	return c.do(ctx, request{
		op:     "register",
		method: http.MethodPost,
		url:    c.authEndpoint("/api/auth/register"),
		body:   reg,
	}, &resp)
}

type verifyResponse struct {
	envelope
	User wireUser `json:"user"`
}

// Verify checks the stored token with the backend
func (c *Client) Verify(ctx context.Context) (*models.User, error) {
	var resp verifyResponse
	err := c.do(ctx, request{
		op:     "verify",
		method: http.MethodGet,
		url:    c.authEndpoint("/api/auth/verify"),
		authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	u := resp.User.user()
	return &u, nil
}
