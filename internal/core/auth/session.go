// Package auth persists the bearer token and profile between runs.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/neilberkman/pitchside/internal/core/api"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/rs/zerolog"
)

var (
	// ErrNotAuthenticated means no token is stored
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrTokenExpired means the stored token's exp claim has passed
	ErrTokenExpired = errors.New("session expired, please log in again")
)

// Authenticator is the subset of the API client used for logging in
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (*api.LoginResult, error)
	Register(ctx context.Context, reg api.Registration) error
}

// Session reads and writes the token and profile through a KV store
type Session struct {
	store    storage.KV
	validate *validator.Validate
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSession creates a Session over store
func NewSession(store storage.KV, logger zerolog.Logger) *Session {
	return &Session{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger,
	}
}

// Token returns the stored bearer token. It satisfies api.TokenSource.
func (s *Session) Token(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && len(raw) == 0) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := string(raw)
	if exp, ok := Expiry(token); ok && !exp.After(s.now()) {
		return "", ErrTokenExpired
	}
	return token, nil
}

// IsAuthenticated reports whether a usable token is stored
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, err := s.Token(ctx)
	return err == nil
}

// Profile returns the stored user profile
func (s *Session) Profile(ctx context.Context) (*models.User, error) {
	raw, err := s.store.Get(ctx, storage.KeyUser)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &u, nil
}

// Save stores a token and profile
func (s *Session) Save(ctx context.Context, token string, user models.User) error {
	if err := s.store.Put(ctx, storage.KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.store.Put(ctx, storage.KeyUser, data); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}

// Login validates creds, exchanges them for a token and stores the result
func (s *Session) Login(ctx context.Context, a Authenticator, creds api.Credentials) (*models.User, error) {
	if err := s.validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	res, err := a.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	if err := s.Save(ctx, res.Token, res.User); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user", res.User.ID).Msg("logged in")
	return &res.User, nil
}

// Register validates reg and creates the account
func (s *Session) Register(ctx context.Context, a Authenticator, reg api.Registration) error {
	if err := s.validate.Struct(reg); err != nil {
		return fmt.Errorf("invalid registration: %w", err)
	}
	if err := a.Register(ctx, reg); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	return nil
}

// Logout forgets the token and profile
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, storage.KeyToken); err != nil {
		return err
	}
	return s.store.Delete(ctx, storage.KeyUser)
}

// Expiry reads the exp claim without verifying the signature. The second
// result is false for opaque tokens or tokens without exp.
func Expiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
