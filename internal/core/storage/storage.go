// Package storage defines the local persistence used by the client: a small
// key-value store for the token, profile and usage record, and a fallback
// copy of the chat history list.
package storage

import (
	"context"
	"errors"

	"github.com/neilberkman/pitchside/internal/core/models"
)

// Well-known keys
const (
	KeyToken = "token"
	KeyUser  = "user"
	KeyUsage = "messageData"
)

// ErrNotFound is returned by KV.Get when the key is absent
var ErrNotFound = errors.New("key not found")

// KV is a string-keyed byte store
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// HistoryCache keeps the last successfully fetched history list so the
// dashboard can render something when the backend is unreachable.
type HistoryCache interface {
	SaveHistory(ctx context.Context, sessions []models.Session) error
	LoadHistory(ctx context.Context) ([]models.Session, error)
	RemoveSession(ctx context.Context, sessionID string) error
}

// Store is everything the client persists locally
type Store interface {
	KV
	HistoryCache
	Close() error
}
