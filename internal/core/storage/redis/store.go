// Package redis provides a Redis-backed storage.Store so several terminals
// can share one usage record and history cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "pitchside:"
	historyKey    = "chatHistory"
)

// Config holds connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store wraps a Redis client
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(rdb, cfg.Prefix), nil
}

// NewWithClient wraps an existing client
func NewWithClient(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// SaveHistory stores the list as one JSON document
func (s *Store) SaveHistory(ctx context.Context, sessions []models.Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return s.Put(ctx, historyKey, data)
}

func (s *Store) LoadHistory(ctx context.Context) ([]models.Session, error) {
	data, err := s.Get(ctx, historyKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sessions []models.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return sessions, nil
}

// RemoveSession rewrites the cached list without the given session. The
// read-modify-write is not atomic; concurrent writers may lose an update.
func (s *Store) RemoveSession(ctx context.Context, sessionID string) error {
	sessions, err := s.LoadHistory(ctx)
	if err != nil {
		return err
	}

	kept := make([]models.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.SessionID != sessionID {
			kept = append(kept, sess)
		}
	}
	return s.SaveHistory(ctx, kept)
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.rdb.Close()
}

var _ storage.Store = (*Store)(nil)
