package storage

import (
	"context"
	"sync"

	"github.com/neilberkman/pitchside/internal/core/models"
)

// Memory is a process-local Store
type Memory struct {
	mu      sync.RWMutex
	values  map[string][]byte
	history []models.Session
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

func (m *Memory) SaveHistory(_ context.Context, sessions []models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append([]models.Session(nil), sessions...)
	return nil
}

func (m *Memory) LoadHistory(_ context.Context) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.Session(nil), m.history...), nil
}

func (m *Memory) RemoveSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.history[:0]
	for _, s := range m.history {
		if s.SessionID != sessionID {
			kept = append(kept, s)
		}
	}
	m.history = kept
	return nil
}

func (m *Memory) Close() error {
	return nil
}
