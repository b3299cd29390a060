package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to REDIS_ADDR; the tests are skipped without one.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	s, err := New(context.Background(), Config{
		Addr:   addr,
		Prefix: "pitchside-test:" + uuid.NewString() + ":",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreKV(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, storage.KeyUsage)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.Put(ctx, storage.KeyUsage, []byte(`{"date":"2024-01-01","count":1}`)))
	got, err := s.Get(ctx, storage.KeyUsage)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-01","count":1}`, string(got))

	require.NoError(t, s.Delete(ctx, storage.KeyUsage))
	_, err = s.Get(ctx, storage.KeyUsage)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestStoreHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.SaveHistory(ctx, []models.Session{
		{SessionID: "a", Title: "Blues in Europe", Topic: models.TopicChelsea},
		{SessionID: "b", Title: "useEffect cleanup", Topic: models.TopicFrontend},
	}))
	require.NoError(t, s.RemoveSession(ctx, "a"))

	got, err := s.LoadHistory(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].SessionID)
	assert.Equal(t, models.TopicFrontend, got[0].Topic)
}
