package history

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilberkman/pitchside/internal/core/api"
	"github.com/neilberkman/pitchside/internal/core/chat"
	"github.com/neilberkman/pitchside/internal/core/db"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/neilberkman/pitchside/internal/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) ListHistory(ctx context.Context, limit, page int) ([]models.Session, error) {
	args := m.Called(ctx, limit, page)
	s, _ := args.Get(0).([]models.Session)
	return s, args.Error(1)
}

func (m *mockRemote) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func (m *mockRemote) DeleteSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRemote) Stats(ctx context.Context) (*models.Stats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*models.Stats)
	return s, args.Error(1)
}

type resumeRecorder struct {
	got []models.Session
}

func (r *resumeRecorder) Resume(s models.Session) {
	r.got = append(r.got, s)
}

var errDown = errors.New("backend down")

func sampleSessions() []models.Session {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return []models.Session{
		{SessionID: "a", Title: "Who scored?", Topic: models.TopicChelsea, MessageCount: 4, LastActivity: base},
		{SessionID: "b", Title: "CSS grid", Topic: models.TopicFrontend, MessageCount: 2, LastActivity: base.Add(-time.Hour)},
	}
}

func TestRefreshOnline(t *testing.T) {
	remote := new(mockRemote)
	cache := storage.NewMemory()
	remote.On("ListHistory", mock.Anything, 10, 1).Return(sampleSessions(), nil)
	remote.On("Stats", mock.Anything).Return(&models.Stats{TotalChats: 7, MostActiveTopic: "chelsea"}, nil)

	r := New(remote, cache, WithPageSize(10))
	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)

	assert.False(t, snap.Degraded)
	assert.False(t, snap.StatsLocal)
	assert.Len(t, snap.Sessions, 2)
	assert.Equal(t, 7, snap.Stats.TotalChats)
	assert.Equal(t, 6, snap.Stats.TotalMessages, "missing backend fields are filled locally")
	assert.Equal(t, "chelsea", snap.Stats.MostActiveTopic)

	cached, err := cache.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 2, "successful fetch is cached")
}

func TestRefreshFallsBackToCache(t *testing.T) {
	remote := new(mockRemote)
	cache := storage.NewMemory()
	require.NoError(t, cache.SaveHistory(context.Background(), sampleSessions()))
	remote.On("ListHistory", mock.Anything, mock.Anything, mock.Anything).Return(nil, errDown)

	r := New(remote, cache)
	snap, err := r.Refresh(context.Background())
	require.NoError(t, err, "degraded mode is not an error")

	assert.True(t, snap.Degraded)
	assert.True(t, snap.StatsLocal)
	assert.ErrorIs(t, snap.Err, errDown)
	assert.Len(t, snap.Sessions, 2)
	assert.Equal(t, 2, snap.Stats.TotalChats)
	remote.AssertNotCalled(t, "Stats", mock.Anything)
}

func TestRefreshStatsFailureAggregatesLocally(t *testing.T) {
	remote := new(mockRemote)
	remote.On("ListHistory", mock.Anything, mock.Anything, mock.Anything).Return(sampleSessions(), nil)
	remote.On("Stats", mock.Anything).Return(nil, errDown)

	snap, err := New(remote, nil).Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Degraded)
	assert.True(t, snap.StatsLocal)
	assert.Equal(t, 2, snap.Stats.TotalChats)
	assert.Equal(t, 6, snap.Stats.TotalMessages)
	assert.Equal(t, float64(3), snap.Stats.AvgMessagesPerChat)
}

func TestRefreshWithoutCache(t *testing.T) {
	remote := new(mockRemote)
	remote.On("ListHistory", mock.Anything, mock.Anything, mock.Anything).Return(nil, errDown)

	snap, err := New(remote, nil).Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Degraded)
	assert.Empty(t, snap.Sessions)
}

func TestDeleteSessionFailureIsReported(t *testing.T) {
	remote := new(mockRemote)
	remote.On("ListHistory", mock.Anything, mock.Anything, mock.Anything).Return(sampleSessions(), nil).Once()
	remote.On("Stats", mock.Anything).Return(nil, errDown)
	remote.On("DeleteSession", mock.Anything, "a").Return(errDown)

	r := New(remote, storage.NewMemory())
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	snap, err := r.DeleteSession(context.Background(), "a")
	assert.ErrorIs(t, err, errDown)
	assert.Len(t, snap.Sessions, 2, "list unchanged after a failed delete")
	remote.AssertNumberOfCalls(t, "ListHistory", 1)
}

func TestDeleteSessionRefreshes(t *testing.T) {
	remote := new(mockRemote)
	cache := storage.NewMemory()
	all := sampleSessions()
	remote.On("ListHistory", mock.Anything, mock.Anything, mock.Anything).Return(all, nil).Once()
	remote.On("ListHistory", mock.Anything, mock.Anything, mock.Anything).Return(all[1:], nil).Once()
	remote.On("Stats", mock.Anything).Return(&models.Stats{}, nil)
	remote.On("DeleteSession", mock.Anything, "a").Return(nil)

	r := New(remote, cache)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	snap, err := r.DeleteSession(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "b", snap.Sessions[0].SessionID)
	remote.AssertExpectations(t)
}

func TestContinueSession(t *testing.T) {
	remote := new(mockRemote)
	full := &models.Session{
		SessionID: "a",
		Messages: []models.Message{
			{ID: "1", Sender: models.SenderUser, Text: "hi"},
			{ID: "2", Sender: models.SenderBot, Text: "hello"},
		},
	}
	remote.On("GetSession", mock.Anything, "a").Return(full, nil).Once()
	remote.On("GetSession", mock.Anything, "a").Return(nil, errDown)
	remote.On("GetSession", mock.Anything, "zzz").Return(nil, errDown)

	dbPath := filepath.Join(t.TempDir(), "cache.db")
	cache, err := db.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	r := New(remote, cache, WithTranscriptCache(cache))
	into := &resumeRecorder{}

	s, err := r.ContinueSession(context.Background(), "a", into)
	require.NoError(t, err)
	assert.Len(t, s.Messages, 2)
	require.Len(t, into.got, 1)

	// offline: served from the transcript cache
	s, err = r.ContinueSession(context.Background(), "a", into)
	require.NoError(t, err)
	assert.Equal(t, "hello", s.Messages[1].Text)
	assert.Len(t, into.got, 2)

	_, err = r.ContinueSession(context.Background(), "zzz", into)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, err, errDown)
	assert.Len(t, into.got, 2)
}

func TestInsertPutsNewSessionFirst(t *testing.T) {
	remote := new(mockRemote)
	cache := storage.NewMemory()
	remote.On("ListHistory", mock.Anything, mock.Anything, mock.Anything).Return(sampleSessions(), nil)
	remote.On("Stats", mock.Anything).Return(&models.Stats{TotalChats: 2, TotalMessages: 6, AvgMessagesPerChat: 3, MostActiveTopic: "chelsea"}, nil)

	r := New(remote, cache)
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	r.Insert(context.Background(), models.Session{SessionID: "new", Title: "Fresh", MessageCount: 2, Topic: models.TopicGeneral})

	snap := r.Snapshot()
	require.Len(t, snap.Sessions, 3)
	assert.Equal(t, "new", snap.Sessions[0].SessionID)
	assert.Equal(t, 3, snap.Stats.TotalChats)
	assert.Equal(t, 8, snap.Stats.TotalMessages)
	assert.Equal(t, "new", snap.Stats.RecentActivity[0].SessionID)

	// inserting again does not duplicate
	r.Insert(context.Background(), models.Session{SessionID: "new", Title: "Fresh", MessageCount: 4})
	assert.Len(t, r.Snapshot().Sessions, 3)

	cached, err := cache.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", cached[0].SessionID)
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestNewChatShowsUpWithoutRefetch(t *testing.T) {
	srv := mockapi.New()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	token, err := srv.IssueToken()
	require.NoError(t, err)

	client := api.New(ts.URL, api.WithTokenSource(staticToken(token)))
	r := New(client, storage.NewMemory())
	ctx := context.Background()

	snap, err := r.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)

	ctrl, err := chat.NewController(chat.Config{
		Mode:        chat.ModeAuthenticated,
		Sender:      api.UserChat{Client: client},
		TypingSpeed: time.Microsecond,
		Hooks: chat.Hooks{
			OnSessionCreated: func(e chat.SessionCreated) { r.Insert(ctx, e.Session()) },
		},
	})
	require.NoError(t, err)

	_, err = ctrl.Send(ctx, "Who is Chelsea's top scorer?")
	require.NoError(t, err)

	snap = r.Snapshot()
	require.Len(t, snap.Sessions, 1)
	id := snap.Sessions[0].SessionID
	assert.Equal(t, ctrl.Transcript().SessionID(), id)

	// the backend agrees
	snap, err = r.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, id, snap.Sessions[0].SessionID)
	assert.Equal(t, models.TopicChelsea, snap.Sessions[0].Topic)

	// continue the conversation in a fresh controller
	resumed, err := chat.NewController(chat.Config{
		Mode:        chat.ModeAuthenticated,
		Sender:      api.UserChat{Client: client},
		TypingSpeed: time.Microsecond,
	})
	require.NoError(t, err)
	_, err = r.ContinueSession(ctx, id, resumed)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Transcript().Len())
	assert.True(t, resumed.Transcript().Hydrated())

	snap, err = r.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)
	assert.Zero(t, srv.SessionCount())
}
