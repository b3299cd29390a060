package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neilberkman/pitchside/internal/core/api"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/quota"
	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, message, sessionID string) (*api.Reply, error) {
	args := m.Called(ctx, message, sessionID)
	r, _ := args.Get(0).(*api.Reply)
	return r, args.Error(1)
}

type senderFunc func(ctx context.Context, message, sessionID string) (*api.Reply, error)

func (f senderFunc) Send(ctx context.Context, message, sessionID string) (*api.Reply, error) {
	return f(ctx, message, sessionID)
}

// recorder captures hook events in order
type recorder struct {
	mu      sync.Mutex
	events  []string
	typing  []string
	created []SessionCreated
	usage   []quota.Record
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnState: func(s State) { r.add("state:" + s.String()) },
		OnMessage: func(m models.Message) {
			kind := string(m.Sender)
			if m.IsError {
				kind = "error"
			}
			r.add("message:" + kind)
		},
		OnTyping: func(p string) {
			r.mu.Lock()
			r.typing = append(r.typing, p)
			r.mu.Unlock()
		},
		OnQuota: func(rec quota.Record) {
			r.mu.Lock()
			r.usage = append(r.usage, rec)
			r.mu.Unlock()
			r.add("quota")
		},
		OnQuotaExceeded: func(quota.Record) { r.add("quota-exceeded") },
		OnSessionCreated: func(e SessionCreated) {
			r.mu.Lock()
			r.created = append(r.created, e)
			r.mu.Unlock()
			r.add("created")
		},
		OnTurnComplete: func(Result) { r.add("complete") },
	}
}

func (r *recorder) typingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.typing)
}

func newCounter(t *testing.T, count int) (*quota.Counter, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	c := quota.NewCounter(store, quota.DefaultDailyLimit)
	if count > 0 {
		rec, err := c.Load(context.Background())
		require.NoError(t, err)
		rec.Count = count - 1
		_, err = c.RecordSend(context.Background(), rec)
		require.NoError(t, err)
	}
	return c, store
}

func newFreeController(t *testing.T, sender Sender, count int, rec *recorder) (*Controller, *quota.Counter) {
	t.Helper()
	counter, _ := newCounter(t, count)
	ctrl, err := NewController(Config{
		Mode:        ModeFree,
		Sender:      sender,
		Quota:       counter,
		TypingSpeed: time.Millisecond,
		Hooks:       rec.hooks(),
	})
	require.NoError(t, err)
	return ctrl, counter
}

func TestNewControllerValidation(t *testing.T) {
	_, err := NewController(Config{})
	assert.Error(t, err)

	_, err = NewController(Config{Mode: ModeFree, Sender: new(mockSender)})
	assert.Error(t, err, "free mode without quota")

	c, err := NewController(Config{Mode: ModeAuthenticated, Sender: new(mockSender)})
	require.NoError(t, err)
	assert.Equal(t, UserApology, c.cfg.Apology)
	assert.Equal(t, 0, c.Limit())
}

func TestSendEmptyInput(t *testing.T) {
	sender := new(mockSender)
	rec := &recorder{}
	ctrl, _ := newFreeController(t, sender, 0, rec)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := ctrl.Send(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Zero(t, ctrl.Transcript().Len())
	assert.Empty(t, rec.events)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendFreeHappyPath(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, "Who is Chelsea's captain?", "").
		Return(&api.Reply{Text: "Reece James."}, nil).Once()

	rec := &recorder{}
	ctrl, counter := newFreeController(t, sender, 0, rec)

	res, err := ctrl.Send(context.Background(), "Who is Chelsea's captain?")
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Nil(t, res.Created, "free replies carry no session id")
	require.NotNil(t, res.Usage)
	assert.Equal(t, 1, res.Usage.Count)

	assert.Equal(t, []string{
		"state:sending",
		"message:user",
		"quota",
		"state:typing",
		"message:bot",
		"complete",
		"state:idle",
	}, rec.events)

	assert.Len(t, rec.typing, len("Reece James."))
	assert.Equal(t, "Reece James.", rec.typing[len(rec.typing)-1])

	msgs := ctrl.Transcript().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.Equal(t, "Reece James.", msgs[1].Text)
	assert.False(t, msgs[1].Timestamp.Before(msgs[0].Timestamp))
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	stored, err := counter.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Count)
	assert.Equal(t, StateIdle, ctrl.State())
	sender.AssertExpectations(t)
}

func TestSendFailureAppendsOneErrorAndDoesNotCharge(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()

	rec := &recorder{}
	ctrl, counter := newFreeController(t, sender, 1, rec)

	res, err := ctrl.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.EqualError(t, res.Err, "connection refused")

	msgs := ctrl.Transcript().Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsError)
	assert.Equal(t, models.SenderBot, msgs[1].Sender)
	assert.Equal(t, FreeApology, msgs[1].Text)

	assert.Empty(t, rec.typing, "no playback for failed turns")
	assert.NotContains(t, rec.events, "quota")

	stored, err := counter.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Count, "quota is charged on success only")
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestQuotaGateAfterThirdMessage(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&api.Reply{Text: "ok"}, nil).Once()

	rec := &recorder{}
	ctrl, counter := newFreeController(t, sender, 2, rec)

	res, err := ctrl.Send(context.Background(), "third message")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Usage.Count)

	before := ctrl.Transcript().Len()
	res, err = ctrl.Send(context.Background(), "fourth message")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 3, res.Usage.Count)
	assert.Equal(t, before, ctrl.Transcript().Len(), "gated send leaves transcript untouched")
	assert.Contains(t, rec.events, "quota-exceeded")

	sender.AssertNumberOfCalls(t, "Send", 1)

	stored, err := counter.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Count)
}

func TestAuthenticatedNewSessionEmitsCreatedOnce(t *testing.T) {
	now := time.UnixMilli(1730541600000)
	var calls []string
	sender := senderFunc(func(_ context.Context, msg, sid string) (*api.Reply, error) {
		calls = append(calls, sid)
		return &api.Reply{Text: "Reply to " + msg, SessionID: "srv-42"}, nil
	})

	rec := &recorder{}
	ctrl, err := NewController(Config{
		Mode:        ModeAuthenticated,
		Sender:      sender,
		TypingSpeed: time.Millisecond,
		Hooks:       rec.hooks(),
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)

	long := "How do I structure a large React application with many feature teams?"
	res, err := ctrl.Send(context.Background(), long)
	require.NoError(t, err)
	require.NotNil(t, res.Created)

	_, err = ctrl.Send(context.Background(), "and testing?")
	require.NoError(t, err)

	assert.Equal(t, []string{"session_1730541600000", "srv-42"}, calls)
	require.Len(t, rec.created, 1)

	ev := rec.created[0]
	assert.Equal(t, "srv-42", ev.SessionID)
	assert.Equal(t, Truncate(long, 30), ev.Title)
	assert.True(t, strings.HasSuffix(ev.Title, "..."))
	assert.Equal(t, long, ev.Messages[0].Text)
	assert.Equal(t, "Reply to "+long, ev.Messages[1].Text)
	assert.Equal(t, 2, ev.Session().MessageCount)

	for _, m := range ctrl.Transcript().Messages() {
		assert.Equal(t, "srv-42", m.SessionID)
	}
	assert.NotContains(t, rec.events, "quota")
}

func TestResumedSessionDoesNotEmitCreated(t *testing.T) {
	var gotSID string
	sender := senderFunc(func(_ context.Context, _, sid string) (*api.Reply, error) {
		gotSID = sid
		return &api.Reply{Text: "welcome back", SessionID: sid}, nil
	})

	rec := &recorder{}
	ctrl, err := NewController(Config{Mode: ModeAuthenticated, Sender: sender, TypingSpeed: time.Millisecond, Hooks: rec.hooks()})
	require.NoError(t, err)

	ctrl.Resume(models.Session{
		SessionID: "old-1",
		Messages: []models.Message{
			{ID: "a", Sender: models.SenderUser, Text: "hi", Timestamp: time.Now().Add(-time.Hour)},
			{ID: "b", Sender: models.SenderBot, Text: "hello", Timestamp: time.Now().Add(-time.Hour + time.Second)},
		},
	})

	_, err = ctrl.Send(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, "old-1", gotSID)
	assert.Empty(t, rec.created)
	assert.Equal(t, 4, ctrl.Transcript().Len())
}

func TestSendWhileBusy(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	sender := senderFunc(func(ctx context.Context, _, _ string) (*api.Reply, error) {
		close(entered)
		<-release
		return &api.Reply{Text: "done"}, nil
	})

	ctrl, _ := newFreeController(t, sender, 0, &recorder{})

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), "first")
		errCh <- err
	}()

	<-entered
	assert.Equal(t, StateSending, ctrl.State())
	_, err := ctrl.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, 2, ctrl.Transcript().Len())
}

func TestCancelDuringPlayback(t *testing.T) {
	reply := strings.Repeat("blue ", 200)
	sender := senderFunc(func(context.Context, string, string) (*api.Reply, error) {
		return &api.Reply{Text: reply}, nil
	})

	rec := &recorder{}
	ctrl, _ := newFreeController(t, sender, 0, rec)

	resCh := make(chan Result, 1)
	go func() {
		res, _ := ctrl.Send(context.Background(), "tell me a long story")
		resCh <- res
	}()

	require.Eventually(t, func() bool { return rec.typingCount() > 0 }, time.Second, time.Millisecond)
	ctrl.Cancel()
	frozen := rec.typingCount()

	res := <-resCh
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, frozen, rec.typingCount(), "no typing after Cancel returns")
	assert.Less(t, frozen, len(reply))
	assert.True(t, res.Canceled)
	assert.NotContains(t, rec.events, "complete")

	msgs := ctrl.Transcript().Messages()
	require.Len(t, msgs, 2, "reply is still recorded")
	assert.Equal(t, reply, msgs[1].Text)
	assert.Equal(t, StateIdle, ctrl.State())
}

func TestNewChatDuringRequest(t *testing.T) {
	entered := make(chan struct{})
	sender := senderFunc(func(ctx context.Context, _, _ string) (*api.Reply, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	rec := &recorder{}
	ctrl, counter := newFreeController(t, sender, 0, rec)

	resCh := make(chan Result, 1)
	go func() {
		res, _ := ctrl.Send(context.Background(), "will be abandoned")
		resCh <- res
	}()

	<-entered
	ctrl.NewChat()
	res := <-resCh

	assert.True(t, res.Canceled)
	assert.False(t, res.Failed)
	assert.Zero(t, ctrl.Transcript().Len(), "new chat is empty, no apology leaked into it")

	stored, err := counter.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stored.Count)
}

func TestRequestTimeoutBecomesFailure(t *testing.T) {
	sender := senderFunc(func(ctx context.Context, _, _ string) (*api.Reply, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("chat message: %w", ctx.Err())
	})

	counter, _ := newCounter(t, 0)
	ctrl, err := NewController(Config{
		Mode:           ModeFree,
		Sender:         sender,
		Quota:          counter,
		RequestTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	res, err := ctrl.Send(context.Background(), "slow")
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.True(t, res.Reply.IsError)
}

func TestFailureDoesNotConsumeSuccessfulCount(t *testing.T) {
	var n atomic.Int32
	sender := senderFunc(func(context.Context, string, string) (*api.Reply, error) {
		if n.Add(1)%2 == 0 {
			return nil, errors.New("flaky")
		}
		return &api.Reply{Text: "ok"}, nil
	})

	ctrl, counter := newFreeController(t, sender, 0, &recorder{})
	for i := 0; i < 4; i++ {
		_, err := ctrl.Send(context.Background(), fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	stored, err := counter.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Count)
}

func TestCreatedSessionUsesTheTurnThatSucceeded(t *testing.T) {
	var n atomic.Int32
	sender := senderFunc(func(_ context.Context, msg, _ string) (*api.Reply, error) {
		if n.Add(1) == 1 {
			return nil, errors.New("connection reset")
		}
		return &api.Reply{Text: "Cole Palmer.", SessionID: "srv-7"}, nil
	})

	rec := &recorder{}
	ctrl, err := NewController(Config{
		Mode:        ModeAuthenticated,
		Sender:      sender,
		TypingSpeed: time.Millisecond,
		Hooks:       rec.hooks(),
	})
	require.NoError(t, err)

	res, err := ctrl.Send(context.Background(), "first try that failed")
	require.NoError(t, err)
	require.True(t, res.Failed)

	res, err = ctrl.Send(context.Background(), "Who scored the winner?")
	require.NoError(t, err)
	require.NotNil(t, res.Created)

	require.Len(t, rec.created, 1)
	ev := rec.created[0]
	assert.Equal(t, "Who scored the winner?", ev.Title)
	assert.Equal(t, "Who scored the winner?", ev.Messages[0].Text)
	assert.Equal(t, "srv-7", ev.Messages[0].SessionID)
	assert.Equal(t, "Cole Palmer.", ev.Messages[1].Text)
	assert.Equal(t, "Who scored the winner?", ctrl.Transcript().Title())
}

// failingKV accepts writes until it is told to fail
type failingKV struct {
	*storage.Memory
	fail atomic.Bool
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	if f.fail.Load() {
		return errors.New("read-only file system")
	}
	return f.Memory.Put(ctx, key, value)
}

func TestQuotaGateHoldsWhenUsageCannotBeSaved(t *testing.T) {
	var calls atomic.Int32
	sender := senderFunc(func(context.Context, string, string) (*api.Reply, error) {
		calls.Add(1)
		return &api.Reply{Text: "ok"}, nil
	})

	store := &failingKV{Memory: storage.NewMemory()}
	counter := quota.NewCounter(store, quota.DefaultDailyLimit)
	_, err := counter.Load(context.Background())
	require.NoError(t, err)
	store.fail.Store(true)

	ctrl, err := NewController(Config{
		Mode:        ModeFree,
		Sender:      sender,
		Quota:       counter,
		TypingSpeed: time.Millisecond,
	})
	require.NoError(t, err)

	var blocked int
	for i := 0; i < 6; i++ {
		_, err := ctrl.Send(context.Background(), fmt.Sprintf("question %d", i))
		if errors.Is(err, ErrQuotaExceeded) {
			blocked++
			continue
		}
		require.NoError(t, err)
	}

	assert.Equal(t, int32(quota.DefaultDailyLimit), calls.Load())
	assert.Equal(t, 6-quota.DefaultDailyLimit, blocked)
}
