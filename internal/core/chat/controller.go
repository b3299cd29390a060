package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neilberkman/pitchside/internal/core/api"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/playback"
	"github.com/neilberkman/pitchside/internal/core/quota"
	"github.com/rs/zerolog"
)

// Validation errors returned by Send. Transport failures are never
// returned; they become an error message in the transcript.
var (
	ErrEmptyInput    = errors.New("message is empty")
	ErrBusy          = errors.New("a message is already being answered")
	ErrQuotaExceeded = errors.New("daily free message limit reached")
)

// Apology texts shown when a turn fails
const (
	FreeApology = "I apologize, but I'm having trouble connecting to the AI service. Please check your connection and try again."
	UserApology = "Sorry, I'm having trouble responding right now. Please try again."
)

// State of the send cycle
type State int

const (
	StateIdle State = iota
	StateSending
	StatePlayback
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StatePlayback:
		return "typing"
	default:
		return "idle"
	}
}

// Mode selects the free or the authenticated surface
type Mode int

const (
	ModeFree Mode = iota
	ModeAuthenticated
)

func (m Mode) String() string {
	if m == ModeAuthenticated {
		return "authenticated"
	}
	return "free"
}

// Sender delivers one user turn to the assistant
type Sender interface {
	Send(ctx context.Context, message, sessionID string) (*api.Reply, error)
}

// Hooks observe a send cycle. All fields are optional. Hooks run on the
// goroutine that called Send and must not call back into the Controller.
type Hooks struct {
	OnState          func(State)
	OnMessage        func(models.Message)
	OnTyping         func(partial string)
	OnQuota          func(quota.Record)
	OnQuotaExceeded  func(quota.Record)
	OnSessionCreated func(SessionCreated)
	OnTurnComplete   func(Result)
}

// Config wires a Controller
type Config struct {
	Mode           Mode
	Sender         Sender
	Transcript     *Transcript
	Quota          *quota.Counter
	Engine         *playback.Engine
	TypingSpeed    time.Duration
	StartDelay     time.Duration
	RequestTimeout time.Duration
	Apology        string
	Hooks          Hooks
	Logger         zerolog.Logger
	Now            func() time.Time
}

// Result describes a finished send cycle
type Result struct {
	User     models.Message
	Reply    models.Message
	Failed   bool
	Canceled bool
	Err      error
	Created  *SessionCreated
	Usage    *quota.Record
}

// Controller runs send cycles against one Transcript
type Controller struct {
	cfg Config

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	gen     uint64
	partial string
}

// NewController validates cfg and fills defaults
func NewController(cfg Config) (*Controller, error) {
	if cfg.Sender == nil {
		return nil, errors.New("chat: sender is required")
	}
	if cfg.Mode == ModeFree && cfg.Quota == nil {
		return nil, errors.New("chat: free mode requires a quota counter")
	}
	if cfg.Transcript == nil {
		cfg.Transcript = NewTranscript()
	}
	if cfg.Engine == nil {
		cfg.Engine = playback.New()
	}
	if cfg.TypingSpeed <= 0 {
		cfg.TypingSpeed = playback.DefaultSpeed
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = api.DefaultTimeout
	}
	if cfg.Apology == "" {
		cfg.Apology = FreeApology
		if cfg.Mode == ModeAuthenticated {
			cfg.Apology = UserApology
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{cfg: cfg}, nil
}

// Mode returns the surface this controller serves
func (c *Controller) Mode() Mode {
	return c.cfg.Mode
}

// Transcript returns the conversation being driven
func (c *Controller) Transcript() *Transcript {
	return c.cfg.Transcript
}

// State returns the current send-cycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Partial returns the reply prefix revealed so far while typing
func (c *Controller) Partial() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partial
}

// Usage returns today's quota record; ok is false in authenticated mode
func (c *Controller) Usage(ctx context.Context) (rec quota.Record, ok bool, err error) {
	if c.cfg.Quota == nil {
		return quota.Record{}, false, nil
	}
	rec, err = c.cfg.Quota.Load(ctx)
	return rec, err == nil, err
}

// Limit returns the daily free limit, zero when unmetered
func (c *Controller) Limit() int {
	if c.cfg.Quota == nil {
		return 0
	}
	return c.cfg.Quota.Limit()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	if s != StatePlayback {
		c.partial = ""
	}
	c.mu.Unlock()
	if c.cfg.Hooks.OnState != nil {
		c.cfg.Hooks.OnState(s)
	}
}

// mutate runs fn under the controller lock unless the transcript was
// replaced since generation gen.
func (c *Controller) mutate(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	fn()
	return true
}

func (c *Controller) emitMessage(m models.Message) {
	if c.cfg.Hooks.OnMessage != nil {
		c.cfg.Hooks.OnMessage(m)
	}
}

// Send runs one full cycle: validate, append the user message, call the
// backend, charge the free quota, play the reply back and finalize it.
// It returns ErrEmptyInput, ErrBusy or ErrQuotaExceeded without side
// effects; every other failure is reported through Result.
func (c *Controller) Send(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}

	var usage quota.Record
	if c.cfg.Mode == ModeFree {
		rec, err := c.cfg.Quota.Load(ctx)
		if err != nil {
			c.mu.Unlock()
			return Result{}, fmt.Errorf("failed to load usage: %w", err)
		}
		if !c.cfg.Quota.CanSend(rec) {
			c.mu.Unlock()
			c.cfg.Logger.Info().Int("count", rec.Count).Msg("free quota exhausted")
			if c.cfg.Hooks.OnQuotaExceeded != nil {
				c.cfg.Hooks.OnQuotaExceeded(rec)
			}
			return Result{Usage: &rec}, ErrQuotaExceeded
		}
		usage = rec
	}

	sendCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateSending
	gen := c.gen
	user := c.cfg.Transcript.AppendUser(text)
	sessionID := c.cfg.Transcript.SessionID()
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		c.setState(StateIdle)
	}()

	if c.cfg.Hooks.OnState != nil {
		c.cfg.Hooks.OnState(StateSending)
	}
	c.emitMessage(user)

	if c.cfg.Mode == ModeAuthenticated && sessionID == "" {
		sessionID = fmt.Sprintf("session_%d", c.cfg.Now().UnixMilli())
	}

	res := Result{User: user}

	reqCtx, reqCancel := context.WithTimeout(sendCtx, c.cfg.RequestTimeout)
	reply, err := c.cfg.Sender.Send(reqCtx, text, sessionID)
	timedOut := errors.Is(reqCtx.Err(), context.DeadlineExceeded)
	reqCancel()

	if err != nil {
		if sendCtx.Err() != nil {
			c.cfg.Logger.Debug().Err(err).Msg("send canceled")
			res.Canceled = true
			return res, nil
		}

		c.cfg.Logger.Warn().Err(err).Bool("timeout", timedOut).Str("mode", c.cfg.Mode.String()).Msg("chat turn failed")
		res.Failed = true
		res.Err = err
		if c.mutate(gen, func() { res.Reply = c.cfg.Transcript.AppendError(c.cfg.Apology) }) {
			c.emitMessage(res.Reply)
		}
		if c.cfg.Hooks.OnTurnComplete != nil {
			c.cfg.Hooks.OnTurnComplete(res)
		}
		return res, nil
	}

	if c.cfg.Mode == ModeFree {
		next, err := c.cfg.Quota.RecordSend(ctx, usage)
		if err != nil {
			c.cfg.Logger.Error().Err(err).Msg("failed to persist usage")
		}
		res.Usage = &next
		if c.cfg.Hooks.OnQuota != nil {
			c.cfg.Hooks.OnQuota(next)
		}
	}

	replySession := reply.SessionID
	if replySession == "" && c.cfg.Mode == ModeAuthenticated {
		replySession = sessionID
	}

	c.setState(StatePlayback)
	playErr := c.cfg.Engine.Play(sendCtx, reply.Text, playback.Options{
		Speed: c.cfg.TypingSpeed,
		Delay: c.cfg.StartDelay,
		OnStep: func(partial string) {
			c.mu.Lock()
			c.partial = partial
			c.mu.Unlock()
			if c.cfg.Hooks.OnTyping != nil {
				c.cfg.Hooks.OnTyping(partial)
			}
		},
	})
	if playErr != nil && !errors.Is(playErr, playback.ErrStopped) {
		c.cfg.Logger.Warn().Err(playErr).Msg("playback skipped")
		playErr = nil
	}
	res.Canceled = playErr != nil

	finalized := c.mutate(gen, func() {
		res.Reply, res.Created = c.cfg.Transcript.AppendReply(user, reply.Text, replySession, reply.OffTopic)
	})
	if !finalized {
		res.Canceled = true
		return res, nil
	}

	if !res.Canceled {
		c.emitMessage(res.Reply)
	}
	if res.Created != nil && c.cfg.Hooks.OnSessionCreated != nil {
		c.cfg.Hooks.OnSessionCreated(*res.Created)
	}
	if !res.Canceled && c.cfg.Hooks.OnTurnComplete != nil {
		c.cfg.Hooks.OnTurnComplete(res)
	}
	return res, nil
}

// Cancel aborts an in-flight request and stops playback. A reply whose
// playback was stopped is still recorded in the transcript, silently.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.cfg.Engine.Stop()
}

// NewChat abandons the current conversation and starts an empty one
func (c *Controller) NewChat() {
	c.Cancel()
	c.mu.Lock()
	c.gen++
	c.cfg.Transcript.Reset()
	c.mu.Unlock()
}

// Resume replaces the conversation with a persisted one
func (c *Controller) Resume(s models.Session) {
	c.Cancel()
	c.mu.Lock()
	c.gen++
	c.cfg.Transcript.Hydrate(s)
	c.mu.Unlock()
}
