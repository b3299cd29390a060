// Package history keeps the dashboard's conversation list and analytics in
// line with the backend, falling back to the local cache when it is down.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/rs/zerolog"
)

// DefaultPageSize is how many conversations Refresh asks for
const DefaultPageSize = 50

// ErrUnknownSession is returned when a transcript is neither on the backend
// nor in the local cache.
var ErrUnknownSession = errors.New("session not found")

// Remote is the slice of the backend API the reconciler needs
type Remote interface {
	ListHistory(ctx context.Context, limit, page int) ([]models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Stats(ctx context.Context) (*models.Stats, error)
}

// TranscriptCache stores full transcripts for offline reading
type TranscriptCache interface {
	SaveTranscript(ctx context.Context, s models.Session) error
	LoadTranscript(ctx context.Context, sessionID string) (*models.Session, error)
}

// Resumer accepts a fetched conversation, normally a chat.Controller
type Resumer interface {
	Resume(s models.Session)
}

// Snapshot is what the dashboard renders
type Snapshot struct {
	Sessions []models.Session
	Stats    models.Stats
	// Degraded is set when Sessions came from the local cache
	Degraded bool
	// StatsLocal is set when Stats were aggregated from Sessions
	StatsLocal  bool
	RefreshedAt time.Time
	// Err is the backend failure behind a degraded snapshot
	Err error
}

// Reconciler owns the history list shown on the dashboard
type Reconciler struct {
	remote      Remote
	cache       storage.HistoryCache
	transcripts TranscriptCache
	pageSize    int
	logger      zerolog.Logger
	now         func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithTranscriptCache enables offline transcripts
func WithTranscriptCache(tc TranscriptCache) Option {
	return func(r *Reconciler) { r.transcripts = tc }
}

// WithPageSize overrides DefaultPageSize
func WithPageSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a reconciler. cache may be nil.
func New(remote Remote, cache storage.HistoryCache, opts ...Option) *Reconciler {
	r := &Reconciler{
		remote:   remote,
		cache:    cache,
		pageSize: DefaultPageSize,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh fetches the history list and stats. A backend failure is not an
// error: the cached list is returned with Degraded set. Refresh only fails
// when the backend is down and the cache cannot be read either.
func (r *Reconciler) Refresh(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{RefreshedAt: r.now()}

	sessions, err := r.remote.ListHistory(ctx, r.pageSize, 1)
	if err != nil {
		r.logger.Warn().Err(err).Msg("history fetch failed, using cache")
		snap.Degraded = true
		snap.Err = err

		sessions = nil
		if r.cache != nil {
			cached, cerr := r.cache.LoadHistory(ctx)
			if cerr != nil {
				snap.Stats, snap.StatsLocal = Aggregate(nil), true
				return r.store(snap), fmt.Errorf("failed to load cached history: %w (backend: %v)", cerr, err)
			}
			sessions = cached
		}
	} else if r.cache != nil {
		if err := r.cache.SaveHistory(ctx, sessions); err != nil {
			r.logger.Warn().Err(err).Msg("failed to cache history")
		}
	}
	snap.Sessions = sessions

	local := Aggregate(sessions)
	if snap.Degraded {
		// the backend just failed, skip another round trip
		snap.Stats, snap.StatsLocal = local, true
		return r.store(snap), nil
	}

	remote, err := r.remote.Stats(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("stats fetch failed, aggregating locally")
		snap.Stats, snap.StatsLocal = local, true
	} else {
		snap.Stats = mergeStats(*remote, local)
	}

	r.logger.Debug().Int("sessions", len(sessions)).Bool("stats_local", snap.StatsLocal).Msg("history refreshed")
	return r.store(snap), nil
}

func (r *Reconciler) store(snap Snapshot) Snapshot {
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return r.Snapshot()
}

// mergeStats fills the fields the backend left empty from local numbers
func mergeStats(remote, local models.Stats) models.Stats {
	if remote.TotalChats == 0 {
		remote.TotalChats = local.TotalChats
	}
	if remote.TotalMessages == 0 {
		remote.TotalMessages = local.TotalMessages
	}
	if remote.AvgMessagesPerChat == 0 {
		remote.AvgMessagesPerChat = local.AvgMessagesPerChat
	}
	if remote.MostActiveTopic == "" {
		remote.MostActiveTopic = local.MostActiveTopic
	}
	if len(remote.RecentActivity) == 0 {
		remote.RecentActivity = local.RecentActivity
	}
	return remote
}

// Snapshot returns a copy of the last refreshed state
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snap
	snap.Sessions = append([]models.Session(nil), r.snap.Sessions...)
	snap.Stats.RecentActivity = append([]models.Session(nil), r.snap.Stats.RecentActivity...)
	return snap
}

// DeleteSession removes a conversation on the backend, then locally, then
// refreshes. A backend failure is returned and nothing changes locally.
func (r *Reconciler) DeleteSession(ctx context.Context, sessionID string) (Snapshot, error) {
	if err := r.remote.DeleteSession(ctx, sessionID); err != nil {
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("delete failed")
		return r.Snapshot(), fmt.Errorf("failed to delete chat: %w", err)
	}

	r.mu.Lock()
	r.snap.Sessions = without(r.snap.Sessions, sessionID)
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.RemoveSession(ctx, sessionID); err != nil {
			r.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to drop cached session")
		}
	}

	return r.Refresh(ctx)
}

// ContinueSession fetches a full transcript and hands it to into. When the
// backend is unreachable a cached transcript is used instead.
func (r *Reconciler) ContinueSession(ctx context.Context, sessionID string, into Resumer) (*models.Session, error) {
	s, err := r.Transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if into != nil {
		into.Resume(*s)
	}
	return s, nil
}

// Transcript fetches one conversation with its messages
func (r *Reconciler) Transcript(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := r.remote.GetSession(ctx, sessionID)
	if err == nil {
		if r.transcripts != nil {
			if cerr := r.transcripts.SaveTranscript(ctx, *s); cerr != nil {
				r.logger.Warn().Err(cerr).Str("session_id", sessionID).Msg("failed to cache transcript")
			}
		}
		return s, nil
	}

	if r.transcripts != nil {
		cached, cerr := r.transcripts.LoadTranscript(ctx, sessionID)
		if cerr == nil && len(cached.Messages) > 0 {
			r.logger.Warn().Err(err).Str("session_id", sessionID).Msg("using cached transcript")
			return cached, nil
		}
	}
	return nil, fmt.Errorf("failed to load chat %s: %w", sessionID, errors.Join(ErrUnknownSession, err))
}

// Insert puts a freshly created conversation at the top of the list
func (r *Reconciler) Insert(ctx context.Context, s models.Session) {
	r.mu.Lock()
	r.snap.Sessions = append([]models.Session{s}, without(r.snap.Sessions, s.SessionID)...)
	if r.snap.StatsLocal || r.snap.RefreshedAt.IsZero() {
		r.snap.Stats = Aggregate(r.snap.Sessions)
	} else {
		r.snap.Stats.TotalChats++
		r.snap.Stats.TotalMessages += messageCount(s)
		r.snap.Stats.AvgMessagesPerChat = roundedAverage(r.snap.Stats.TotalMessages, r.snap.Stats.TotalChats)
		r.snap.Stats.RecentActivity = append([]models.Session{s}, without(r.snap.Stats.RecentActivity, s.SessionID)...)
		if len(r.snap.Stats.RecentActivity) > recentLimit {
			r.snap.Stats.RecentActivity = r.snap.Stats.RecentActivity[:recentLimit]
		}
	}
	sessions := append([]models.Session(nil), r.snap.Sessions...)
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.SaveHistory(ctx, sessions); err != nil {
			r.logger.Warn().Err(err).Msg("failed to cache inserted session")
		}
	}
	if r.transcripts != nil && len(s.Messages) > 0 {
		if err := r.transcripts.SaveTranscript(ctx, s); err != nil {
			r.logger.Warn().Err(err).Msg("failed to cache new transcript")
		}
	}
}

func without(sessions []models.Session, id string) []models.Session {
	out := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.SessionID != id {
			out = append(out, s)
		}
	}
	return out
}
