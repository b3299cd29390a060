// Package quota meters free-tier chat messages per device-local calendar day.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/neilberkman/pitchside/internal/core/storage"
	"github.com/rs/zerolog"
)

// DefaultDailyLimit is the number of free messages allowed per day
const DefaultDailyLimit = 3

const dateLayout = "2006-01-02"

// Record is the persisted usage state
type Record struct {
	Date    string `json:"date"`
	Count   int    `json:"count"`
	Premium bool   `json:"premium"`
}

// Counter reads and writes the usage record through a KV store.
// Two processes sharing one store can race on the read-modify-write in
// RecordSend; the last writer wins. Within one process the count never
// goes below what RecordSend has seen today, even if the store lost a write.
type Counter struct {
	store  storage.KV
	limit  int
	now    func() time.Time
	logger zerolog.Logger

	mu   sync.Mutex
	seen Record
}

// Option configures a Counter
type Option func(*Counter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Counter) { c.logger = l }
}

// NewCounter creates a counter with the given daily limit
func NewCounter(store storage.KV, limit int, opts ...Option) *Counter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	c := &Counter{
		store:  store,
		limit:  limit,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limit returns the daily limit
func (c *Counter) Limit() int {
	return c.limit
}

// Today returns the current device-local date string
func (c *Counter) Today() string {
	return c.now().Local().Format(dateLayout)
}

// Load returns today's record. A missing, unreadable or stale record is
// replaced with a fresh one for today.
func (c *Counter) Load(ctx context.Context) (Record, error) {
	today := c.Today()

	data, err := c.store.Get(ctx, storage.KeyUsage)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.reset(ctx, today)
	case err != nil:
		return Record{}, fmt.Errorf("failed to read usage record: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		c.logger.Warn().Err(err).Msg("discarding unreadable usage record")
		return c.reset(ctx, today)
	}

	if r.Date != today {
		c.logger.Debug().Str("stale", r.Date).Str("today", today).Msg("usage record rolled over")
		return c.reset(ctx, today)
	}
	if floor := c.floor(today); r.Count < floor {
		c.logger.Warn().Int("stored", r.Count).Int("seen", floor).Msg("usage record behind this session")
		r.Count = floor
	}
	return r, nil
}

func (c *Counter) reset(ctx context.Context, today string) (Record, error) {
	r := Record{Date: today, Count: c.floor(today)}
	if err := c.save(ctx, r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// floor returns the highest count recorded today by this process
func (c *Counter) floor(today string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen.Date != today {
		return 0
	}
	return c.seen.Count
}

func (c *Counter) remember(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Date != c.seen.Date || r.Count > c.seen.Count {
		c.seen = r
	}
}

// CanSend reports whether another message is allowed under r
func (c *Counter) CanSend(r Record) bool {
	return r.Premium || r.Count < c.limit
}

// Remaining returns how many free messages are left under r
func (c *Counter) Remaining(r Record) int {
	if n := c.limit - r.Count; n > 0 {
		return n
	}
	return 0
}

// RecordSend increments the count and persists it immediately. The new
// record is returned even when the write fails, and later Loads in this
// process still see it.
func (c *Counter) RecordSend(ctx context.Context, r Record) (Record, error) {
	next := r
	next.Count++
	c.remember(next)
	if err := c.save(ctx, next); err != nil {
		return next, err
	}
	c.logger.Debug().Int("count", next.Count).Int("limit", c.limit).Msg("recorded free message")
	return next, nil
}

// Reset clears today's count
func (c *Counter) Reset(ctx context.Context) (Record, error) {
	c.mu.Lock()
	c.seen = Record{}
	c.mu.Unlock()
	return c.reset(ctx, c.Today())
}

func (c *Counter) save(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode usage record: %w", err)
	}
	if err := c.store.Put(ctx, storage.KeyUsage, data); err != nil {
		return fmt.Errorf("failed to write usage record: %w", err)
	}
	return nil
}
