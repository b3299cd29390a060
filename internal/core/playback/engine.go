// Package playback reveals a reply one character at a time.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultSpeed is the delay between two revealed characters
const DefaultSpeed = 20 * time.Millisecond

var (
	// ErrBusy is returned when Play is called while another playback runs
	ErrBusy = errors.New("playback already running")
	// ErrStopped is returned when a playback was cancelled before completion
	ErrStopped = errors.New("playback stopped")
)

// Options parameterize one playback
type Options struct {
	// Speed is the per-character delay; DefaultSpeed when zero
	Speed time.Duration
	// Delay is an optional pause before the first character
	Delay time.Duration
	// OnStep receives each growing prefix of the text
	OnStep func(partial string)
	// OnDone receives the full text once every character was shown
	OnDone func(text string)
}

// Engine runs at most one playback at a time
type Engine struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle engine
func New() *Engine {
	return &Engine{}
}

// Busy reports whether a playback is in progress
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done != nil
}

// Play blocks until text has been fully revealed, ctx is cancelled, or Stop
// is called. OnStep is called once per rune with strictly growing prefixes,
// the last one equal to text, followed by exactly one OnDone.
// The callbacks run on the caller's goroutine and must not call Stop.
func (e *Engine) Play(ctx context.Context, text string, opts Options) error {
	e.mu.Lock()
	if e.done != nil {
		e.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.cancel, e.done = nil, nil
		e.mu.Unlock()
		close(done)
	}()

	speed := opts.Speed
	if speed <= 0 {
		speed = DefaultSpeed
	}

	if opts.Delay > 0 {
		timer := time.NewTimer(opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrStopped
		case <-timer.C:
		}
	}

	runes := []rune(text)
	if len(runes) > 0 {
		ticker := time.NewTicker(speed)
		defer ticker.Stop()

		for i := 1; i <= len(runes); i++ {
			select {
			case <-ctx.Done():
				return ErrStopped
			case <-ticker.C:
			}
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				return ErrStopped
			}
			if opts.OnStep != nil {
				opts.OnStep(string(runes[:i]))
			}
		}
	}

	if ctx.Err() != nil {
		return ErrStopped
	}
	if opts.OnDone != nil {
		opts.OnDone(text)
	}
	return nil
}

// Stop cancels the running playback and waits for it to exit. No callback
// runs after Stop returns. Stop on an idle engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
