package entity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/cctv-bridge/service/lgr"
	"github.com/khaledhikmat/cctv-bridge/service/snapshot"
)

// errTranscode marks a snapshot that fetched fine but could not be decoded
// or re-encoded. Counted against the failure threshold like a fetch failure.
var errTranscode = errors.New("transcode failed")

type loopState int

const (
	loopIdle loopState = iota
	loopRunning
	loopStopping
)

type loopCallbacks struct {
	// powered reports whether the owning entity is still on. The loop
	// self-terminates when it flips off.
	powered func() bool
	// tick performs one fetch/transcode/publish cycle.
	tick func(ctx context.Context) error
	// refresh is the suspension between ticks for the active camera.
	refresh func() time.Duration
	// onUnavailable fires once when the failure threshold is reached.
	onUnavailable func()
}

// streamLoop owns the single polling task of a media player. At most one
// task is ever alive: start is a no-op while running, and stop cancels and
// awaits completion before clearing the task handle.
type streamLoop struct {
	maxFailures int
	backoff     time.Duration
	callbacks   loopCallbacks

	mu     sync.Mutex
	state  loopState
	cancel context.CancelFunc
	done   chan struct{}
	runID  string
}

func newStreamLoop(maxFailures int, backoff time.Duration, callbacks loopCallbacks) *streamLoop {
	return &streamLoop{
		maxFailures: maxFailures,
		backoff:     backoff,
		callbacks:   callbacks,
	}
}

// start spawns the polling task. Returns false if a task is already alive.
func (l *streamLoop) start(parent context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != loopIdle {
		lgr.Logger.Debug(
			"stream loop already running, skipping start",
			slog.String("runID", l.runID),
		)
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.state = loopRunning
	l.runID = uuid.NewString()

	go l.run(ctx, l.done)

	lgr.Logger.Info(
		"stream loop started",
		slog.String("runID", l.runID),
	)
	return true
}

// stop cancels the in-flight suspension or fetch and awaits task completion.
// Safe to call when already idle.
func (l *streamLoop) stop() {
	l.mu.Lock()
	if l.state == loopIdle || l.done == nil {
		l.mu.Unlock()
		return
	}
	l.state = loopStopping
	cancel := l.cancel
	done := l.done
	runID := l.runID
	l.mu.Unlock()

	cancel()
	<-done

	l.mu.Lock()
	if l.done == done {
		l.clearLocked()
	}
	l.mu.Unlock()

	lgr.Logger.Info(
		"stream loop stopped",
		slog.String("runID", runID),
	)
}

func (l *streamLoop) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == loopRunning
}

// currentRunID exposes the live task's ID; empty when idle. Used by the
// status server and by tests asserting the single-task invariant.
func (l *streamLoop) currentRunID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runID
}

func (l *streamLoop) clearLocked() {
	l.state = loopIdle
	l.cancel = nil
	l.done = nil
	l.runID = ""
}

func (l *streamLoop) run(ctx context.Context, done chan struct{}) {
	defer func() {
		close(done)
		l.mu.Lock()
		// Self-terminating exits clear the handle themselves; stop() owns
		// the cleanup when it initiated the shutdown.
		if l.state == loopRunning && l.done == done {
			l.clearLocked()
		}
		l.mu.Unlock()
	}()

	failures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if !l.callbacks.powered() {
			lgr.Logger.Info("entity turned off during streaming, stopping loop")
			return
		}

		err := l.callbacks.tick(ctx)

		delay := l.callbacks.refresh()

		switch {
		case err == nil:
			failures = 0

		case ctx.Err() != nil:
			// Deliberate stop signal; never counted as a failure.
			return

		default:
			failures++
			lgr.Logger.Warn(
				"snapshot tick failed",
				slog.Int("failures", failures),
				slog.Int("maxFailures", l.maxFailures),
				lgr.Err(err),
			)

			if failures >= l.maxFailures {
				lgr.Logger.Error(
					"too many consecutive failures, marking camera unavailable",
					slog.Int("failures", failures),
				)
				l.callbacks.onUnavailable()
				return
			}

			// Expected degradations retry on the normal cadence; anything
			// unexpected backs off instead of tight-looping.
			if !errors.Is(err, snapshot.ErrNotAvailable) && !errors.Is(err, errTranscode) {
				delay = l.backoff
			}
		}

		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// sleepCtx suspends for d; returns false if the context was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
