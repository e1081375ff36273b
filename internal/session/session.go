// Package session ties the per-session lifecycle state machine to its
// pipeline and buffer stage, and provides the registry the engine
// facade uses to create, look up and destroy sessions by id.
//
// Each Session owns its own cancellation context and goroutines, with
// its lifecycle tracked through sessionstate.State rather than a bare
// running/stopped flag.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/corten/mediaengine/internal/buffermanager"
	"github.com/corten/mediaengine/internal/hwcontext"
	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
	"github.com/corten/mediaengine/internal/pipeline"
	"github.com/corten/mediaengine/internal/sessionstate"
	"github.com/corten/mediaengine/internal/sourceio"
)

// Session is one playback session: its lifecycle state, its pipeline
// and buffer stage, and the bookkeeping the registry's cleanup and
// stats paths need.
type Session struct {
	ID mediatypes.SessionId

	StartedAt    time.Time
	LastActivity time.Time

	Pipeline *pipeline.Pipeline
	Buffers  *buffermanager.Manager

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	state  sessionstate.State
	volume float32
}

// newSession builds a Session in sessionstate.Idle, wired with a fresh
// pipeline and buffer stage sized per cfg.
func newSession(parent context.Context, id mediatypes.SessionId, cfg mediatypes.EngineConfig, hw hwcontext.Context, breakers *sourceio.Registry, connPool *sourceio.ConnectionPool, log *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	buffers := buffermanager.New(cfg.Buffer, cfg.JitterBufferCapacity, log)
	now := time.Now()
	return &Session{
		ID:           id,
		StartedAt:    now,
		LastActivity: now,
		Pipeline:     pipeline.New(cfg.Pipeline, buffers, hw, breakers, connPool, log),
		Buffers:      buffers,
		ctx:          ctx,
		cancel:       cancel,
		state:        sessionstate.NewIdle(),
		volume:       1.0,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() sessionstate.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Volume returns the session's current playback volume, in [0.0, 1.0].
func (s *Session) Volume() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetVolume validates and applies a new playback volume.
func (s *Session) SetVolume(v float32) error {
	if v < 0.0 || v > 1.0 {
		return &mediaerr.InvalidParameterError{Parameter: "volume", Details: "must be within [0.0, 1.0]"}
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	return nil
}

// Touch records activity against the session's idle-timeout clock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastActivity = time.Now()
	s.mu.Unlock()
}

// Transition validates and applies a lifecycle transition, storing to
// together with its payload so callers can inspect State()
// afterwards. Legal transitions mirror sessionstate.CanTransitionTo;
// an illegal one reports InvalidStateTransitionError without mutating
// state.
func (s *Session) Transition(to sessionstate.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sessionstate.CanTransitionTo(s.state.Kind, to.Kind) {
		return &mediaerr.InvalidStateTransitionError{From: s.state.Kind.String(), To: to.Kind.String()}
	}
	s.state = to
	return nil
}

// Fault forces the session into sessionstate.Error, recording msg.
// Any state (other than the terminal Ended/Error states) can fault.
func (s *Session) Fault(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Kind == sessionstate.Ended || s.state.Kind == sessionstate.Error {
		return
	}
	s.state = sessionstate.State{Kind: sessionstate.Error, ErrorMessage: msg}
}

// Context returns the session's lifetime context, canceled by close.
func (s *Session) Context() context.Context { return s.ctx }

// close tears the session's pipeline down and cancels its context. It
// is idempotent and safe to call more than once.
func (s *Session) close() {
	s.mu.RLock()
	running := s.Pipeline.State() == pipeline.StateRunning
	s.mu.RUnlock()
	if running {
		_ = s.Pipeline.Stop()
	}
	s.cancel()
}
