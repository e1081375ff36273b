// Package engine implements the media engine's public facade: the
// create/load/play/pause/seek/volume/pull-frame/destroy operation set
// and its event stream, wrapping internal/session's registry the way
// tvarr's HTTP handlers wrap internal/relay.Manager.
//
// Grounded on
// _examples/original_source/components/media_engine/src/engine.rs
// (MediaEngineImpl) for the operation contract and error mapping.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/corten/mediaengine/internal/hwcontext"
	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
	"github.com/corten/mediaengine/internal/pipeline"
	"github.com/corten/mediaengine/internal/session"
	"github.com/corten/mediaengine/internal/sessionstate"
)

// Engine is the top-level facade the CLI/HTTP layer (and any embedder)
// drives. It owns no I/O of its own beyond what its sessions' pipelines
// perform.
type Engine struct {
	config   mediatypes.EngineConfig
	registry *session.Registry
	log      *slog.Logger
	events   eventBus
}

// New creates an Engine whose sessions live for the lifetime of ctx.
func New(ctx context.Context, config mediatypes.EngineConfig, hw hwcontext.Context, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		config:   config,
		registry: session.NewRegistry(ctx, config, hw, log),
		log:      log,
	}
}

// SubscribeEvents returns a channel of engine events. Every
// state-changing operation emits on it. Once a subscriber's mailbox is
// full, a new PlaybackStateChanged event displaces the oldest queued
// event, whatever its kind or session, and a new event of any other
// kind is dropped; state changes are not coalesced per session.
func (e *Engine) SubscribeEvents() <-chan Event {
	return e.events.subscribe()
}

// CreateSession allocates a session in Idle, failing with
// ResourceExhaustedError once MaxConcurrentSessions is reached.
func (e *Engine) CreateSession() (mediatypes.SessionId, error) {
	s, err := e.registry.Create()
	if err != nil {
		return mediatypes.SessionId{}, err
	}
	e.log.Info("session created", slog.String("session_id", s.ID.String()))
	return s.ID, nil
}

// LoadSource binds src to session id, transitioning Idle -> Loading ->
// Ready. Legal only from Idle.
func (e *Engine) LoadSource(id mediatypes.SessionId, src mediatypes.MediaSource) error {
	s, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	s.Touch()

	if err := s.Transition(sessionstate.State{Kind: sessionstate.Loading}); err != nil {
		return err
	}
	if err := s.Pipeline.LoadSource(src); err != nil {
		s.Fault(err.Error())
		e.emitError(id, err)
		return err
	}
	if err := s.Transition(sessionstate.State{Kind: sessionstate.Ready}); err != nil {
		s.Fault(err.Error())
		e.emitError(id, err)
		return err
	}
	e.emitStateChanged(s)
	return nil
}

// Play transitions Ready|Paused -> Playing, starting the session's
// pipeline worker topology the first time it runs.
func (e *Engine) Play(id mediatypes.SessionId) error {
	s, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	s.Touch()

	if err := s.Transition(sessionstate.State{Kind: sessionstate.Playing}); err != nil {
		return err
	}
	if s.Pipeline.State() == pipeline.StateReady {
		if err := s.Pipeline.Start(s.Context()); err != nil {
			s.Fault(err.Error())
			e.emitError(id, err)
			return err
		}
	}
	e.emitStateChanged(s)
	return nil
}

// Pause transitions Playing -> Paused. The Paused state carries no
// playback position; the pipeline's position is not sampled.
func (e *Engine) Pause(id mediatypes.SessionId) error {
	s, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	s.Touch()

	if err := s.Transition(sessionstate.State{Kind: sessionstate.Paused}); err != nil {
		return err
	}
	e.emitStateChanged(s)
	return nil
}

// Seek transitions to Seeking{target: position}, asks the pipeline to
// flush and reposition, then restores the state that preceded the
// seek.
func (e *Engine) Seek(id mediatypes.SessionId, position time.Duration) error {
	s, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	s.Touch()

	// A seek issued while already Seeking supersedes the pending one:
	// the latest target wins, and the state to resume afterward stays
	// whatever it was before the first seek, not Seeking itself.
	current := s.State()
	prior := current.Kind
	if prior == sessionstate.Seeking {
		prior = current.PriorKind
	}
	if err := s.Transition(sessionstate.State{
		Kind:       sessionstate.Seeking,
		SeekTarget: position.Seconds(),
		PriorKind:  prior,
	}); err != nil {
		return err
	}
	e.emitStateChanged(s)

	if err := s.Pipeline.Seek(position); err != nil {
		s.Fault(err.Error())
		e.emitError(id, err)
		return err
	}

	if err := s.Transition(sessionstate.State{Kind: prior, Duration: position.Seconds()}); err != nil {
		s.Fault(err.Error())
		e.emitError(id, err)
		return err
	}
	e.emitStateChanged(s)
	return nil
}

// SetVolume validates and applies v in [0.0, 1.0] without changing
// playback state.
func (e *Engine) SetVolume(id mediatypes.SessionId, v float32) error {
	s, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	s.Touch()
	return s.SetVolume(v)
}

// GetVideoFrame is a non-blocking pull of the next in-epoch video
// frame, reporting ErrUnavailable when none is queued yet.
func (e *Engine) GetVideoFrame(id mediatypes.SessionId) (mediatypes.VideoFrame, error) {
	s, err := e.registry.Get(id)
	if err != nil {
		return mediatypes.VideoFrame{}, err
	}
	s.Touch()
	frame, ok := s.Pipeline.NextVideoFrame()
	if !ok {
		return mediatypes.VideoFrame{}, mediaerr.ErrUnavailable
	}
	e.events.publish(Event{Kind: EventVideoFrameReady, SessionID: id, Frame: frame})
	return frame, nil
}

// GetAudioSamples is a non-blocking pull of the next in-epoch audio
// buffer. count is advisory (matching the spec's pull-window contract)
// since the decode workers produce whole decoded buffers rather than
// caller-sized windows.
func (e *Engine) GetAudioSamples(id mediatypes.SessionId, count int) (mediatypes.AudioBuffer, error) {
	s, err := e.registry.Get(id)
	if err != nil {
		return mediatypes.AudioBuffer{}, err
	}
	s.Touch()
	buf, ok := s.Pipeline.NextAudioBuffer()
	if !ok {
		return mediatypes.AudioBuffer{}, mediaerr.ErrUnavailable
	}
	e.events.publish(Event{Kind: EventAudioSamplesReady, SessionID: id, Buffer: buf})
	return buf, nil
}

// DestroySession cancels all pipeline work, drains buffers and removes
// the session from the registry. A second call on the same id fails
// SessionNotFound.
func (e *Engine) DestroySession(id mediatypes.SessionId) error {
	if err := e.registry.Destroy(id); err != nil {
		return err
	}
	e.log.Info("session destroyed", slog.String("session_id", id.String()))
	return nil
}

// Close shuts the engine down, tearing every session's pipeline down.
func (e *Engine) Close() { e.registry.Close() }

func (e *Engine) emitStateChanged(s *session.Session) {
	e.events.publish(Event{
		Kind:      EventPlaybackStateChanged,
		SessionID: s.ID,
		StateName: s.State().Kind.String(),
	})
}

func (e *Engine) emitError(id mediatypes.SessionId, err error) {
	kind, _ := mediaerr.KindOf(err)
	e.events.publish(Event{
		Kind:      EventMediaError,
		SessionID: id,
		ErrorKind: kind,
		Details:   err.Error(),
	})
}
