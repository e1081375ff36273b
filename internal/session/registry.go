package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/corten/mediaengine/internal/hwcontext"
	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
	"github.com/corten/mediaengine/internal/sourceio"
)

// Registry owns every live Session, enforces the engine-wide
// concurrent session limit, and reclaims sessions that have gone idle
// past SessionTimeout with nothing pulling frames from them. It is
// a mutex-guarded id map, one session per caller (no stream-reuse
// keying).
type Registry struct {
	config   mediatypes.EngineConfig
	hw       hwcontext.Context
	breakers *sourceio.Registry
	connPool *sourceio.ConnectionPool
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[mediatypes.SessionId]*Session
}

// SessionTimeout bounds how long a session may sit without
// LastActivity advancing before sweep reclaims it.
const SessionTimeout = 10 * time.Minute

// sweepInterval is how often the registry's background goroutine scans
// for timed-out sessions.
const sweepInterval = 30 * time.Second

// NewRegistry creates an empty Registry and starts its background
// sweep loop, scoped to ctx.
func NewRegistry(ctx context.Context, config mediatypes.EngineConfig, hw hwcontext.Context, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if hw == nil {
		hw = hwcontext.SoftwareOnly{}
	}
	regCtx, cancel := context.WithCancel(ctx)
	r := &Registry{
		config:   config,
		hw:       hw,
		breakers: sourceio.NewRegistry(sourceio.DefaultConfig()),
		connPool: sourceio.NewConnectionPool(config.ConnectionPoolSize),
		log:      log,
		ctx:      regCtx,
		cancel:   cancel,
		sessions: make(map[mediatypes.SessionId]*Session),
	}
	r.wg.Add(1)
	go r.sweepLoop()
	return r
}

// Create allocates a new Session, failing with ResourceExhaustedError
// once MaxConcurrentSessions live sessions already exist.
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.config.MaxConcurrentSessions {
		return nil, &mediaerr.ResourceExhaustedError{Resource: "sessions", Limit: r.config.MaxConcurrentSessions}
	}
	s := newSession(r.ctx, mediatypes.NewSessionId(), r.config, r.hw, r.breakers, r.connPool, r.log)
	r.sessions[s.ID] = s
	return s, nil
}

// Get looks a session up by id.
func (r *Registry) Get(id mediatypes.SessionId) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, mediaerr.ErrSessionNotFound
	}
	return s, nil
}

// Destroy closes and removes a session. Destroying an id that does not
// exist (including double-destroy) reports ErrSessionNotFound.
func (r *Registry) Destroy(id mediatypes.SessionId) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return mediaerr.ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.close()
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close tears every session down and stops the sweep loop. Safe to
// call once, at engine shutdown.
func (r *Registry) Close() {
	r.cancel()

	r.mu.Lock()
	for id, s := range r.sessions {
		delete(r.sessions, id)
		s.close()
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes sessions whose LastActivity is older than
// SessionTimeout. A session mid-playback still advances LastActivity
// via touch on every facade call, so an actively watched session is
// never swept regardless of wall-clock age.
func (r *Registry) sweep() {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		s.mu.RLock()
		idle := time.Since(s.LastActivity) > SessionTimeout
		s.mu.RUnlock()
		if idle {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		r.log.Info("reclaiming idle session", slog.String("session_id", s.ID.String()))
		s.close()
	}
}
