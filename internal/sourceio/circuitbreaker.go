// Package sourceio guards reads from a session's media source (a
// remote URL, a capture device, or a blob) with a circuit breaker so a
// session backed by a dead upstream doesn't retry it forever.
package sourceio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corten/mediaengine/internal/mediaerr"
)

// CircuitState is the operating state of a CircuitBreaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute when the breaker is open and
// the configured timeout has not yet elapsed.
var ErrCircuitOpen = fmt.Errorf("sourceio: circuit open: %w", mediaerr.ErrNetworkError)

// Config tunes a CircuitBreaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures in the
	// closed state that trips the breaker open.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in the
	// half-open state required to close the breaker again.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before it half-opens;
	// reads are then allowed until SuccessThreshold successes close it
	// or one failure reopens it.
	Timeout time.Duration
	// OnStateChange, if set, is invoked (from a new goroutine) on every
	// state transition.
	OnStateChange func(from, to CircuitState)
}

// DefaultConfig returns a breaker tuned for an intermittently flaky
// upstream: five failures trip it, two consecutive good reads close
// it again, and it waits thirty seconds before the next trial.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker guards repeated calls to a single source's read
// operation. It is safe for concurrent use.
type CircuitBreaker struct {
	config Config

	mu              sync.RWMutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time
}

// New creates a CircuitBreaker in the closed state.
func New(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// State returns the breaker's current state, transitioning from open
// to half-open if the timeout has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.config.Timeout {
		cb.transitionTo(StateHalfOpen)
	}
	return cb.state
}

// Allow reports whether a read attempt may proceed right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked() != StateOpen
}

// Execute runs fn if the breaker allows it, recording the outcome.
// It returns ErrCircuitOpen without calling fn when the breaker is
// open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// RecordSuccess records a successful read outside of Execute, e.g.
// when the caller drives its own retry loop.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed read outside of Execute.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionTo(StateOpen)
	}
}

// transitionTo moves the breaker to newState, resetting its counters
// and firing OnStateChange. Callers must hold cb.mu.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()
	cb.failures = 0
	cb.successes = 0

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(old, newState)
	}
}

// Reset forces the breaker back to closed, clearing counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
}

// Stats is a point-in-time snapshot of a breaker's counters.
type Stats struct {
	State           CircuitState
	Failures        int
	Successes       int
	LastFailureTime time.Time
	LastStateChange time.Time
}

// Stats returns a snapshot of the breaker's current counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Stats{
		State:           cb.state,
		Failures:        cb.failures,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailureTime,
		LastStateChange: cb.lastStateChange,
	}
}
