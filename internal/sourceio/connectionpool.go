package sourceio

import (
	"context"

	"github.com/corten/mediaengine/internal/mediaerr"
)

// ConnectionPool caps the number of concurrent upstream network fetches
// (MediaSource URL reads) across every session in the engine. It is a
// simple counting semaphore: Acquire blocks until a slot is free or ctx
// is done, and the returned release function must be called exactly
// once to give the slot back.
//
// Limited to a single engine-wide cap (EngineConfig.ConnectionPoolSize)
// with no per-host accounting, since this engine reads at most one
// source per session rather than fanning a relay out across hosts.
type ConnectionPool struct {
	slots chan struct{}
	size  int
}

// NewConnectionPool creates a ConnectionPool admitting at most size
// concurrent fetches. A non-positive size is treated as unlimited.
func NewConnectionPool(size int) *ConnectionPool {
	if size <= 0 {
		return &ConnectionPool{size: size}
	}
	return &ConnectionPool{slots: make(chan struct{}, size), size: size}
}

// Acquire blocks until a connection slot is available, returning a
// release func to call when the fetch completes. It returns ctx.Err()
// if ctx is done first, wrapped as a ResourceExhaustedError if ctx's
// cancellation was a deadline.
func (p *ConnectionPool) Acquire(ctx context.Context) (func(), error) {
	if p.slots == nil {
		return func() {}, nil
	}
	select {
	case p.slots <- struct{}{}:
		return func() { <-p.slots }, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &mediaerr.ResourceExhaustedError{Resource: "connection_pool", Limit: p.size}
		}
		return nil, ctx.Err()
	}
}

// InUse reports how many slots are currently held.
func (p *ConnectionPool) InUse() int {
	return len(p.slots)
}
