// Package memtrack implements a memory budget tracker. Every
// allocation made through a Tracker is accounted against that
// Tracker's single byte budget; allocations beyond the budget fail
// with mediaerr.ErrOutOfMemory without mutating the counter.
// buffermanager.New creates one Tracker per session, so the budget is
// per session rather than engine-wide, and the pipeline's frame path
// does not allocate through it.
//
// Go has no destructor to hook a "buffer dropped" event, so release is
// explicit: Allocate* returns a Handle whose Release method decrements
// the counter exactly once. Handle.Release is idempotent — a second
// call is a no-op — so callers (eviction paths, error-cleanup defers)
// never need to track whether they already released a handle.
package memtrack

import (
	"log/slog"
	"sync/atomic"
)

// Tracker enforces a fixed byte budget shared by video and audio
// buffer allocation. It is safe for concurrent use.
type Tracker struct {
	maxBytes int64
	used     int64
	log      *slog.Logger
}

// New creates a Tracker with the given maximum byte budget.
func New(maxBytes int64, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{maxBytes: maxBytes, log: log}
}

// Handle represents one tracked allocation. Calling Release frees its
// bytes back to the tracker's budget.
type Handle struct {
	tracker  *Tracker
	size     int64
	released atomic.Bool
}

// Size returns the number of bytes this handle accounts for.
func (h *Handle) Size() int64 { return h.size }

// Release returns this allocation's bytes to the tracker's budget. It
// is safe to call more than once; only the first call has effect.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	atomic.AddInt64(&h.tracker.used, -h.size)
}

// Used returns the number of bytes currently accounted as allocated.
func (t *Tracker) Used() int64 {
	return atomic.LoadInt64(&t.used)
}

// Budget returns the tracker's total byte budget.
func (t *Tracker) Budget() int64 {
	return t.maxBytes
}

// allocate is the shared accounting path for both buffer kinds.
func (t *Tracker) allocate(size int64) (*Handle, error) {
	for {
		current := atomic.LoadInt64(&t.used)
		if current+size > t.maxBytes {
			return nil, errOutOfMemory(t, current, size)
		}
		if atomic.CompareAndSwapInt64(&t.used, current, current+size) {
			return &Handle{tracker: t, size: size}, nil
		}
	}
}

// AllocateVideo accounts sizeBytes against the budget for a video
// frame buffer.
func (t *Tracker) AllocateVideo(sizeBytes int64) (*Handle, error) {
	return t.allocate(sizeBytes)
}

// AllocateAudio accounts the byte size of sampleCount float32 samples
// against the budget for an audio sample buffer.
func (t *Tracker) AllocateAudio(sampleCount int64) (*Handle, error) {
	const bytesPerSample = 4 // float32
	return t.allocate(sampleCount * bytesPerSample)
}
