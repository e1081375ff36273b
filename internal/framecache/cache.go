// Package framecache implements an LRU video-frame cache keyed by
// presentation timestamp. "Least recently used" is tracked by a
// monotonically increasing access counter rather than a linked list,
// matching the reference implementation this module is ported from.
package framecache

import (
	"sync"
	"time"

	"github.com/corten/mediaengine/internal/mediaerr"
)

type entry struct {
	frame       any
	accessCount uint64
}

// Cache is an LRU cache of opaque frame values keyed by presentation
// timestamp. It is safe for concurrent use.
type Cache struct {
	mu            sync.Mutex
	frames        map[time.Duration]*entry
	maxFrames     int
	accessCounter uint64
}

// New creates a Cache that holds at most maxFrames entries.
func New(maxFrames int) *Cache {
	return &Cache{
		frames:    make(map[time.Duration]*entry),
		maxFrames: maxFrames,
	}
}

// Insert stores frame under ts, evicting the least-recently-accessed
// entry if the cache is full and ts is a new key. Insert returns
// mediaerr.ErrOutOfMemory if maxFrames is zero.
func (c *Cache) Insert(ts time.Duration, frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxFrames == 0 {
		return mediaerr.ErrOutOfMemory
	}

	if e, ok := c.frames[ts]; ok {
		e.frame = frame
		c.accessCounter++
		e.accessCount = c.accessCounter
		return nil
	}

	if len(c.frames) >= c.maxFrames {
		var lruKey time.Duration
		var lruAccess uint64
		first := true
		for k, e := range c.frames {
			if first || e.accessCount < lruAccess {
				lruKey = k
				lruAccess = e.accessCount
				first = false
			}
		}
		delete(c.frames, lruKey)
	}

	c.accessCounter++
	c.frames[ts] = &entry{frame: frame, accessCount: c.accessCounter}
	return nil
}

// Get retrieves the frame at ts, bumping its recency. The second
// return value is false if ts is not cached.
func (c *Cache) Get(ts time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.frames[ts]
	if !ok {
		return nil, false
	}
	c.accessCounter++
	e.accessCount = c.accessCounter
	return e.frame, true
}

// EvictBefore removes every entry whose timestamp is strictly less
// than ts and returns the number of entries removed.
func (c *Cache) EvictBefore(ts time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.frames {
		if k < ts {
			delete(c.frames, k)
			removed++
		}
	}
	return removed
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}
