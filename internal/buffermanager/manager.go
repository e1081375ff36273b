package buffermanager

import (
	"log/slog"
	"time"

	"github.com/corten/mediaengine/internal/framecache"
	"github.com/corten/mediaengine/internal/mediatypes"
	"github.com/corten/mediaengine/internal/memtrack"
	"github.com/corten/mediaengine/internal/ringbuffer"
)

// Manager is a session's buffer stage: it accounts memory for the
// video/audio allocations made through AllocateVideoFrame and
// AllocateAudioBuffer (the pipeline calls neither), caches video frames for
// random-access redisplay, and holds a raw-byte ring buffer for the
// demuxer's read-ahead window.
type Manager struct {
	tracker *memtrack.Tracker
	cache   *framecache.Cache
	ring    *ringbuffer.Ring

	VideoQueue *Queue[mediatypes.VideoFrame]
	AudioQueue *Queue[mediatypes.AudioBuffer]
}

// New creates a Manager sized per cfg.
func New(cfg mediatypes.BufferConfig, queueDepth int, log *slog.Logger) *Manager {
	return &Manager{
		tracker:    memtrack.New(cfg.MaxTotalBytes, log),
		cache:      framecache.New(cfg.MaxCachedFrames),
		ring:       ringbuffer.New(cfg.RingCapacity),
		VideoQueue: NewQueue[mediatypes.VideoFrame](queueDepth),
		AudioQueue: NewQueue[mediatypes.AudioBuffer](queueDepth),
	}
}

// AllocateVideoFrame accounts frame's payload size against the memory
// budget and returns a handle to release it once the frame is
// consumed or evicted.
func (m *Manager) AllocateVideoFrame(frame mediatypes.VideoFrame) (*memtrack.Handle, error) {
	return m.tracker.AllocateVideo(int64(len(frame.Data)))
}

// AllocateAudioBuffer accounts buf's sample count against the memory
// budget.
func (m *Manager) AllocateAudioBuffer(buf mediatypes.AudioBuffer) (*memtrack.Handle, error) {
	return m.tracker.AllocateAudio(int64(len(buf.Samples)))
}

// MemoryUsed returns the buffer stage's current tracked memory usage.
func (m *Manager) MemoryUsed() int64 { return m.tracker.Used() }

// CacheFrame stores frame in the LRU cache for random-access redisplay
// (e.g. repeated GetVideoFrame calls without a new decode).
func (m *Manager) CacheFrame(frame mediatypes.VideoFrame) error {
	return m.cache.Insert(frame.PresentationTimestamp, frame)
}

// CachedFrame retrieves a previously cached frame by timestamp.
func (m *Manager) CachedFrame(ts time.Duration) (mediatypes.VideoFrame, bool) {
	v, ok := m.cache.Get(ts)
	if !ok {
		return mediatypes.VideoFrame{}, false
	}
	return v.(mediatypes.VideoFrame), true
}

// EvictCacheBefore drops cached frames older than ts, e.g. after a
// forward seek makes them unreachable.
func (m *Manager) EvictCacheBefore(ts time.Duration) int {
	return m.cache.EvictBefore(ts)
}

// WriteSourceBytes appends raw bytes read from the source adapter into
// the read-ahead ring buffer.
func (m *Manager) WriteSourceBytes(data []byte) (int, error) {
	return m.ring.Write(data)
}

// ReadSourceBytes drains bytes from the read-ahead ring buffer for the
// demuxer.
func (m *Manager) ReadSourceBytes(dst []byte) (int, error) {
	return m.ring.Read(dst)
}

// SourceBufferAvailable returns the number of unread bytes held in the
// read-ahead ring buffer.
func (m *Manager) SourceBufferAvailable() int { return m.ring.Available() }
