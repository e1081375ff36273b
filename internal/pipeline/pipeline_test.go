package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corten/mediaengine/internal/buffermanager"
	"github.com/corten/mediaengine/internal/hwcontext"
	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
	"github.com/corten/mediaengine/internal/sourceio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestPipeline() (*Pipeline, *buffermanager.Manager) {
	return newTestPipelineWithPool(sourceio.NewConnectionPool(4))
}

func newTestPipelineWithPool(pool *sourceio.ConnectionPool) (*Pipeline, *buffermanager.Manager) {
	bufCfg := mediatypes.BufferConfig{MaxTotalBytes: 16 * 1024 * 1024, RingCapacity: 64 * 1024, MaxCachedFrames: 16}
	mgr := buffermanager.New(bufCfg, 8, nil)
	pCfg := mediatypes.PipelineConfig{InternalQueueDepth: 8, WorkerCount: 4, SyncThreshold: 40 * time.Millisecond}
	return New(pCfg, mgr, hwcontext.SoftwareOnly{}, sourceio.NewRegistry(sourceio.DefaultConfig()), pool, nil), mgr
}

func pollVideoFrame(t *testing.T, p *Pipeline, timeout time.Duration) mediatypes.VideoFrame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if frame, ok := p.NextVideoFrame(); ok {
			return frame
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for video frame")
	return mediatypes.VideoFrame{}
}

func TestPipelineStartRequiresReady(t *testing.T) {
	p, _ := newTestPipeline()
	err := p.Start(context.Background())
	var stateErr *mediaerr.InvalidStateTransitionError
	require.ErrorAs(t, err, &stateErr)
}

func TestPipelineLoadSourceRequiresIdleOrStopped(t *testing.T) {
	p, _ := newTestPipeline()
	require.NoError(t, p.LoadSource(mediatypes.MediaSource{Kind: mediatypes.SourceStream, Stream: bytes.NewReader(nil)}))
	assert.Equal(t, StateReady, p.State())

	err := p.LoadSource(mediatypes.MediaSource{Kind: mediatypes.SourceStream})
	var stateErr *mediaerr.InvalidStateTransitionError
	require.ErrorAs(t, err, &stateErr)
}

func TestPipelineRawStreamDeliversVideoFrames(t *testing.T) {
	p, _ := newTestPipeline()
	payload := []byte("elementary-stream-payload")
	src := mediatypes.MediaSource{Kind: mediatypes.SourceStream, Stream: bytes.NewReader(payload)}

	require.NoError(t, p.LoadSource(src))
	require.NoError(t, p.Start(context.Background()))

	frame := pollVideoFrame(t, p, time.Second)
	assert.Equal(t, payload, frame.Data)
	assert.True(t, frame.IsKeyframe)

	require.NoError(t, p.Stop())
	assert.Equal(t, StateStopped, p.State())
}

func TestPipelineCaptureRelayBypassesDemux(t *testing.T) {
	videoCh := make(chan mediatypes.VideoFrame, 1)
	audioCh := make(chan mediatypes.AudioBuffer, 1)
	src := mediatypes.MediaSource{Kind: mediatypes.SourceCaptureDevice, CaptureVideo: videoCh, CaptureAudio: audioCh}

	p, _ := newTestPipeline()
	require.NoError(t, p.LoadSource(src))
	require.NoError(t, p.Start(context.Background()))

	videoCh <- mediatypes.VideoFrame{Data: []byte{1, 2, 3}, Width: 640, Height: 480}
	frame := pollVideoFrame(t, p, time.Second)
	assert.Equal(t, []byte{1, 2, 3}, frame.Data)

	require.NoError(t, p.Stop())
}

func TestPipelineSeekBumpsGenerationAndDropsStaleFrames(t *testing.T) {
	p, mgr := newTestPipeline()
	require.NoError(t, p.LoadSource(mediatypes.MediaSource{Kind: mediatypes.SourceStream, Stream: bytes.NewReader(nil)}))
	require.NoError(t, p.Start(context.Background()))

	mgr.VideoQueue.Push(mediatypes.VideoFrame{Data: []byte("stale"), Generation: 0}, 0)
	require.NoError(t, p.Seek(5*time.Second))
	mgr.VideoQueue.Push(mediatypes.VideoFrame{Data: []byte("fresh"), Generation: p.Generation()}, p.Generation())

	frame := pollVideoFrame(t, p, time.Second)
	assert.Equal(t, []byte("fresh"), frame.Data)

	require.NoError(t, p.Stop())
}

func TestPipelineSeekRequiresReadyOrRunning(t *testing.T) {
	p, _ := newTestPipeline()
	err := p.Seek(time.Second)
	var stateErr *mediaerr.InvalidStateTransitionError
	require.ErrorAs(t, err, &stateErr)
}

func TestPipelineHTTPSourceSurfacesNetworkError(t *testing.T) {
	p, _ := newTestPipeline()
	require.NoError(t, p.LoadSource(mediatypes.MediaSource{Kind: mediatypes.SourceUrl, URL: "http://example.invalid/stream.ts"}))
	require.NoError(t, p.Start(context.Background()))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.State() == StateStopped {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, StateStopped, p.State())
	require.Error(t, p.LastError())
	assert.True(t, errors.Is(p.LastError(), mediaerr.ErrNetworkError))
}

func TestPipelineUrlSourceHoldsConnectionPoolSlot(t *testing.T) {
	pool := sourceio.NewConnectionPool(1)
	release, err := pool.Acquire(context.Background())
	require.NoError(t, err) // simulate another session's in-flight fetch holding the engine's only slot

	p, _ := newTestPipelineWithPool(pool)
	require.NoError(t, p.LoadSource(mediatypes.MediaSource{Kind: mediatypes.SourceUrl, URL: "http://example.invalid/stream.ts"}))
	require.NoError(t, p.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateRunning, p.State(), "worker should block waiting for a free connection pool slot")

	release()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.State() == StateStopped {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, StateStopped, p.State())
	assert.True(t, errors.Is(p.LastError(), mediaerr.ErrNetworkError))
}

func TestPipelineStopRequiresRunning(t *testing.T) {
	p, _ := newTestPipeline()
	err := p.Stop()
	var stateErr *mediaerr.InvalidStateTransitionError
	require.ErrorAs(t, err, &stateErr)
}

func TestPipelinePushVideoDropsFramesFarBehindAudioClock(t *testing.T) {
	p, mgr := newTestPipeline()

	p.pushAudio(mediatypes.AudioBuffer{PresentationTimestamp: 500 * time.Millisecond})
	p.pushVideo(mediatypes.VideoFrame{Data: []byte("late"), PresentationTimestamp: 100 * time.Millisecond})

	assert.Equal(t, uint64(1), p.DroppedFrames())
	assert.Equal(t, 0, mgr.VideoQueue.Len())
}

func TestPipelinePushVideoDisplaysFrameWithinThreshold(t *testing.T) {
	p, mgr := newTestPipeline()

	p.pushAudio(mediatypes.AudioBuffer{PresentationTimestamp: 100 * time.Millisecond})
	p.pushVideo(mediatypes.VideoFrame{Data: []byte("on-time"), PresentationTimestamp: 110 * time.Millisecond})

	assert.Equal(t, uint64(0), p.DroppedFrames())
	assert.Equal(t, 1, mgr.VideoQueue.Len())
}

func TestPipelineSeekResetsSyncClock(t *testing.T) {
	p, _ := newTestPipeline()
	require.NoError(t, p.LoadSource(mediatypes.MediaSource{Kind: mediatypes.SourceStream, Stream: bytes.NewReader(nil)}))
	require.NoError(t, p.Start(context.Background()))

	p.pushAudio(mediatypes.AudioBuffer{PresentationTimestamp: 10 * time.Second})
	require.NoError(t, p.Seek(time.Second))

	// After a seek the clock should be back near zero, so a frame from
	// early in the stream is displayed rather than dropped as stale.
	p.pushVideo(mediatypes.VideoFrame{Data: []byte("post-seek"), PresentationTimestamp: 0})
	assert.Equal(t, uint64(0), p.DroppedFrames())

	require.NoError(t, p.Stop())
}

func TestPipelineStartStopLeavesNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p, _ := newTestPipeline()
	payload := []byte("elementary-stream-payload")
	require.NoError(t, p.LoadSource(mediatypes.MediaSource{Kind: mediatypes.SourceStream, Stream: bytes.NewReader(payload)}))
	require.NoError(t, p.Start(context.Background()))

	pollVideoFrame(t, p, time.Second)

	require.NoError(t, p.Stop())
}
