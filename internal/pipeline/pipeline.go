// Package pipeline implements the per-session worker topology that
// carries bytes from a MediaSource through demux and decode into the
// output queues the engine facade polls: source worker -> ring buffer
// -> demux worker -> decoder-input queues -> decode workers -> output
// queues. Real transport, container parsing beyond a default MPEG-TS
// path, and real codec bindings are Non-goals (see internal/demux,
// internal/swdecode); this package owns the orchestration and
// cancellation around whatever adapters are plugged in.
//
// Each stage runs as its own goroutine (start/runPipeline-style
// spawn), wired into a four-worker topology (source, demux, video
// decode, audio decode) with a seek-driven generation counter so
// frames produced before the most recent seek are dropped rather than
// delivered stale.
package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corten/mediaengine/internal/avsync"
	"github.com/corten/mediaengine/internal/buffermanager"
	"github.com/corten/mediaengine/internal/demux"
	"github.com/corten/mediaengine/internal/hwcontext"
	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
	"github.com/corten/mediaengine/internal/realtime"
	"github.com/corten/mediaengine/internal/sourceio"
	"github.com/corten/mediaengine/internal/swdecode"
	"golang.org/x/sync/errgroup"
)

// captureRelayJitterCapacity bounds the RTP reordering window each
// live-capture stream's realtime.Relay tolerates before rejecting
// further packets.
const captureRelayJitterCapacity = 64

// State is the pipeline's internal lifecycle, distinct from (but
// driven in lockstep with) the session's user-visible sessionstate.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// sourceReadRetries bounds the source worker's internal retry policy
// for a single chunk read before it gives up and surfaces NetworkError
// to the session.
const sourceReadRetries = 3

// Non-fatal decode/parse failures are counted rather than returned:
// workers increment the atomic droppedPackets/droppedFrames fields,
// read through DroppedPackets and DroppedFrames, matching the spec's
// "drop + increment a counter" recovery policy.

// Pipeline is one session's source -> demux -> decode -> sync worker
// graph.
type Pipeline struct {
	config mediatypes.PipelineConfig
	hw     hwcontext.Context
	log    *slog.Logger

	buffers    *buffermanager.Manager
	breakers   *sourceio.Registry
	connPool   *sourceio.ConnectionPool
	generation atomic.Uint64

	mu     sync.RWMutex
	state  State
	source mediatypes.MediaSource

	cancel context.CancelFunc
	eg     *errgroup.Group
	done   chan struct{}

	videoPackets chan mediatypes.VideoPacket
	audioPackets chan mediatypes.AudioPacket
	ringReader   *managerRingReader

	lastErr error

	droppedPackets atomic.Uint64
	droppedFrames  atomic.Uint64

	sync *avsync.Controller
}

// DroppedPackets reports how many demux packets have been discarded
// after a post-keyframe parse error, for diagnostics/metrics.
func (p *Pipeline) DroppedPackets() uint64 { return p.droppedPackets.Load() }

// DroppedFrames reports how many video frames the A/V sync controller
// has dropped for falling too far behind the audio clock.
func (p *Pipeline) DroppedFrames() uint64 { return p.droppedFrames.Load() }

// New creates a Pipeline in the Idle state.
func New(config mediatypes.PipelineConfig, buffers *buffermanager.Manager, hw hwcontext.Context, breakers *sourceio.Registry, connPool *sourceio.ConnectionPool, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if hw == nil {
		hw = hwcontext.SoftwareOnly{}
	}
	if connPool == nil {
		connPool = sourceio.NewConnectionPool(0)
	}
	return &Pipeline{
		config:   config,
		hw:       hw,
		log:      log,
		buffers:  buffers,
		breakers: breakers,
		connPool: connPool,
		state:    StateIdle,
		sync:     avsync.New(config.SyncThreshold),
	}
}

// State returns the pipeline's current internal state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Generation returns the pipeline's current seek epoch. Output
// consumed via PopMinGeneration with this value never returns a frame
// produced before the most recent Seek.
func (p *Pipeline) Generation() uint64 { return p.generation.Load() }

// LoadSource stores src and becomes Ready. Legal only from Idle or
// Stopped.
func (p *Pipeline) LoadSource(src mediatypes.MediaSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle && p.state != StateStopped {
		return &mediaerr.InvalidStateTransitionError{From: p.state.String(), To: "ready"}
	}
	p.state = StateLoading
	p.source = src
	p.state = StateReady
	return nil
}

// Start spawns the worker topology and becomes Running. Legal only
// from Ready. ctx bounds the pipeline's lifetime; canceling it (or
// calling Stop) tears every worker down cooperatively.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateReady {
		p.mu.Unlock()
		return &mediaerr.InvalidStateTransitionError{From: p.state.String(), To: "running"}
	}
	src := p.source
	p.state = StateRunning
	p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(runCtx)
	p.cancel = cancel
	p.eg = eg
	p.done = make(chan struct{})

	kind := demux.Classify(src)

	if kind == demux.KindLive {
		p.spawnCaptureRelay(eg, egCtx, src)
	} else {
		p.videoPackets = make(chan mediatypes.VideoPacket, p.config.InternalQueueDepth)
		p.audioPackets = make(chan mediatypes.AudioPacket, p.config.InternalQueueDepth)
		p.spawnDemuxPipeline(eg, egCtx, src)
	}

	go func() {
		err := eg.Wait()
		p.mu.Lock()
		if err != nil && !errors.Is(err, context.Canceled) {
			p.lastErr = err
			p.state = StateStopped
		}
		p.mu.Unlock()
		close(p.done)
	}()

	return nil
}

// spawnDemuxPipeline wires the source, demux, video-decode and
// audio-decode workers together for a container/raw source.
func (p *Pipeline) spawnDemuxPipeline(eg *errgroup.Group, ctx context.Context, src mediatypes.MediaSource) {
	p.ringReader = &managerRingReader{ctx: ctx, mgr: p.buffers}

	eg.Go(func() error { return p.runSourceWorker(ctx, src) })
	eg.Go(func() error { return p.runDemuxWorker(ctx, src) })
	eg.Go(func() error { return p.runVideoDecodeWorker(ctx) })
	eg.Go(func() error { return p.runAudioDecodeWorker(ctx) })
}

// spawnCaptureRelay wires a capture device's pull-streams into the
// output queues, bypassing demux/decode entirely per the spec's
// live-capture contract. Each captured access unit is still carried
// through the real-time RTP packetize/jitter-buffer path
// (internal/realtime) the way a live source's encoder and network
// egress would on an actual WebRTC-style transport, even though no
// real network sits in between here.
func (p *Pipeline) spawnCaptureRelay(eg *errgroup.Group, ctx context.Context, src mediatypes.MediaSource) {
	videoRelay := realtime.New(captureRelayJitterCapacity)
	audioRelay := realtime.New(captureRelayJitterCapacity)

	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame, ok := <-src.CaptureVideo:
				if !ok {
					return nil
				}
				relayed, err := videoRelay.Forward(frame.Data, durationToTicks90k(frame.PresentationTimestamp))
				if err != nil {
					stats := videoRelay.Stats()
					p.log.WarnContext(ctx, "capture video frame dropped by realtime relay",
						slog.Any("error", err), slog.Uint64("total_lost", uint64(stats.TotalLost)),
						slog.Uint64("fraction_lost", uint64(stats.FractionLost)))
					continue
				}
				frame.Data = relayed
				frame.Generation = p.generation.Load()
				p.pushVideo(frame)
			case buf, ok := <-src.CaptureAudio:
				if !ok {
					return nil
				}
				relayed, err := audioRelay.Forward(float32SamplesToBytes(buf.Samples), durationToTicks90k(buf.PresentationTimestamp))
				if err != nil {
					stats := audioRelay.Stats()
					p.log.WarnContext(ctx, "capture audio buffer dropped by realtime relay",
						slog.Any("error", err), slog.Uint64("total_lost", uint64(stats.TotalLost)),
						slog.Uint64("fraction_lost", uint64(stats.FractionLost)))
					continue
				}
				buf.Samples = bytesToFloat32Samples(relayed)
				buf.Generation = p.generation.Load()
				p.pushAudio(buf)
			}
		}
	})
}

// runSourceWorker reads bytes from src and writes them into the
// session's ring buffer, retrying transient NetworkErrors through a
// per-source circuit breaker before giving up. A network-backed source
// (SourceUrl/SourceEncryptedUrl) also holds an engine-wide connection
// pool slot for the worker's lifetime, capping how many upstream
// fetches run concurrently across every session.
func (p *Pipeline) runSourceWorker(ctx context.Context, src mediatypes.MediaSource) error {
	if src.Kind == mediatypes.SourceUrl || src.Kind == mediatypes.SourceEncryptedUrl {
		release, err := p.connPool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()
	}

	reader, err := newSourceReader(src)
	if err != nil {
		return err
	}
	defer reader.Close()
	if p.ringReader != nil {
		defer p.ringReader.markDone()
	}

	breaker := p.breakers.Get(src.URL)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var chunk []byte
		readErr := breaker.Execute(ctx, func(context.Context) error {
			var attemptErr error
			for attempt := 0; attempt < sourceReadRetries; attempt++ {
				chunk, attemptErr = reader.Read()
				if attemptErr == nil || errors.Is(attemptErr, io.EOF) {
					return nil
				}
				if !errors.Is(attemptErr, mediaerr.ErrNetworkError) {
					return attemptErr
				}
			}
			return fmt.Errorf("%w: exhausted retries", attemptErr)
		})

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
		if len(chunk) == 0 {
			return nil
		}

		for written := 0; written < len(chunk); {
			n, werr := p.buffers.WriteSourceBytes(chunk[written:])
			if werr != nil && !errors.Is(werr, mediaerr.ErrBufferFull) {
				return werr
			}
			written += n
			if n == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(ringIOPollInterval):
				}
			}
		}
	}
}

// runDemuxWorker consumes the ring buffer and fans demuxed samples out
// as VideoPacket/AudioPacket onto the decoder-input channels.
func (p *Pipeline) runDemuxWorker(ctx context.Context, src mediatypes.MediaSource) error {
	kind := demux.Classify(src)
	if kind == demux.KindRaw {
		return p.runRawDemux(ctx, src)
	}

	demuxer, err := demux.NewMPEGTSDemuxer(p.ringReader, p.log)
	if err != nil {
		return err
	}

	sawKeyframe := false
	demuxer.OnSample(func(s demux.Sample) {
		if s.IsKeyframe {
			sawKeyframe = true
		}
		select {
		case p.videoPackets <- mediatypes.VideoPacket{
			Data:       s.Data,
			PTS:        ticks90kToDuration(s.PTS),
			DTS:        ticks90kToDuration(s.DTS),
			IsKeyframe: s.IsKeyframe,
			Generation: p.generation.Load(),
		}:
		case <-ctx.Done():
		}
	}, func(s demux.Sample) {
		select {
		case p.audioPackets <- mediatypes.AudioPacket{
			Data:       s.Data,
			PTS:        ticks90kToDuration(s.PTS),
			Generation: p.generation.Load(),
		}:
		case <-ctx.Done():
		}
	})

	for {
		select {
		case <-ctx.Done():
			close(p.videoPackets)
			close(p.audioPackets)
			return ctx.Err()
		default:
		}

		if err := demuxer.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				close(p.videoPackets)
				close(p.audioPackets)
				return nil
			}
			if !sawKeyframe {
				close(p.videoPackets)
				close(p.audioPackets)
				return fmt.Errorf("%w: demux failed before first keyframe: %v", mediaerr.ErrCodecError, err)
			}
			p.droppedPackets.Add(1)
			p.log.WarnContext(ctx, "demux packet dropped after first keyframe",
				slog.Any("error", err), slog.Uint64("dropped_total", p.droppedPackets.Load()))
			continue
		}
	}
}

// runRawDemux treats the ring buffer's bytes as a single already-
// elementary video stream, used for SourceStream/MSE sources that
// skip container demuxing.
func (p *Pipeline) runRawDemux(ctx context.Context, src mediatypes.MediaSource) error {
	defer close(p.videoPackets)
	defer close(p.audioPackets)

	buf := make([]byte, sourceReadChunk)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := p.buffers.ReadSourceBytes(buf)
		if err != nil {
			if errors.Is(err, mediaerr.ErrBufferEmpty) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(ringIOPollInterval):
					continue
				}
			}
			return err
		}
		pkt := mediatypes.VideoPacket{
			Data:       append([]byte(nil), buf[:n]...),
			IsKeyframe: true,
			Generation: p.generation.Load(),
		}
		select {
		case p.videoPackets <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runVideoDecodeWorker pulls packets, decodes them, and applies
// back-pressure against the output video queue.
func (p *Pipeline) runVideoDecodeWorker(ctx context.Context) error {
	decoder := p.selectVideoDecoder()
	for {
		select {
		case pkt, ok := <-p.videoPackets:
			if !ok {
				return nil
			}
			frame, err := decoder.Decode(pkt)
			if err != nil {
				if pkt.IsKeyframe {
					return fmt.Errorf("%w: keyframe decode failed", mediaerr.ErrCodecError)
				}
				p.log.WarnContext(ctx, "video packet dropped", slog.Any("error", err))
				continue
			}
			if err := p.waitForQueueSpace(ctx, p.buffers.VideoQueue); err != nil {
				return err
			}
			p.pushVideo(frame)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runAudioDecodeWorker is symmetric with runVideoDecodeWorker.
func (p *Pipeline) runAudioDecodeWorker(ctx context.Context) error {
	decoder := p.selectAudioDecoder()
	for {
		select {
		case pkt, ok := <-p.audioPackets:
			if !ok {
				return nil
			}
			buf, err := decoder.Decode(pkt)
			if err != nil {
				p.log.WarnContext(ctx, "audio packet dropped", slog.Any("error", err))
				continue
			}
			if err := p.waitForQueueSpace(ctx, p.buffers.AudioQueue); err != nil {
				return err
			}
			p.pushAudio(buf)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type queueLen interface{ Len() int }

// waitForQueueSpace blocks the calling decode worker while q is full,
// implementing the spec's "video-decode worker suspends until
// next_video_frame drains it" back-pressure rule.
func (p *Pipeline) waitForQueueSpace(ctx context.Context, q interface {
	queueLen
	Wait(time.Duration)
	Cap() int
}) error {
	for q.Len() >= q.Cap() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		q.Wait(ringIOPollInterval)
	}
	return nil
}

// pushVideo hands frame to the A/V sync controller before queuing it:
// a frame that has drifted too far behind the audio clock is dropped
// rather than displayed late, and one that is ahead is held for its
// computed delay first.
func (p *Pipeline) pushVideo(frame mediatypes.VideoFrame) {
	result := p.sync.SyncFrame(frame.PresentationTimestamp)
	switch result.Decision {
	case avsync.Drop:
		p.droppedFrames.Add(1)
		return
	case avsync.Wait:
		time.Sleep(result.Delay)
	}
	p.buffers.VideoQueue.Push(frame, frame.Generation)
}

func (p *Pipeline) pushAudio(buf mediatypes.AudioBuffer) {
	p.sync.UpdateClock(buf.PresentationTimestamp)
	p.buffers.AudioQueue.Push(buf, buf.Generation)
}

// selectVideoDecoder always returns the software decoder, since no
// hardware backend is wired in. When the config requests hardware
// acceleration and the hardware context reports H.264 support, it only
// logs that the software decoder is used instead.
func (p *Pipeline) selectVideoDecoder() mediatypes.VideoDecoder {
	if p.config.HardwareAccel && p.hw.SupportsCodec(mediatypes.VideoCodecH264) {
		p.log.Debug("hardware video decode requested but no hardware backend is wired in; using software decoder")
	}
	return swdecode.NewVideo(0, 0)
}

func (p *Pipeline) selectAudioDecoder() mediatypes.AudioDecoder {
	return swdecode.NewAudio(48000, 2)
}

// Stop cancels all workers cooperatively and becomes Stopped. Legal
// only from Running.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return &mediaerr.InvalidStateTransitionError{From: p.state.String(), To: "stopped"}
	}
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
	return nil
}

// Seek bumps the pipeline's generation so in-flight and queued frames
// from before the seek are dropped by PopMinGeneration, and clears the
// frame cache's now-unreachable entries. Legal in Running or Ready.
func (p *Pipeline) Seek(position time.Duration) error {
	p.mu.RLock()
	state := p.state
	p.mu.RUnlock()
	if state != StateRunning && state != StateReady {
		return &mediaerr.InvalidStateTransitionError{From: state.String(), To: "seeking"}
	}
	p.generation.Add(1)
	p.buffers.EvictCacheBefore(position)
	p.sync.Reset()
	return nil
}

// NextVideoFrame is a non-blocking pull of the next in-epoch video
// frame.
func (p *Pipeline) NextVideoFrame() (mediatypes.VideoFrame, bool) {
	return p.buffers.VideoQueue.PopMinGeneration(p.generation.Load())
}

// NextAudioBuffer is a non-blocking pull of the next in-epoch audio
// buffer.
func (p *Pipeline) NextAudioBuffer() (mediatypes.AudioBuffer, bool) {
	return p.buffers.AudioQueue.PopMinGeneration(p.generation.Load())
}

// LastError returns the error that stopped the pipeline, if any.
func (p *Pipeline) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// ticks90kToDuration converts an MPEG-TS 90kHz presentation timestamp
// to a time.Duration.
func ticks90kToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * time.Second / 90000
}

// durationToTicks90k converts a time.Duration to a 90kHz RTP
// timestamp, wrapping at 2^32 the way the wire format requires.
func durationToTicks90k(d time.Duration) uint32 {
	return uint32(d * 90000 / time.Second)
}

// float32SamplesToBytes encodes samples as little-endian float32
// bytes, the wire layout internal/swdecode's software audio decoder
// also assumes.
func float32SamplesToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

// bytesToFloat32Samples is the inverse of float32SamplesToBytes. Any
// trailing bytes short of a full float32 are discarded.
func bytesToFloat32Samples(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
