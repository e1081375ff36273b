// Package mediatypes defines the domain value types shared across the
// engine's packages: frames, buffers, source descriptors and the
// engine's configuration surface.
package mediatypes

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// SessionId uniquely identifies a media session for the lifetime of
// the process. It is never persisted and carries no embedded ordering
// information.
type SessionId = uuid.UUID

// NewSessionId generates a fresh, process-unique SessionId.
func NewSessionId() SessionId { return uuid.New() }

// VideoCodec identifies the encoding of a VideoFrame's payload.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
	VideoCodecVP9
	VideoCodecAV1
)

// VideoFrame is one decoded or encoded access unit of video, carried
// through the pipeline from decode to the A/V sync stage.
type VideoFrame struct {
	PresentationTimestamp time.Duration
	Codec                 VideoCodec
	IsKeyframe            bool
	Width                 int
	Height                int
	Data                  []byte

	// Generation ties this frame to the pipeline's seek epoch; frames
	// from a stale generation are dropped rather than displayed.
	Generation uint64
}

// AudioCodec identifies the encoding of an AudioBuffer's payload.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecAAC
	AudioCodecOpus
	AudioCodecPCM
)

// AudioBuffer is one decoded chunk of audio samples.
type AudioBuffer struct {
	PresentationTimestamp time.Duration
	Codec                 AudioCodec
	SampleRate            int
	Channels              int
	Samples               []float32
	Generation            uint64
}

// VideoPacket is one demuxed, still-encoded video access unit handed
// to a VideoDecoder.
type VideoPacket struct {
	Data       []byte
	PTS        time.Duration
	DTS        time.Duration
	IsKeyframe bool
	Codec      VideoCodec
	Generation uint64
}

// AudioPacket is one demuxed, still-encoded audio access unit handed
// to an AudioDecoder.
type AudioPacket struct {
	Data       []byte
	PTS        time.Duration
	Codec      AudioCodec
	Generation uint64
}

// VideoDecoder is the external video-decode capability the pipeline's
// video-decode worker drives. Implementations need not be thread-safe;
// the pipeline holds exclusive access per worker. Real codec bindings
// are a Non-goal — the engine ships only a software pass-through
// implementation (see internal/swdecode).
type VideoDecoder interface {
	Decode(packet VideoPacket) (VideoFrame, error)
	Flush() ([]VideoFrame, error)
}

// AudioDecoder is the external audio-decode capability, symmetric with
// VideoDecoder.
type AudioDecoder interface {
	Decode(packet AudioPacket) (AudioBuffer, error)
	Flush() ([]AudioBuffer, error)
}

// MediaSourceKind discriminates the MediaSource variants a session can
// be loaded with.
type MediaSourceKind int

const (
	// SourceUrl is a network or local URL the demux stub fetches and
	// probes (MPEG-TS by default; see internal/demux).
	SourceUrl MediaSourceKind = iota
	// SourceStream is an already-open byte stream handed to the
	// session directly (e.g. a MediaSource/MediaStream-equivalent).
	SourceStream
	// SourceCaptureDevice is a live capture device, enumerated and
	// opened outside this module (Non-goal: device enumeration).
	SourceCaptureDevice
	// SourceEncryptedUrl is a DRM-protected network source.
	SourceEncryptedUrl
	// SourceBlob is an in-memory encoded media blob.
	SourceBlob
	// SourceMediaSourceExtension represents a caller-fed MSE-style
	// append-buffer source.
	SourceMediaSourceExtension
)

// MediaSource describes where a session's media comes from.
type MediaSource struct {
	Kind MediaSourceKind
	URL  string
	Blob []byte

	// Stream is the caller-supplied byte stream for Kind == SourceStream.
	Stream io.Reader

	// CaptureVideo/CaptureAudio are the caller-supplied pull-streams for
	// Kind == SourceCaptureDevice. The device enumerator and capture
	// driver that feed them are external (Non-goal); the pipeline only
	// relays what arrives on these channels, tagging each item with its
	// current seek generation.
	CaptureVideo <-chan VideoFrame
	CaptureAudio <-chan AudioBuffer

	// DRM fields, used only when Kind == SourceEncryptedUrl.
	KeySystem string
	KeyID     string
}

// PipelineConfig controls a session's pipeline topology and timing.
type PipelineConfig struct {
	InternalQueueDepth int
	WorkerCount        int
	SyncThreshold      time.Duration
	HardwareAccel      bool
}

// DefaultPipelineConfig returns the engine's default pipeline tuning.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		InternalQueueDepth: 32,
		WorkerCount:        4,
		SyncThreshold:      40 * time.Millisecond,
		HardwareAccel:      true,
	}
}

// BufferConfig controls memory accounting and cache sizing for a
// session's buffer stage.
type BufferConfig struct {
	MaxTotalBytes   int64
	RingCapacity    int
	MaxCachedFrames int
}

// DefaultBufferConfig returns the engine's default buffer tuning.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		MaxTotalBytes:   256 * 1024 * 1024,
		RingCapacity:    4 * 1024 * 1024,
		MaxCachedFrames: 128,
	}
}

// EngineConfig is the top-level engine configuration.
type EngineConfig struct {
	MaxConcurrentSessions int
	Pipeline              PipelineConfig
	Buffer                BufferConfig
	JitterBufferCapacity  int

	// ConnectionPoolSize caps the number of concurrent upstream network
	// fetches (MediaSource URL reads) across every session, engine-wide.
	ConnectionPoolSize int
}

// DefaultEngineConfig returns the engine's default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrentSessions: 16,
		Pipeline:              DefaultPipelineConfig(),
		Buffer:                DefaultBufferConfig(),
		JitterBufferCapacity:  512,
		ConnectionPoolSize:    16,
	}
}
