// Package swdecode provides the media engine's default VideoDecoder
// and AudioDecoder implementations. Real codec bindings are a
// Non-goal; these decoders pass demuxed packet payloads straight
// through into frame/buffer envelopes, which is enough to exercise
// the pipeline's decode-to-sync-to-output path end to end without a
// real decode library.
package swdecode

import (
	"encoding/binary"
	"math"

	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
)

// Video is the software fallback VideoDecoder. The pipeline selects it
// for every session, whatever the HardwareContext reports.
type Video struct {
	width, height int
}

// NewVideo creates a Video decoder that stamps decoded frames with the
// given dimensions (as negotiated out of band, e.g. by the demuxer's
// track metadata).
func NewVideo(width, height int) *Video {
	return &Video{width: width, height: height}
}

// Decode converts packet into a frame. Empty packets are a decode
// failure per the decoder capability contract.
func (v *Video) Decode(packet mediatypes.VideoPacket) (mediatypes.VideoFrame, error) {
	if len(packet.Data) == 0 {
		return mediatypes.VideoFrame{}, mediaerr.ErrCodecError
	}
	return mediatypes.VideoFrame{
		PresentationTimestamp: packet.PTS,
		Codec:                 packet.Codec,
		IsKeyframe:            packet.IsKeyframe,
		Width:                 v.width,
		Height:                v.height,
		Data:                  packet.Data,
		Generation:            packet.Generation,
	}, nil
}

// Flush reports no pending frames; this decoder holds no internal
// reorder buffer.
func (v *Video) Flush() ([]mediatypes.VideoFrame, error) { return nil, nil }

// Audio is the software fallback AudioDecoder. It treats packet.Data
// as a sequence of little-endian float32 samples, which is what the
// pipeline's PCM-passthrough sources (captured audio, raw blobs)
// already produce.
type Audio struct {
	sampleRate int
	channels   int
}

// NewAudio creates an Audio decoder for PCM streams at the given
// sample rate and channel count.
func NewAudio(sampleRate, channels int) *Audio {
	return &Audio{sampleRate: sampleRate, channels: channels}
}

// Decode converts packet into a sample buffer.
func (a *Audio) Decode(packet mediatypes.AudioPacket) (mediatypes.AudioBuffer, error) {
	if len(packet.Data) == 0 {
		return mediatypes.AudioBuffer{}, mediaerr.ErrCodecError
	}
	samples := make([]float32, len(packet.Data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(packet.Data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return mediatypes.AudioBuffer{
		PresentationTimestamp: packet.PTS,
		Codec:                 packet.Codec,
		SampleRate:            a.sampleRate,
		Channels:              a.channels,
		Samples:               samples,
		Generation:            packet.Generation,
	}, nil
}

// Flush reports no pending samples.
func (a *Audio) Flush() ([]mediatypes.AudioBuffer, error) { return nil, nil }
