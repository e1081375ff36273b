package demux

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/corten/mediaengine/internal/mediaerr"
)

// MPEGTSDemuxer is the engine's default software demuxer for
// SourceUrl/SourceBlob container sources. It wraps mediacommon's
// mpegts.Reader and fans video/audio access units out as Samples.
type MPEGTSDemuxer struct {
	log    *slog.Logger
	reader *mpegts.Reader

	videoTrack *mpegts.Track
	audioTrack *mpegts.Track
}

// NewMPEGTSDemuxer creates a demuxer reading from r. It probes the
// stream's PAT/PMT to locate the video and audio tracks before
// returning.
func NewMPEGTSDemuxer(r io.Reader, log *slog.Logger) (*MPEGTSDemuxer, error) {
	if log == nil {
		log = slog.Default()
	}
	reader, err := mpegts.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("demux: probing mpeg-ts stream: %w: %w", mediaerr.ErrUnsupportedFormat, err)
	}

	d := &MPEGTSDemuxer{log: log, reader: reader}
	for _, track := range reader.Tracks() {
		switch track.Codec.(type) {
		case *mpegts.CodecH264, *mpegts.CodecH265:
			d.videoTrack = track
		case *mpegts.CodecMPEG4Audio, *mpegts.CodecAC3:
			d.audioTrack = track
		}
	}
	return d, nil
}

// OnSample registers onVideo/onAudio callbacks for demuxed access
// units. It does not read: each Read call pumps the reader and fires
// whichever callbacks its data completes.
func (d *MPEGTSDemuxer) OnSample(onVideo, onAudio func(Sample)) {
	if d.videoTrack != nil {
		_, isH265 := d.videoTrack.Codec.(*mpegts.CodecH265)
		d.reader.OnDataH26x(d.videoTrack, func(pts, dts int64, au [][]byte) error {
			for _, nalu := range au {
				keyframe := isKeyframeNALU(nalu)
				if isH265 && len(nalu) > 0 {
					// H.265 IRAP pictures (BLA, IDR, CRA) are NAL unit types 16-21.
					typ := (nalu[0] >> 1) & 0x3F
					keyframe = typ >= 16 && typ <= 21
				}
				onVideo(Sample{
					PTS:        pts,
					DTS:        dts,
					Data:       nalu,
					IsVideo:    true,
					IsKeyframe: keyframe,
				})
			}
			return nil
		})
	}
	if d.audioTrack != nil {
		d.reader.OnDataMPEG4Audio(d.audioTrack, func(pts int64, aus [][]byte) error {
			for _, au := range aus {
				onAudio(Sample{PTS: pts, Data: au})
			}
			return nil
		})
	}
}

// Read pumps one unit of work through the underlying mpegts.Reader,
// invoking whichever OnSample callbacks fire as a result. It returns
// io.EOF when the source is exhausted.
func (d *MPEGTSDemuxer) Read() error {
	return d.reader.Read()
}

// isKeyframeNALU reports whether nalu is an H.264 IDR NAL unit,
// consulting mediacommon's NAL unit type helper. For H.265 tracks
// OnSample applies the H.265 IRAP rule instead.
func isKeyframeNALU(nalu []byte) bool {
	if len(nalu) == 0 {
		return false
	}
	return h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeIDR
}
