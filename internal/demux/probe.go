package demux

import (
	"context"
	"fmt"
	"io"

	"github.com/asticode/go-astits"
	"github.com/corten/mediaengine/internal/mediaerr"
)

// ProbeResult summarizes what go-astits found while scanning a
// transport stream's program map, used as the fallback probe path
// when mediacommon's reader can't identify a track's codec (e.g. an
// audio codec mediacommon doesn't natively classify).
type ProbeResult struct {
	ProgramCount int
	StreamTypes  []astits.StreamType
}

// Probe scans r for PAT/PMT tables describing the stream's programs,
// without decoding payload. It reads until it has seen at least one
// PMT or the source is exhausted.
func Probe(ctx context.Context, r io.Reader) (ProbeResult, error) {
	dmx := astits.NewDemuxer(ctx, r)

	var result ProbeResult
	for {
		data, err := dmx.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets || err == io.EOF {
				break
			}
			return result, fmt.Errorf("demux: astits probe: %w: %w", mediaerr.ErrUnsupportedFormat, err)
		}
		if data.PMT != nil {
			result.ProgramCount++
			for _, es := range data.PMT.ElementaryStreams {
				result.StreamTypes = append(result.StreamTypes, es.StreamType)
			}
			break
		}
	}
	return result, nil
}
