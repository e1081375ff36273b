// Package demux classifies a MediaSource and provides the default
// software MPEG-TS demux path used for SourceUrl sources and for
// SourceBlob sources that look like MPEG-TS.
// Real container parsing beyond this default MPEG-TS path, and real
// codec decoding, are Non-goals; this package exists to give the
// pipeline's "demux" stage something concrete to run end-to-end.
package demux

import (
	"strings"

	"github.com/corten/mediaengine/internal/mediatypes"
)

// Kind classifies how a MediaSource should be fed into the pipeline.
type Kind int

const (
	// KindRaw sources (an already-demuxed byte stream, or an in-memory
	// blob known to be a single elementary stream) skip the demux
	// stage entirely and go straight to decode.
	KindRaw Kind = iota
	// KindContainer sources need demuxing before decode.
	KindContainer
	// KindLive sources are capture devices; demuxing does not apply
	// (Non-goal: capture device enumeration/binding).
	KindLive
	// KindEncrypted sources need DRM handling before anything else.
	KindEncrypted
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindContainer:
		return "container"
	case KindLive:
		return "live"
	case KindEncrypted:
		return "encrypted"
	default:
		return "unknown"
	}
}

// Classify determines how src should be routed into the pipeline.
func Classify(src mediatypes.MediaSource) Kind {
	switch src.Kind {
	case mediatypes.SourceEncryptedUrl:
		return KindEncrypted
	case mediatypes.SourceCaptureDevice:
		return KindLive
	case mediatypes.SourceStream, mediatypes.SourceMediaSourceExtension:
		return KindRaw
	case mediatypes.SourceBlob:
		if looksLikeContainer(src.Blob) {
			return KindContainer
		}
		return KindRaw
	case mediatypes.SourceUrl:
		return KindContainer
	default:
		return KindContainer
	}
}

// looksLikeContainer sniffs a blob's first bytes for an MPEG-TS sync
// byte pattern (0x47 every 188 bytes).
func looksLikeContainer(data []byte) bool {
	if len(data) < 188*2 {
		return len(data) > 0 && data[0] == 0x47
	}
	return data[0] == 0x47 && data[188] == 0x47
}

// ProbableContainerFormat makes a best-effort guess at container
// format from a URL's extension. Every URL yields "mpegts", the only
// container this package parses; nothing in the pipeline calls it.
func ProbableContainerFormat(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, ".ts") || strings.Contains(lower, "mpegts"):
		return "mpegts"
	default:
		return "mpegts" // default assumption; other containers are a Non-goal
	}
}
