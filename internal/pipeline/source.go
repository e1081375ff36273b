package pipeline

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
)

// sourceReadChunk is the read unit the source worker pulls off the
// MediaSource and writes into the session's ring buffer.
const sourceReadChunk = 32 * 1024

// SourceReader is the byte-producing end of the pipeline's source
// worker. The network stack used to fetch remote sources is a
// Non-goal; SourceReader is the seam a real adapter plugs into. The
// engine ships readers for local files and in-memory blobs/streams,
// which is enough to exercise the pipeline end to end.
type SourceReader interface {
	// Read returns the next chunk of source bytes, or io.EOF once
	// exhausted.
	Read() ([]byte, error)
	Close() error
}

// newSourceReader builds the SourceReader for src. http(s) URLs report
// ErrNetworkError: fetching them needs a real transport/TLS stack,
// which this module does not provide.
func newSourceReader(src mediatypes.MediaSource) (SourceReader, error) {
	switch src.Kind {
	case mediatypes.SourceBlob:
		return &blobReader{data: src.Blob}, nil
	case mediatypes.SourceStream:
		if src.Stream == nil {
			return nil, &mediaerr.InvalidParameterError{Parameter: "source.stream", Details: "nil reader"}
		}
		return &streamReader{r: src.Stream}, nil
	case mediatypes.SourceUrl, mediatypes.SourceEncryptedUrl:
		return newURLReader(src.URL)
	default:
		return nil, &mediaerr.InvalidParameterError{Parameter: "source.kind", Details: "not a byte-producing source"}
	}
}

func newURLReader(rawURL string) (SourceReader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing source url: %v", mediaerr.ErrUnsupportedFormat, err)
	}
	switch u.Scheme {
	case "file", "":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", mediaerr.ErrNetworkError, u.Path, err)
		}
		return &streamReader{r: f, closer: f}, nil
	default:
		return nil, fmt.Errorf("%w: scheme %q requires an externally supplied transport", mediaerr.ErrNetworkError, u.Scheme)
	}
}

// blobReader serves an in-memory byte slice in fixed-size chunks.
type blobReader struct {
	data []byte
	pos  int
}

func (b *blobReader) Read() ([]byte, error) {
	if b.pos >= len(b.data) {
		return nil, io.EOF
	}
	end := b.pos + sourceReadChunk
	if end > len(b.data) {
		end = len(b.data)
	}
	chunk := b.data[b.pos:end]
	b.pos = end
	return chunk, nil
}

func (b *blobReader) Close() error { return nil }

// streamReader adapts an io.Reader (a caller-supplied stream, or a
// local file) to SourceReader.
type streamReader struct {
	r      io.Reader
	closer io.Closer
}

func (s *streamReader) Read() ([]byte, error) {
	buf := make([]byte, sourceReadChunk)
	n, err := s.r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

func (s *streamReader) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
