package pipeline

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/corten/mediaengine/internal/buffermanager"
	"github.com/corten/mediaengine/internal/mediaerr"
)

// ringIOPollInterval is how often managerRingReader retries an empty
// ring buffer while waiting for the source worker to write more
// bytes.
const ringIOPollInterval = 2 * time.Millisecond

// managerRingReader adapts a buffer stage's read-ahead ring buffer to
// io.Reader for the demuxer, which expects a blocking byte stream. It
// polls the non-blocking ring until bytes arrive, the source worker
// signals completion via markDone, or ctx is canceled.
type managerRingReader struct {
	ctx  context.Context
	mgr  *buffermanager.Manager
	done atomic.Bool
}

// markDone signals that the source worker has finished writing; once
// the ring drains, Read reports io.EOF instead of polling forever.
func (r *managerRingReader) markDone() { r.done.Store(true) }

func (r *managerRingReader) Read(p []byte) (int, error) {
	for {
		n, err := r.mgr.ReadSourceBytes(p)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, mediaerr.ErrBufferEmpty) {
			return 0, err
		}
		if r.done.Load() {
			return 0, io.EOF
		}
		select {
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		case <-time.After(ringIOPollInterval):
		}
	}
}

var _ io.Reader = (*managerRingReader)(nil)
