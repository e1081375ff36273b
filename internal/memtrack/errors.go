package memtrack

import "github.com/corten/mediaengine/internal/mediaerr"

func errOutOfMemory(t *Tracker, current, requested int64) error {
	t.log.Warn("memory allocation would exceed budget",
		"used_bytes", current,
		"requested_bytes", requested,
		"max_bytes", t.maxBytes,
	)
	return mediaerr.ErrOutOfMemory
}
