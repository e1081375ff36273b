// Package mediaerr defines the closed error taxonomy shared across the
// media engine: a fixed set of error kinds, sentinel errors for
// payload-free conditions, and typed errors for conditions that carry
// detail the caller needs.
package mediaerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error into one of a fixed set of buckets.
// Callers that need to branch on error category should use errors.As
// against the typed errors below, or errors.Is against the sentinels;
// Kind exists for callers (e.g. the HTTP facade) that want a single
// stable string to report externally.
type Kind int

const (
	KindUnsupportedFormat Kind = iota
	KindCodecError
	KindNetworkError
	KindDrmError
	KindHardwareError
	KindOutOfMemory
	KindInvalidStateTransition
	KindInvalidParameter
	KindSessionNotFound
	KindResourceExhausted
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindCodecError:
		return "codec_error"
	case KindNetworkError:
		return "network_error"
	case KindDrmError:
		return "drm_error"
	case KindHardwareError:
		return "hardware_error"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindInvalidStateTransition:
		return "invalid_state_transition"
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindSessionNotFound:
		return "session_not_found"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return "unknown"
	}
}

// Sentinel errors for conditions that carry no extra payload.
var (
	ErrUnsupportedFormat = errors.New("mediaerr: unsupported format")
	ErrCodecError        = errors.New("mediaerr: codec error")
	ErrNetworkError      = errors.New("mediaerr: network error")
	ErrDrmError          = errors.New("mediaerr: drm error")
	ErrHardwareError     = errors.New("mediaerr: hardware error")
	ErrOutOfMemory       = errors.New("mediaerr: out of memory")
	ErrSessionNotFound   = errors.New("mediaerr: session not found")
	ErrNotImplemented    = errors.New("mediaerr: not implemented")

	// ErrUnavailable reports a non-blocking pull (get_video_frame,
	// get_audio_samples) finding its source queue empty. Like the buffer
	// sentinels below, it is plumbing signal rather than a §7 error kind.
	ErrUnavailable = errors.New("mediaerr: unavailable")

	ErrBufferFull   = errors.New("mediaerr: buffer full")
	ErrBufferEmpty  = errors.New("mediaerr: buffer empty")
	ErrBufferClosed = errors.New("mediaerr: buffer closed")
)

// InvalidStateTransitionError reports an attempt to move a session
// between two states that the state machine does not permit.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("mediaerr: invalid state transition from %s to %s", e.From, e.To)
}

func (e *InvalidStateTransitionError) Kind() Kind { return KindInvalidStateTransition }

// InvalidParameterError reports a caller-supplied value outside its
// valid domain (e.g. volume outside [0.0, 1.0]).
type InvalidParameterError struct {
	Parameter string
	Details   string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("mediaerr: invalid parameter %s: %s", e.Parameter, e.Details)
}

func (e *InvalidParameterError) Kind() Kind { return KindInvalidParameter }

// ResourceExhaustedError reports a hard engine-wide limit being hit,
// e.g. the configured maximum concurrent session count.
type ResourceExhaustedError struct {
	Resource string
	Limit    int
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("mediaerr: resource exhausted: %s (limit %d)", e.Resource, e.Limit)
}

func (e *ResourceExhaustedError) Kind() Kind { return KindResourceExhausted }

// KindOf extracts the Kind of err, following the Kind() method when
// present and falling back to sentinel matching otherwise. Returns
// false if err does not map to a known kind.
func KindOf(err error) (Kind, bool) {
	var ks interface{ Kind() Kind }
	if errors.As(err, &ks) {
		return ks.Kind(), true
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat, true
	case errors.Is(err, ErrCodecError):
		return KindCodecError, true
	case errors.Is(err, ErrNetworkError):
		return KindNetworkError, true
	case errors.Is(err, ErrDrmError):
		return KindDrmError, true
	case errors.Is(err, ErrHardwareError):
		return KindHardwareError, true
	case errors.Is(err, ErrOutOfMemory):
		return KindOutOfMemory, true
	case errors.Is(err, ErrSessionNotFound):
		return KindSessionNotFound, true
	case errors.Is(err, ErrNotImplemented):
		return KindNotImplemented, true
	default:
		return 0, false
	}
}
