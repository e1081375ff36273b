package engine

import (
	"sync"

	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
)

// EventKind discriminates the four events the engine's facade emits.
type EventKind int

const (
	EventVideoFrameReady EventKind = iota
	EventAudioSamplesReady
	EventPlaybackStateChanged
	EventMediaError
)

func (k EventKind) String() string {
	switch k {
	case EventVideoFrameReady:
		return "video_frame_ready"
	case EventAudioSamplesReady:
		return "audio_samples_ready"
	case EventPlaybackStateChanged:
		return "playback_state_changed"
	case EventMediaError:
		return "media_error"
	default:
		return "unknown"
	}
}

// Event is one item on the engine's event stream, tagged to a single
// session. Only the fields relevant to Kind are populated.
type Event struct {
	Kind      EventKind
	SessionID mediatypes.SessionId

	Frame  mediatypes.VideoFrame
	Buffer mediatypes.AudioBuffer

	// PlaybackStateChanged
	StateName string

	// MediaError
	ErrorKind mediaerr.Kind
	Details   string
}

// eventBufferSize bounds each subscriber's backlog. Once a subscriber's
// mailbox is full, a new PlaybackStateChanged event displaces the
// oldest queued event (of any kind), and a new event of any other kind
// is dropped.
const eventBufferSize = 64

// subscriber is one SubscribeEvents() caller's mailbox.
type subscriber struct {
	ch chan Event
}

// eventBus fans engine events out to every live subscriber.
//
// Grounded on media_engine/src/engine.rs's event_tx/event_rx
// mpsc::unbounded_channel split, adapted to Go's bounded channels: an
// unbounded Rust channel has no backlog limit, so this module gives
// each subscriber a bounded mailbox and lets only PlaybackStateChanged
// displace queued history when that mailbox is full. Queued state
// changes are not merged per session.
type eventBus struct {
	mu   sync.Mutex
	subs []*subscriber
}

func (b *eventBus) subscribe() <-chan Event {
	sub := &subscriber{ch: make(chan Event, eventBufferSize)}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.ch
}

func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		if ev.Kind != EventPlaybackStateChanged {
			continue
		}
		// Make room: drop the oldest queued event for this subscriber,
		// whatever its kind, then retry once.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
