// Package realtime implements the real-time delivery branch described
// alongside the RTP packetizer and jitter buffer: it packetizes a live
// capture frame's payload the way an outbound WebRTC-style sender
// would, and reassembles it back on the receive side through a jitter
// buffer, the way a receiver tolerates packet reordering before
// handing access units to the decoder.
//
// No actual network transport sits between the two sides (Non-goal);
// Relay models both halves of the same stream so a single capture
// pipeline can exercise the packetize/jitter-buffer contract without a
// real peer connection.
package realtime

import (
	"github.com/corten/mediaengine/internal/jitterbuffer"
	"github.com/corten/mediaengine/internal/rtppacket"
	"github.com/pion/rtcp"
)

// Relay packetizes one capture stream's frames into RTP and
// reassembles them through a jitter buffer. It is not safe for
// concurrent use; each capture stream (video, audio) owns its own
// Relay.
type Relay struct {
	packetizer *rtppacket.Packetizer
	jitter     *jitterbuffer.Buffer
}

// New creates a Relay whose jitter buffer holds at most
// jitterCapacity out-of-order RTP packets.
func New(jitterCapacity int) *Relay {
	return &Relay{
		packetizer: rtppacket.New(),
		jitter:     jitterbuffer.New(jitterCapacity),
	}
}

// SSRC returns the relay's outbound stream identifier.
func (r *Relay) SSRC() uint32 { return r.packetizer.SSRC() }

// Stats returns an RTCP reception report describing packet loss on
// this relay's jitter buffer, suitable for periodic logging or export
// to a session's observability sink.
func (r *Relay) Stats() rtcp.ReceptionReport {
	return r.jitter.Stats(r.packetizer.SSRC())
}

// Forward packetizes payload at the given RTP timestamp, carries the
// resulting packets through the jitter buffer, and reassembles them
// back into a single payload. An empty input payload produces no
// output.
func (r *Relay) Forward(payload []byte, timestamp uint32) ([]byte, error) {
	packets := r.packetizer.Packetize(payload, timestamp)
	for _, pkt := range packets {
		if err := r.jitter.Insert(pkt); err != nil {
			return nil, err
		}
	}

	var out []byte
	for range packets {
		pkt, ok := r.jitter.GetNext()
		if !ok {
			break
		}
		out = append(out, pkt.Payload...)
	}
	return out, nil
}
