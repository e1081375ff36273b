// Package rtppacket implements the RTP packetizer used by the
// real-time (WebRTC-style) delivery branch: it fragments an encoded
// access unit into MTU-sized RTP packets with a monotonically
// increasing sequence number and a fixed SSRC.
package rtppacket

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pion/rtp"
)

// MTU is the maximum RTP payload size in bytes this packetizer will
// produce per packet.
const MTU = 1200

const rtpVersion = 2

// Packetizer fragments payloads into RTP packets for a single
// outbound stream (one SSRC, one monotonically increasing sequence
// number space). It is not safe for concurrent use.
type Packetizer struct {
	sequenceNumber uint16
	ssrc           uint32
}

// New creates a Packetizer with a random initial sequence number and
// SSRC, matching how a real sender initializes a new RTP stream.
func New() *Packetizer {
	return &Packetizer{
		sequenceNumber: randomUint16(),
		ssrc:           randomUint32(),
	}
}

// SetSequenceNumber overrides the next sequence number to be used.
// Exposed for tests that need deterministic wraparound behavior.
func (p *Packetizer) SetSequenceNumber(seq uint16) { p.sequenceNumber = seq }

// SSRC returns the stream's fixed synchronization source identifier.
func (p *Packetizer) SSRC() uint32 { return p.ssrc }

// Packetize splits payload into one or more RTP packets of at most
// MTU bytes each, stamped with timestamp and this stream's SSRC. Each
// packet's sequence number is one greater than the last, wrapping at
// 65535. An empty payload produces no packets.
func (p *Packetizer) Packetize(payload []byte, timestamp uint32) []*rtp.Packet {
	if len(payload) == 0 {
		return nil
	}

	var packets []*rtp.Packet
	for offset := 0; offset < len(payload); offset += MTU {
		end := offset + MTU
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]

		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        rtpVersion,
				PayloadType:    0,
				SequenceNumber: p.sequenceNumber,
				Timestamp:      timestamp,
				SSRC:           p.ssrc,
			},
			Payload: append([]byte(nil), chunk...),
		}
		packets = append(packets, pkt)
		p.sequenceNumber++
	}
	return packets
}

func randomUint16() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

func randomUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
