// Package jitterbuffer implements the RTP jitter buffer: it accepts
// out-of-order packets and releases them to the decoder in sequence
// order, tolerating reordering but never delivering past a gap.
package jitterbuffer

import (
	"sync"

	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// Buffer reorders a single RTP stream's packets by sequence number.
// It is safe for concurrent use.
type Buffer struct {
	mu              sync.Mutex
	capacity        int
	packets         map[uint16]*rtp.Packet
	nextExpectedSeq *uint16

	highestSeq    uint16
	haveHighest   bool
	received      uint32
	rejectedCount uint32
}

// New creates a Buffer that holds at most capacity out-of-order
// packets at once.
func New(capacity int) *Buffer {
	return &Buffer{
		capacity: capacity,
		packets:  make(map[uint16]*rtp.Packet),
	}
}

// sequenceBefore reports whether sequence number b should be
// considered to come before a, using the standard RTP modular
// wraparound comparison: b is "before" a if advancing from a to b by
// fewer than half the sequence space gets you there going forward from
// a's predecessor — equivalently, if (a - b) mod 2^16 is in (0, 2^15).
func sequenceBefore(a, b uint16) bool {
	diff := a - b
	return diff > 0 && diff < 32768
}

// Insert adds pkt to the buffer. Duplicate sequence numbers keep the
// first packet received and silently ignore the duplicate. Insert
// returns mediaerr.ErrBufferFull if the buffer is already at capacity
// and pkt's sequence number is not already present.
func (b *Buffer) Insert(pkt *rtp.Packet) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := pkt.SequenceNumber
	if _, exists := b.packets[seq]; exists {
		return nil
	}

	if len(b.packets) >= b.capacity {
		b.rejectedCount++
		return mediaerr.ErrBufferFull
	}

	b.packets[seq] = pkt
	b.received++
	if !b.haveHighest || sequenceBefore(seq, b.highestSeq) {
		b.highestSeq = seq
		b.haveHighest = true
	}

	if b.nextExpectedSeq == nil || sequenceBefore(*b.nextExpectedSeq, seq) {
		next := seq
		b.nextExpectedSeq = &next
	}
	return nil
}

// GetNext returns and removes the packet matching the buffer's
// expected next sequence number, advancing the expectation by one.
// It returns false if that exact packet has not arrived yet, even if
// later packets are present — the jitter buffer never delivers past a
// gap.
func (b *Buffer) GetNext() (*rtp.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.nextExpectedSeq == nil {
		return nil, false
	}
	seq := *b.nextExpectedSeq
	pkt, ok := b.packets[seq]
	if !ok {
		return nil, false
	}
	delete(b.packets, seq)
	next := seq + 1
	b.nextExpectedSeq = &next
	return pkt, true
}

// Len returns the number of packets currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}

// Stats returns an RTCP reception report describing this stream's
// loss and buffer-rejection behavior since the buffer was created.
// SSRC identifies the stream the report describes and is supplied by
// the caller, since the buffer itself has no notion of the RTP
// session's SSRC.
func (b *Buffer) Stats(ssrc uint32) rtcp.ReceptionReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	var fractionLost uint8
	total := b.received + b.rejectedCount
	if total > 0 {
		fractionLost = uint8((uint32(b.rejectedCount) * 256) / total)
	}

	return rtcp.ReceptionReport{
		SSRC:               ssrc,
		FractionLost:       fractionLost,
		TotalLost:          b.rejectedCount,
		LastSequenceNumber: uint32(b.highestSeq),
	}
}
