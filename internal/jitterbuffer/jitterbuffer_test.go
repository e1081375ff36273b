package jitterbuffer

import (
	"testing"

	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pkt(seq uint16) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{SequenceNumber: seq}}
}

func TestInOrderDelivery(t *testing.T) {
	b := New(10)
	require.NoError(t, b.Insert(pkt(1)))
	require.NoError(t, b.Insert(pkt(2)))

	p, ok := b.GetNext()
	require.True(t, ok)
	assert.Equal(t, uint16(1), p.SequenceNumber)

	p, ok = b.GetNext()
	require.True(t, ok)
	assert.Equal(t, uint16(2), p.SequenceNumber)
}

func TestReordering(t *testing.T) {
	b := New(10)
	require.NoError(t, b.Insert(pkt(2)))
	require.NoError(t, b.Insert(pkt(1)))

	p, ok := b.GetNext()
	require.True(t, ok)
	assert.Equal(t, uint16(1), p.SequenceNumber)
	p, ok = b.GetNext()
	require.True(t, ok)
	assert.Equal(t, uint16(2), p.SequenceNumber)
}

func TestGapBlocksDelivery(t *testing.T) {
	b := New(10)
	require.NoError(t, b.Insert(pkt(1)))
	require.NoError(t, b.Insert(pkt(3)))

	_, ok := b.GetNext()
	require.True(t, ok) // seq 1

	_, ok = b.GetNext()
	assert.False(t, ok, "seq 2 missing, must not deliver seq 3")
}

func TestDuplicateKeepsFirst(t *testing.T) {
	b := New(10)
	first := pkt(1)
	second := pkt(1)
	require.NoError(t, b.Insert(first))
	require.NoError(t, b.Insert(second))
	assert.Equal(t, 1, b.Len())

	got, ok := b.GetNext()
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestCapacityRejection(t *testing.T) {
	b := New(2)
	require.NoError(t, b.Insert(pkt(1)))
	require.NoError(t, b.Insert(pkt(2)))
	err := b.Insert(pkt(3))
	assert.ErrorIs(t, err, mediaerr.ErrBufferFull)
}

func TestSequenceWraparound(t *testing.T) {
	b := New(10)
	require.NoError(t, b.Insert(pkt(65535)))
	require.NoError(t, b.Insert(pkt(0)))
	require.NoError(t, b.Insert(pkt(1)))

	p, ok := b.GetNext()
	require.True(t, ok)
	assert.Equal(t, uint16(65535), p.SequenceNumber)
	p, ok = b.GetNext()
	require.True(t, ok)
	assert.Equal(t, uint16(0), p.SequenceNumber)
	p, ok = b.GetNext()
	require.True(t, ok)
	assert.Equal(t, uint16(1), p.SequenceNumber)
}

func TestStatsReportsLossAndHighestSequence(t *testing.T) {
	b := New(2)
	require.NoError(t, b.Insert(pkt(5)))
	require.NoError(t, b.Insert(pkt(7)))
	require.ErrorIs(t, b.Insert(pkt(9)), mediaerr.ErrBufferFull)

	stats := b.Stats(0xC0FFEE)
	assert.Equal(t, uint32(0xC0FFEE), stats.SSRC)
	assert.Equal(t, uint32(1), stats.TotalLost)
	assert.Equal(t, uint32(7), stats.LastSequenceNumber)
}

func TestStatsZeroWhenEmpty(t *testing.T) {
	b := New(2)
	stats := b.Stats(1)
	assert.Equal(t, uint32(0), stats.TotalLost)
	assert.Equal(t, uint8(0), stats.FractionLost)
}
