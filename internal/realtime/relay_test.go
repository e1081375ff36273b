package realtime

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayForwardRoundTripsSmallPayload(t *testing.T) {
	r := New(16)
	payload := []byte("one video frame, under the MTU")

	out, err := r.Forward(payload, 90000)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestRelayForwardReassemblesFragmentedFrame(t *testing.T) {
	r := New(16)
	payload := bytes.Repeat([]byte{0xAB}, 3000) // spans multiple MTU-sized packets

	out, err := r.Forward(payload, 12345)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestRelayForwardEmptyPayloadProducesNoOutput(t *testing.T) {
	r := New(16)
	out, err := r.Forward(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRelaySSRCStableAcrossFrames(t *testing.T) {
	r := New(16)
	ssrc := r.SSRC()

	_, err := r.Forward([]byte("a"), 1)
	require.NoError(t, err)
	_, err = r.Forward([]byte("b"), 2)
	require.NoError(t, err)

	assert.Equal(t, ssrc, r.SSRC())
}

func TestRelayRejectsWhenJitterBufferFull(t *testing.T) {
	r := New(1)
	payload := bytes.Repeat([]byte{0x01}, 3000) // fragments into >1 packet

	_, err := r.Forward(payload, 1)
	assert.Error(t, err)
}

func TestRelayStatsReflectsSSRCAndLoss(t *testing.T) {
	r := New(1)
	payload := bytes.Repeat([]byte{0x01}, 3000) // fragments into >1 packet

	_, err := r.Forward(payload, 1)
	require.Error(t, err)

	stats := r.Stats()
	assert.Equal(t, r.SSRC(), stats.SSRC)
	assert.NotZero(t, stats.TotalLost)
}
