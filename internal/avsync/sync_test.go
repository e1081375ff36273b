package avsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayWithinThresholdAhead(t *testing.T) {
	c := New(DefaultThreshold)
	c.UpdateClock(100 * time.Millisecond)
	res := c.SyncFrame(120 * time.Millisecond)
	assert.Equal(t, Display, res.Decision)
	assert.Equal(t, 120*time.Millisecond, c.Clock())
}

func TestWaitWhenFarAhead(t *testing.T) {
	c := New(DefaultThreshold)
	c.UpdateClock(100 * time.Millisecond)
	res := c.SyncFrame(150 * time.Millisecond)
	assert.Equal(t, Wait, res.Decision)
	assert.Equal(t, 50*time.Millisecond, res.Delay)
	assert.Equal(t, 100*time.Millisecond, c.Clock(), "clock unchanged on wait")
}

func TestDropWhenFarBehind(t *testing.T) {
	c := New(DefaultThreshold)
	c.UpdateClock(200 * time.Millisecond)
	res := c.SyncFrame(100 * time.Millisecond)
	assert.Equal(t, Drop, res.Decision)
}

func TestDisplayWhenSlightlyBehind(t *testing.T) {
	c := New(DefaultThreshold)
	c.UpdateClock(120 * time.Millisecond)
	res := c.SyncFrame(100 * time.Millisecond)
	assert.Equal(t, Display, res.Decision)
	assert.Equal(t, 120*time.Millisecond, c.Clock(), "clock unchanged on behind-display")
}

func TestClockNeverMovesBackward(t *testing.T) {
	c := New(DefaultThreshold)
	c.UpdateClock(500 * time.Millisecond)
	c.UpdateClock(100 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, c.Clock())
}

func TestDefaultThresholdApplied(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultThreshold, c.threshold)
}

func TestResetRewindsClock(t *testing.T) {
	c := New(DefaultThreshold)
	c.UpdateClock(500 * time.Millisecond)
	c.Reset()
	assert.Equal(t, time.Duration(0), c.Clock())

	res := c.SyncFrame(10 * time.Millisecond)
	assert.Equal(t, Display, res.Decision, "post-reset frame near zero should display, not drop as far-behind")
}
