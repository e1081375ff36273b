package sessionstate

import "testing"

import "github.com/stretchr/testify/assert"

func TestDefaultStateIsIdle(t *testing.T) {
	s := NewIdle()
	assert.Equal(t, Idle, s.Kind)
}

func TestLegalTransitions(t *testing.T) {
	cases := []struct {
		from, to Kind
		want     bool
	}{
		{Idle, Loading, true},
		{Idle, Playing, false},
		{Loading, Ready, true},
		{Loading, Playing, false},
		{Ready, Playing, true},
		{Ready, Seeking, true},
		{Ready, Paused, true},
		{Playing, Paused, true},
		{Playing, Seeking, true},
		{Playing, Ended, true},
		{Paused, Playing, true},
		{Paused, Seeking, true},
		{Seeking, Playing, true},
		{Seeking, Paused, true},
		{Seeking, Seeking, true},
		{Ended, Idle, false},
		{Ended, Playing, false},
		{Error, Idle, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, CanTransitionTo(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestAnyStateCanFault(t *testing.T) {
	for _, k := range []Kind{Idle, Loading, Ready, Playing, Paused, Seeking} {
		assert.True(t, CanTransitionTo(k, Error), "%s -> Error should be legal", k)
	}
}

func TestTerminalStatesAreTerminal(t *testing.T) {
	for _, to := range []Kind{Idle, Loading, Ready, Playing, Paused, Seeking, Ended, Error} {
		assert.False(t, CanTransitionTo(Ended, to))
		assert.False(t, CanTransitionTo(Error, to))
	}
}

func TestStateName(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "playing", Playing.String())
	assert.Equal(t, "error", Error.String())
}
