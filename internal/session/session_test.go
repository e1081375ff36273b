package session

import (
	"context"
	"testing"

	"github.com/corten/mediaengine/internal/mediaerr"
	"github.com/corten/mediaengine/internal/mediatypes"
	"github.com/corten/mediaengine/internal/sessionstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() mediatypes.EngineConfig {
	cfg := mediatypes.DefaultEngineConfig()
	cfg.MaxConcurrentSessions = 2
	cfg.Buffer.RingCapacity = 4096
	cfg.Buffer.MaxTotalBytes = 1024 * 1024
	return cfg
}

func TestRegistryCreateStartsIdle(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	s, err := r.Create()
	require.NoError(t, err)
	assert.Equal(t, sessionstate.Idle, s.State().Kind)
	assert.Equal(t, float32(1.0), s.Volume())
}

func TestRegistryEnforcesSessionLimit(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	_, err := r.Create()
	require.NoError(t, err)
	_, err = r.Create()
	require.NoError(t, err)

	_, err = r.Create()
	var exhausted *mediaerr.ResourceExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Limit)
}

func TestRegistryGetMissingReportsSessionNotFound(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	_, err := r.Get(mediatypes.NewSessionId())
	assert.ErrorIs(t, err, mediaerr.ErrSessionNotFound)
}

func TestRegistryDestroyFreesSlotAndIsNotDoubleDestroyable(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	s, err := r.Create()
	require.NoError(t, err)
	require.NoError(t, r.Destroy(s.ID))
	assert.Equal(t, 0, r.Count())

	err = r.Destroy(s.ID)
	assert.ErrorIs(t, err, mediaerr.ErrSessionNotFound)

	// Destroying freed the slot; a new session should fit under the limit.
	_, err = r.Create()
	require.NoError(t, err)
	_, err = r.Create()
	require.NoError(t, err)
}

func TestSessionTransitionRejectsIllegalMove(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	s, err := r.Create()
	require.NoError(t, err)

	err = s.Transition(sessionstate.State{Kind: sessionstate.Playing})
	var stateErr *mediaerr.InvalidStateTransitionError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, sessionstate.Idle, s.State().Kind)
}

func TestSessionTransitionAppliesLegalMove(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	s, err := r.Create()
	require.NoError(t, err)

	require.NoError(t, s.Transition(sessionstate.State{Kind: sessionstate.Loading}))
	assert.Equal(t, sessionstate.Loading, s.State().Kind)
}

func TestSessionFaultIsTerminalAndIdempotent(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	s, err := r.Create()
	require.NoError(t, err)

	s.Fault("decode failed")
	assert.Equal(t, sessionstate.Error, s.State().Kind)
	assert.Equal(t, "decode failed", s.State().ErrorMessage)

	s.Fault("second fault should be ignored")
	assert.Equal(t, "decode failed", s.State().ErrorMessage)
}

func TestSessionSetVolumeValidatesRange(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)
	defer r.Close()

	s, err := r.Create()
	require.NoError(t, err)

	require.NoError(t, s.SetVolume(0.5))
	assert.Equal(t, float32(0.5), s.Volume())

	err = s.SetVolume(1.5)
	var paramErr *mediaerr.InvalidParameterError
	require.ErrorAs(t, err, &paramErr)

	err = s.SetVolume(-0.1)
	require.ErrorAs(t, err, &paramErr)
}

func TestRegistryCloseTearsDownSessions(t *testing.T) {
	r := NewRegistry(context.Background(), testConfig(), nil, nil)

	s, err := r.Create()
	require.NoError(t, err)

	r.Close()
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
}
