package solver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model", DescriptionFileName)
	defaults := DefaultConfig()
	session := NewSession(path, defaults, Caps{MaxIter: 400, BaseLRFloor: 0.004})

	require.NoError(t, session.Reset())
	assert.Equal(t, StateInit, session.State())

	onDisk, err := ReadDescription(path)
	require.NoError(t, err)
	assert.Equal(t, defaults, onDisk)

	cfg, err := session.BeginAttempt()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, session.State())
	assert.Equal(t, 100, cfg.MaxIter)

	session.Record(0.9)
	assert.Equal(t, StateEvaluated, session.State())

	decision, err := session.Adjust()
	require.NoError(t, err)
	assert.Equal(t, ActionDoubleIterations, decision.Action)
	assert.Equal(t, StateAdjusted, session.State())

	onDisk, err = ReadDescription(path)
	require.NoError(t, err)
	assert.Equal(t, 200, onDisk.MaxIter)

	// 200 -> 400, then halve 0.01 -> 0.005 -> 0.0025, then stop
	expected := []Action{ActionDoubleIterations, ActionHalveLearningRate, ActionHalveLearningRate, ActionStop}
	for _, action := range expected {
		_, err := session.BeginAttempt()
		require.NoError(t, err)
		session.Record(0.9)
		decision, err := session.Adjust()
		require.NoError(t, err)
		assert.Equal(t, action, decision.Action)
	}

	assert.Equal(t, StateStopped, session.State())
	assert.Len(t, session.History(), 5)

	_, err = session.BeginAttempt()
	assert.Error(t, err)
}

func TestSession_ResetClearsHistory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DescriptionFileName)
	session := NewSession(path, DefaultConfig(), Caps{MaxIter: 2000, BaseLRFloor: 0.001})

	_, err := session.BeginAttempt()
	require.NoError(t, err)
	session.Record(0.5)
	_, err = session.Adjust()
	require.NoError(t, err)

	require.NoError(t, session.Reset())
	assert.Empty(t, session.History())
	assert.Equal(t, DefaultConfig(), session.Config())
}

func TestSession_HistoryIsACopy(t *testing.T) {
	t.Parallel()

	session := NewSession(filepath.Join(t.TempDir(), DescriptionFileName), DefaultConfig(), Caps{})
	session.Record(0.4)

	h := session.History()
	h[0].Loss = 99
	assert.InDelta(t, 0.4, session.History()[0].Loss, 1e-12)
}
