package epoch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBeginEndExclusivity(t *testing.T) {
	m := New()
	require.NoError(t, m.Begin("w", 1, Remote))
	require.ErrorIs(t, m.Begin("w", 1, Remote), ErrEpochBusy)
	require.NoError(t, m.End("w", 1))
	require.NoError(t, m.Begin("w", 1, Local))
}

func TestEndWithoutBeginErrors(t *testing.T) {
	m := New()
	err := m.End("w", 1)
	require.Error(t, err)
}

func TestDistinctTargetsDoNotContend(t *testing.T) {
	m := New()
	require.NoError(t, m.Begin("w", 1, Remote))
	require.NoError(t, m.Begin("w", 2, Remote))
}

func TestWithRemoteReleasesOnError(t *testing.T) {
	m := New()
	boom := errors.New("boom")
	err := m.WithRemote("w", 5, func() error { return boom })
	require.ErrorIs(t, err, boom)
	// epoch must be released even though fn errored
	require.NoError(t, m.Begin("w", 5, Remote))
}

func TestWithLocal(t *testing.T) {
	m := New()
	called := false
	err := m.WithLocal("w", 0, func() error { called = true; return nil })
	require.NoError(t, err)
	require.True(t, called)
}
