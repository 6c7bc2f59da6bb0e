package sandboxfsm

import (
	"context"
	"testing"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappyPathTransitions(t *testing.T) {
	m := New()
	scope, err := sandbox.NewScope([]string{"/tmp/proj"})
	require.NoError(t, err)

	require.NoError(t, m.TransitionToConfiguring(scope))
	assert.Equal(t, PhaseConfiguring, m.Current().Phase)

	require.NoError(t, m.TransitionToActive())
	assert.Equal(t, PhaseActive, m.Current().Phase)
	assert.Equal(t, "/tmp/proj", m.Current().Scope.Primary())
}

func TestTransitionToConfiguring_RejectsEmptyScope(t *testing.T) {
	m := New()
	err := m.TransitionToConfiguring(sandbox.Scope{})
	require.Error(t, err)
	assert.Equal(t, PhaseAwaitingRoots, m.Current().Phase)
}

func TestAbsorbingTerminalStates(t *testing.T) {
	m := New()
	require.NoError(t, m.Fail(assert.AnError))
	assert.Error(t, m.Fail(assert.AnError))
	assert.Error(t, m.Terminate())
}

func TestWaitForActive_BlocksUntilActive(t *testing.T) {
	m := New()
	scope, err := sandbox.NewScope([]string{"/tmp/proj"})
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = m.TransitionToConfiguring(scope)
		_ = m.TransitionToActive()
	}()

	got, err := m.WaitForActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/proj", got.Primary())
}

func TestWaitForActive_ReturnsImmediatelyIfAlreadyActive(t *testing.T) {
	m := New()
	scope, _ := sandbox.NewScope([]string{"/tmp/proj"})
	require.NoError(t, m.TransitionToConfiguring(scope))
	require.NoError(t, m.TransitionToActive())

	got, err := m.WaitForActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/proj", got.Primary())
}

func TestWaitForActive_SurfacesFailure(t *testing.T) {
	m := New()
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = m.Fail(assert.AnError)
	}()
	_, err := m.WaitForActive(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWaitForActive_SurfacesTermination(t *testing.T) {
	m := New()
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = m.Terminate()
	}()
	_, err := m.WaitForActive(context.Background())
	assert.ErrorIs(t, err, ErrSessionTerminated)
}

func TestLateSubscriberSeesCurrentState(t *testing.T) {
	m := New()
	scope, _ := sandbox.NewScope([]string{"/tmp/proj"})
	require.NoError(t, m.TransitionToConfiguring(scope))
	require.NoError(t, m.TransitionToActive())

	ch, unsub := m.Subscribe()
	defer unsub()
	s := <-ch
	assert.Equal(t, PhaseActive, s.Phase)
}

func TestWaitForActiveTimeout_Expires(t *testing.T) {
	m := New()
	_, err := m.WaitForActiveTimeout(10 * time.Millisecond)
	assert.Error(t, err)
}
