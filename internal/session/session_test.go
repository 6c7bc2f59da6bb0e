package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	mgr, err := sandbox.NewManager(sandbox.MechanismNoop)
	require.NoError(t, err)
	catalog := toolconfig.NewCatalog(nil)
	return New(catalog, mgr, shellpool.DefaultConfig(), nil, callback.ClientTypeDefault, nil)
}

func TestLockSandbox_RejectsEmptyRoots(t *testing.T) {
	s := newTestSession(t)
	_, err := s.LockSandbox(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero roots")
}

func TestLockSandbox_ActivatesAndBuildsAdapter(t *testing.T) {
	s := newTestSession(t)
	root := t.TempDir()

	scope, err := s.LockSandbox([]string{root})
	require.NoError(t, err)
	assert.NotEmpty(t, scope.Paths())
	assert.NotNil(t, s.Adapter())

	active, err := s.WaitActive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, scope.Paths(), active.Paths())
}

func TestLockSandbox_IdempotentForSameRoots(t *testing.T) {
	s := newTestSession(t)
	root := t.TempDir()

	first, err := s.LockSandbox([]string{root})
	require.NoError(t, err)

	second, err := s.LockSandbox([]string{root})
	require.NoError(t, err)
	assert.Equal(t, first.Paths(), second.Paths())
}

func TestLockSandbox_RejectsDifferentRootsOnceLocked(t *testing.T) {
	s := newTestSession(t)
	_, err := s.LockSandbox([]string{t.TempDir()})
	require.NoError(t, err)

	_, err = s.LockSandbox([]string{t.TempDir()})
	assert.ErrorIs(t, err, ErrScopeAlreadyLocked)
}

func TestProgressTokenFor_RoundTripsBoundToken(t *testing.T) {
	s := newTestSession(t)
	s.BindProgressToken("req-1", "tok-1")
	assert.Equal(t, "tok-1", s.ProgressTokenFor("req-1"))
	assert.Nil(t, s.ProgressTokenFor("unbound"))

	s.BindProgressToken("req-2", nil)
	assert.Nil(t, s.ProgressTokenFor("req-2"))
}

func TestTerminate_IsSafeBeforeAndAfterActivation(t *testing.T) {
	s := newTestSession(t)
	s.Terminate() // before activation: no pool yet

	_, err := s.LockSandbox([]string{t.TempDir()})
	require.NoError(t, err)
	s.Terminate()
	s.Terminate() // second call is a no-op
}
