package mcpservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/session"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

type fakeRootsLister struct {
	roots []string
	err   error
}

func (f fakeRootsLister) ListRoots(ctx context.Context) ([]string, error) {
	return f.roots, f.err
}

func newTestSessionForHandshake(t *testing.T) *session.Session {
	t.Helper()
	mgr, err := sandbox.NewManager(sandbox.MechanismNoop)
	require.NoError(t, err)
	catalog := toolconfig.NewCatalog(nil)
	return session.New(catalog, mgr, shellpool.DefaultConfig(), nil, callback.ClientTypeDefault, nil)
}

func TestPerformHandshake_LocksScopeFromReportedRoots(t *testing.T) {
	sess := newTestSessionForHandshake(t)
	root := t.TempDir()

	scope, err := PerformHandshake(context.Background(), sess, fakeRootsLister{roots: []string{root}}, time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, scope.Paths())

	active, err := sess.WaitActive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, scope.Paths(), active.Paths())
}

func TestPerformHandshake_PropagatesListRootsError(t *testing.T) {
	sess := newTestSessionForHandshake(t)
	_, err := PerformHandshake(context.Background(), sess, fakeRootsLister{err: errors.New("client hung up")}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client hung up")
}

func TestPerformHandshake_ZeroDeadlineUsesDefault(t *testing.T) {
	sess := newTestSessionForHandshake(t)
	root := t.TempDir()
	_, err := PerformHandshake(context.Background(), sess, fakeRootsLister{roots: []string{root}}, 0)
	require.NoError(t, err)
}
