package mcpservice

import (
	"context"
	"fmt"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/session"
)

// RootsLister is the subset of a connected MCP client session needed to
// run the handshake: asking the client which filesystem roots it is
// willing to expose. A real *mcp.ServerSession satisfies this by issuing a
// roots/list request back to the client.
type RootsLister interface {
	ListRoots(ctx context.Context) ([]string, error)
}

// PerformHandshake asks the client for its roots and locks sess's sandbox
// scope to them. Returns an error (and leaves the session in
// sandboxfsm.PhaseFailed) if the roots/list request fails or the client
// never responds within deadline, if it reports zero roots, or if the
// sandbox manager's prerequisites fail.
func PerformHandshake(ctx context.Context, sess *session.Session, lister RootsLister, deadline time.Duration) (sandbox.Scope, error) {
	if deadline <= 0 {
		deadline = defaultHandshakeDeadline
	}
	hctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	roots, err := lister.ListRoots(hctx)
	if err != nil {
		wrapped := fmt.Errorf("mcpservice: roots handshake: %w", err)
		_ = sess.FSM.Fail(wrapped)
		return sandbox.Scope{}, wrapped
	}
	return sess.LockSandbox(roots)
}
