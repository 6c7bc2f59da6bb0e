// Package session owns the per-client Session: its sandbox lifecycle,
// locked scope, operation monitor, shell pool, adapter, and progress-token
// table. The monitor and pool behave as per-session singletons, not
// process-global state — when the server runs one subprocess per session
// this falls out naturally; embedded/HTTP-bridge mode uses the Registry
// below to key by session id.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfateev/mcpsandboxd/internal/adapter"
	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/execpolicy"
	"github.com/mfateev/mcpsandboxd/internal/operation"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/sandboxfsm"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

// Session is one client <-> server relationship: its own sandbox scope and
// operation state. The FSM is owned here; the MCP service's tool handlers
// and the HTTP bridge hold the *Session itself and reach the FSM through
// it.
type Session struct {
	ID         string
	ClientType callback.ClientType

	FSM     *sandboxfsm.Machine
	Monitor *operation.Monitor
	Router  *callback.Router

	catalog *toolconfig.Catalog
	mgr     sandbox.Manager
	poolCfg shellpool.Config
	pool    *shellpool.Pool
	policy  *execpolicy.ExecPolicyManager

	mu      sync.Mutex
	adapter *adapter.Adapter // nil until LockSandbox succeeds

	progressTokens map[string]any // MCP request id -> client progressToken
}

// New creates a Session in sandboxfsm.PhaseAwaitingRoots, bound to a tool
// catalog and sandbox manager that are fixed for the process lifetime.
// poolCfg is consumed once scope is locked, in LockSandbox, since the Pool
// needs the session's scope to spawn its first worker under. policy may be
// nil, in which case the session's Adapter dispatches every argv unchecked.
func New(catalog *toolconfig.Catalog, mgr sandbox.Manager, poolCfg shellpool.Config, sender callback.Sender, clientType callback.ClientType, policy *execpolicy.ExecPolicyManager) *Session {
	return &Session{
		ID:             uuid.NewString(),
		ClientType:     clientType,
		FSM:            sandboxfsm.New(),
		Monitor:        operation.NewMonitor(0, 0),
		Router:         callback.NewRouter(sender, clientType),
		catalog:        catalog,
		mgr:            mgr,
		poolCfg:        poolCfg,
		policy:         policy,
		progressTokens: make(map[string]any),
	}
}

// ErrScopeAlreadyLocked is returned by LockSandbox when called a second
// time with a different, non-empty root set: scope is write-once.
var ErrScopeAlreadyLocked = fmt.Errorf("session: sandbox scope already locked")

// LockSandbox canonicalizes roots and transitions the session's FSM from
// AwaitingRoots through Configuring to Active, building the Pool and
// Adapter once the scope is known. Empty roots are rejected outright: there
// is no default-scope fallback. A second call with an equal root set is a
// no-op ("already locked");
// with a different non-empty set it is a security-invariant violation.
func (s *Session) LockSandbox(roots []string) (sandbox.Scope, error) {
	if current := s.FSM.Current(); current.Phase != sandboxfsm.PhaseAwaitingRoots {
		if current.Phase == sandboxfsm.PhaseActive || current.Phase == sandboxfsm.PhaseConfiguring {
			existing := current.Scope
			candidate, err := sandbox.NewScope(roots)
			if err == nil && samePaths(existing.Paths(), candidate.Paths()) {
				return existing, nil // idempotent for equal roots
			}
			return sandbox.Scope{}, ErrScopeAlreadyLocked
		}
		return sandbox.Scope{}, fmt.Errorf("session: cannot lock sandbox from state %s", current.Phase)
	}

	if len(roots) == 0 {
		err := fmt.Errorf("session: handshake produced zero roots, no default scope applied")
		_ = s.FSM.Fail(err)
		return sandbox.Scope{}, err
	}

	scope, err := sandbox.NewScope(roots)
	if err != nil {
		_ = s.FSM.Fail(err)
		return sandbox.Scope{}, err
	}

	if err := s.mgr.CheckPrerequisites(); err != nil {
		wrapped := fmt.Errorf("session: sandbox prerequisites unavailable: %w", err)
		_ = s.FSM.Fail(wrapped)
		return sandbox.Scope{}, wrapped
	}

	if err := s.FSM.TransitionToConfiguring(scope); err != nil {
		return sandbox.Scope{}, err
	}

	s.mu.Lock()
	s.pool = shellpool.NewPool(s.mgr, scope, s.poolCfg)
	s.adapter = adapter.New(s.catalog, s.mgr, scope, s.pool, s.Monitor, s.Router, s.policy)
	s.mu.Unlock()

	if err := s.FSM.TransitionToActive(); err != nil {
		return sandbox.Scope{}, err
	}
	return scope, nil
}

func samePaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Adapter returns the session's Adapter, valid only once the FSM has
// reached Active.
func (s *Session) Adapter() *adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Catalog returns the tool catalog this session was created with.
func (s *Session) Catalog() *toolconfig.Catalog {
	return s.catalog
}

// WaitActive blocks until the sandbox is Active or timeout elapses, the
// gate applied before routing any tool call.
func (s *Session) WaitActive(timeout time.Duration) (sandbox.Scope, error) {
	return s.FSM.WaitForActiveTimeout(timeout)
}

// BindProgressToken records the progressToken a client attached to an
// MCP request, keyed by that request's id, so later progress notifications
// for operations spawned by that request can be routed back correctly.
func (s *Session) BindProgressToken(requestID string, token any) {
	if token == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressTokens[requestID] = token
}

// ProgressTokenFor returns the token bound to requestID, or nil.
func (s *Session) ProgressTokenFor(requestID string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressTokens[requestID]
}

// Terminate moves the session to Terminated and shuts down its pool. Safe
// to call more than once; only the first call has effect.
func (s *Session) Terminate() {
	_ = s.FSM.Terminate()
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool != nil {
		pool.ShutdownAll()
	}
}
