// Package sandboxfsm implements the per-session sandbox lifecycle state
// machine: AwaitingRoots -> Configuring -> Active -> Terminated|Failed,
// observable by any number of subscribers without polling.
package sandboxfsm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/sandbox"
)

// Phase names the state machine's current stage.
type Phase int

const (
	PhaseAwaitingRoots Phase = iota
	PhaseConfiguring
	PhaseActive
	PhaseFailed
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingRoots:
		return "AwaitingRoots"
	case PhaseConfiguring:
		return "Configuring"
	case PhaseActive:
		return "Active"
	case PhaseFailed:
		return "Failed"
	case PhaseTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseFailed || p == PhaseTerminated
}

// State is one broadcast snapshot: the phase, plus whichever payload
// applies (Scope for Configuring/Active, Reason for Failed).
type State struct {
	Phase  Phase
	Scope  sandbox.Scope
	Reason error
}

// ErrSessionTerminated is returned by WaitForActive when the machine
// reaches Terminated while waiting.
var ErrSessionTerminated = fmt.Errorf("session terminated")

// Machine is a broadcast-observable state machine. A single owner (the
// Session) holds the canonical instance; everyone else gets a read-side
// Subscribe handle derived from the broadcast channel — no upward
// references from handle back to owner.
type Machine struct {
	mu      sync.Mutex
	current State
	subs    map[chan State]struct{}
}

// New creates a Machine in AwaitingRoots.
func New() *Machine {
	return &Machine{
		current: State{Phase: PhaseAwaitingRoots},
		subs:    make(map[chan State]struct{}),
	}
}

// Current returns the current state snapshot.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// TransitionToConfiguring moves AwaitingRoots -> Configuring(scopes). Fails
// if scope is empty or the machine is not in AwaitingRoots.
func (m *Machine) TransitionToConfiguring(scope sandbox.Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Phase != PhaseAwaitingRoots {
		return fmt.Errorf("sandboxfsm: cannot configure from %s", m.current.Phase)
	}
	if scope.Empty() {
		return fmt.Errorf("sandboxfsm: scope must not be empty")
	}
	m.setLocked(State{Phase: PhaseConfiguring, Scope: scope})
	return nil
}

// TransitionToActive moves Configuring(scopes) -> Active(scopes), carrying
// the same scope forward (no copy, no re-validation).
func (m *Machine) TransitionToActive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Phase != PhaseConfiguring {
		return fmt.Errorf("sandboxfsm: cannot activate from %s", m.current.Phase)
	}
	m.setLocked(State{Phase: PhaseActive, Scope: m.current.Scope})
	return nil
}

// Fail moves any non-terminal state to Failed(reason).
func (m *Machine) Fail(reason error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Phase.Terminal() {
		return fmt.Errorf("sandboxfsm: already terminal (%s)", m.current.Phase)
	}
	m.setLocked(State{Phase: PhaseFailed, Reason: reason})
	return nil
}

// Terminate moves any non-terminal state to Terminated.
func (m *Machine) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Phase.Terminal() {
		return fmt.Errorf("sandboxfsm: already terminal (%s)", m.current.Phase)
	}
	m.setLocked(State{Phase: PhaseTerminated})
	return nil
}

func (m *Machine) setLocked(s State) {
	m.current = s
	for ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a channel delivering every subsequent state change. A
// late subscriber immediately receives the current state so it never
// misses a transition that already happened.
func (m *Machine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	current := m.current
	m.mu.Unlock()
	ch <- current
	unsub := func() {
		m.mu.Lock()
		delete(m.subs, ch)
		m.mu.Unlock()
	}
	return ch, unsub
}

// WaitForActive awaits the first Active (returning its scope), Failed
// (returning its reason), or Terminated (returning ErrSessionTerminated).
// It does not sleep-poll: it blocks on the broadcast channel or ctx.
func (m *Machine) WaitForActive(ctx context.Context) (sandbox.Scope, error) {
	if s := m.Current(); s.Phase == PhaseActive {
		return s.Scope, nil
	} else if s.Phase == PhaseFailed {
		return sandbox.Scope{}, s.Reason
	} else if s.Phase == PhaseTerminated {
		return sandbox.Scope{}, ErrSessionTerminated
	}

	ch, unsub := m.Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return sandbox.Scope{}, ctx.Err()
		case s := <-ch:
			switch s.Phase {
			case PhaseActive:
				return s.Scope, nil
			case PhaseFailed:
				return sandbox.Scope{}, s.Reason
			case PhaseTerminated:
				return sandbox.Scope{}, ErrSessionTerminated
			}
		}
	}
}

// WaitForActiveTimeout is WaitForActive bounded by a deadline, the shape
// used to gate tool calls behind a short wait for the sandbox to come up.
func (m *Machine) WaitForActiveTimeout(timeout time.Duration) (sandbox.Scope, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return m.WaitForActive(ctx)
}
