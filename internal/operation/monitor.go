package operation

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultHistoryCap is the default bound on the completion history ring.
// The source specification does not measure the right value under load;
// 1024 is a starting point (see DESIGN.md Open Questions).
const DefaultHistoryCap = 1024

// DefaultWaitTimeout is the monitor-wide default for wait_for_operation.
const DefaultWaitTimeout = 30 * time.Second

// DefaultAdvancedWaitTimeout is the floor for wait_for_operations_advanced:
// the effective wait is max(240s default, the longest remaining timeout
// among matching active operations).
const DefaultAdvancedWaitTimeout = 240 * time.Second

// Monitor is the central registry and lifecycle bookkeeping for all
// operations in one session. All mutation is serialized through a single
// lock; readers see consistent snapshots.
type Monitor struct {
	mu sync.Mutex

	active    map[string]*Operation
	history   []*Operation // FIFO ring of terminal operations, oldest first
	historyBy map[string]bool
	historyCap int

	waitTimeout time.Duration

	gen    chan struct{} // closed and replaced on every terminal transition
}

// NewMonitor creates an empty Monitor with the given history cap and
// default wait timeout. A zero historyCap selects DefaultHistoryCap; a
// zero waitTimeout selects DefaultWaitTimeout.
func NewMonitor(historyCap int, waitTimeout time.Duration) *Monitor {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &Monitor{
		active:      make(map[string]*Operation),
		historyBy:   make(map[string]bool),
		historyCap:  historyCap,
		waitTimeout: waitTimeout,
		gen:         make(chan struct{}),
	}
}

// AddOperation inserts or replaces an operation by id. A reused id that
// already denotes a terminal operation in history is removed from history
// first, so the registry never carries duplicate entries for one id.
func (m *Monitor) AddOperation(op *Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyBy[op.ID] {
		m.removeFromHistoryLocked(op.ID)
	}
	m.active[op.ID] = op
}

// UpdateStatus transitions operation id to newState. When newState is
// terminal and the operation is currently active, it atomically moves to
// the completion history. Updates to an id already in history are silently
// ignored — the result recorded at the first terminal transition is final.
func (m *Monitor) UpdateStatus(id string, newState State, result *Result) {
	m.mu.Lock()
	op, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if op.State.Terminal() {
		// Already terminal (idempotent no-op to guard a race between two
		// terminal UpdateStatus calls for the same id).
		m.mu.Unlock()
		return
	}
	op.State = newState
	if result != nil {
		op.Result = result
	}
	if newState.Terminal() {
		op.CompletedAt = time.Now()
		delete(m.active, id)
		m.appendHistoryLocked(op)
		m.broadcastLocked()
	}
	m.mu.Unlock()
}

func (m *Monitor) appendHistoryLocked(op *Operation) {
	m.history = append(m.history, op)
	m.historyBy[op.ID] = true
	for len(m.history) > m.historyCap {
		evicted := m.history[0]
		m.history = m.history[1:]
		delete(m.historyBy, evicted.ID)
	}
}

func (m *Monitor) removeFromHistoryLocked(id string) {
	for i, op := range m.history {
		if op.ID == id {
			m.history = append(m.history[:i], m.history[i+1:]...)
			delete(m.historyBy, id)
			return
		}
	}
}

func (m *Monitor) broadcastLocked() {
	close(m.gen)
	m.gen = make(chan struct{})
}

// GetOperation returns a snapshot of the operation with id, from either the
// active map or history, or nil if unknown.
func (m *Monitor) GetOperation(id string) *Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok := m.active[id]; ok {
		return op.clone()
	}
	for _, op := range m.history {
		if op.ID == id {
			return op.clone()
		}
	}
	return nil
}

// GetActiveOperations returns a snapshot of all non-terminal operations.
func (m *Monitor) GetActiveOperations() []*Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Operation, 0, len(m.active))
	for _, op := range m.active {
		out = append(out, op.clone())
	}
	return out
}

// GetCompletedOperations returns a snapshot of the completion history,
// oldest first.
func (m *Monitor) GetCompletedOperations() []*Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Operation, len(m.history))
	for i, op := range m.history {
		out[i] = op.clone()
	}
	return out
}

// WaitForOperation suspends until id reaches a terminal state or the
// monitor's default timeout elapses. Returns nil if id was never
// registered (and never becomes known) or did not complete in time. It
// does not spin-poll: it selects on the monitor's broadcast channel.
func (m *Monitor) WaitForOperation(ctx context.Context, id string) *Operation {
	deadline := time.Now().Add(m.waitTimeout)
	for {
		if op := m.GetOperation(id); op != nil && op.State.Terminal() {
			return op
		}
		gen := m.currentGen()
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(remaining):
			return nil
		case <-gen:
			// state changed somewhere; loop and re-check
		}
	}
}

func (m *Monitor) currentGen() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// WaitForOperationsAdvanced blocks until every currently-active operation
// whose tool name has toolFilter as a prefix (empty filter matches all) is
// terminal, or timeout elapses, then returns the terminal set for those
// operations plus any already in history matching the filter.
func (m *Monitor) WaitForOperationsAdvanced(ctx context.Context, toolFilter string, timeout time.Duration) []*Operation {
	effective := m.effectiveAdvancedTimeout(toolFilter, timeout)
	deadline := time.Now().Add(effective)

	matchIDs := m.activeMatchingIDs(toolFilter)
	for {
		if m.allTerminalOrGone(matchIDs) {
			break
		}
		gen := m.currentGen()
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		select {
		case <-ctx.Done():
			return m.snapshotMatching(toolFilter)
		case <-time.After(remaining):
			return m.snapshotMatching(toolFilter)
		case <-gen:
		}
	}
	return m.snapshotMatching(toolFilter)
}

// effectiveAdvancedTimeout is max(DefaultAdvancedWaitTimeout, requested, the
// longest remaining timeout — declared Timeout minus elapsed, clamped to
// non-negative — among currently-active operations matching toolFilter).
// Operations with no declared Timeout (zero) don't contribute.
func (m *Monitor) effectiveAdvancedTimeout(toolFilter string, requested time.Duration) time.Duration {
	effective := DefaultAdvancedWaitTimeout
	if requested > effective {
		effective = requested
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, op := range m.active {
		if toolFilter != "" && !strings.HasPrefix(op.Tool, toolFilter) {
			continue
		}
		if op.Timeout <= 0 {
			continue
		}
		remaining := op.Timeout - now.Sub(op.CreatedAt)
		if remaining < 0 {
			remaining = 0
		}
		if remaining > effective {
			effective = remaining
		}
	}
	return effective
}

func (m *Monitor) activeMatchingIDs(toolFilter string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool)
	for id, op := range m.active {
		if toolFilter == "" || strings.HasPrefix(op.Tool, toolFilter) {
			out[id] = true
		}
	}
	return out
}

func (m *Monitor) allTerminalOrGone(ids map[string]bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range ids {
		if _, stillActive := m.active[id]; stillActive {
			return false
		}
	}
	return true
}

func (m *Monitor) snapshotMatching(toolFilter string) []*Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Operation, 0)
	for _, op := range m.history {
		if toolFilter == "" || strings.HasPrefix(op.Tool, toolFilter) {
			out = append(out, op.clone())
		}
	}
	return out
}

// CancelOperation triggers the cancellation token for id. Returns true iff
// id existed and was non-terminal at the time of the call.
func (m *Monitor) CancelOperation(id string) bool {
	m.mu.Lock()
	op, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	op.Cancel()
	return true
}
