package operation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOperation_ReplacesById(t *testing.T) {
	m := NewMonitor(0, 0)
	op := New("op1", "cargo_build", "build")
	m.AddOperation(op)
	m.UpdateStatus("op1", StateCompleted, &Result{ExitCode: 0})
	require.Len(t, m.GetCompletedOperations(), 1)

	// Reuse the same id for a fresh operation: must replace, not duplicate.
	op2 := New("op1", "cargo_build", "build again")
	m.AddOperation(op2)
	assert.Len(t, m.GetActiveOperations(), 1)
	assert.Empty(t, m.GetCompletedOperations())
}

func TestUpdateStatus_DeduplicatesCompletion(t *testing.T) {
	m := NewMonitor(0, 0)
	op := New("op1", "t", "d")
	m.AddOperation(op)
	for i := 0; i < 5; i++ {
		m.UpdateStatus("op1", StateCompleted, &Result{ExitCode: 0, Stdout: "x"})
	}
	for i := 0; i < 10; i++ {
		got := m.GetCompletedOperations()
		require.Len(t, got, 1)
		assert.Equal(t, "op1", got[0].ID)
		assert.Equal(t, "x", got[0].Result.Stdout)
	}
}

func TestHistoryCap_EvictsOldestTerminal(t *testing.T) {
	m := NewMonitor(2, 0)
	for _, id := range []string{"a", "b", "c"} {
		op := New(id, "t", "d")
		m.AddOperation(op)
		m.UpdateStatus(id, StateCompleted, &Result{})
	}
	got := m.GetCompletedOperations()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestWaitForOperation_ReturnsOnTerminal(t *testing.T) {
	m := NewMonitor(0, time.Second)
	op := New("op1", "t", "d")
	m.AddOperation(op)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.UpdateStatus("op1", StateCompleted, &Result{ExitCode: 0})
	}()

	got := m.WaitForOperation(context.Background(), "op1")
	require.NotNil(t, got)
	assert.Equal(t, StateCompleted, got.State)
}

func TestWaitForOperation_UnknownIDTimesOutPromptly(t *testing.T) {
	m := NewMonitor(0, 50*time.Millisecond)
	start := time.Now()
	got := m.WaitForOperation(context.Background(), "nope")
	assert.Nil(t, got)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestWaitForOperationsAdvanced_WaitsForAllMatching(t *testing.T) {
	m := NewMonitor(0, 0)
	a := New("a", "cargo_build", "")
	b := New("b", "cargo_test", "")
	m.AddOperation(a)
	m.AddOperation(b)

	go func() {
		time.Sleep(5 * time.Millisecond)
		m.UpdateStatus("a", StateCompleted, &Result{})
		time.Sleep(5 * time.Millisecond)
		m.UpdateStatus("b", StateCompleted, &Result{})
	}()

	got := m.WaitForOperationsAdvanced(context.Background(), "cargo", 500*time.Millisecond)
	assert.Len(t, got, 2)

	// Repeating the identical await returns the same set without spawning anything.
	got2 := m.WaitForOperationsAdvanced(context.Background(), "cargo", 500*time.Millisecond)
	assert.Len(t, got2, 2)
}

func TestWaitForOperationsAdvanced_ZeroOperations(t *testing.T) {
	m := NewMonitor(0, 0)
	got := m.WaitForOperationsAdvanced(context.Background(), "nothing", time.Millisecond)
	assert.Empty(t, got)
}

func TestCancelOperation(t *testing.T) {
	m := NewMonitor(0, 0)
	op := New("op1", "t", "d")
	m.AddOperation(op)
	assert.True(t, m.CancelOperation("op1"))
	select {
	case <-op.CancelSignal():
	default:
		t.Fatal("expected cancel signal to be closed")
	}
	assert.False(t, m.CancelOperation("unknown"))
}
