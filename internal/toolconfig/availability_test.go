package toolconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAvailability_NoCheckIsAlwaysAvailable(t *testing.T) {
	tc := &ToolConfig{Name: "t", Command: "echo"}
	CheckAvailability(context.Background(), tc, nil)
	assert.True(t, tc.Available)
}

func TestCheckAvailability_UsesProbeResult(t *testing.T) {
	tc := &ToolConfig{
		Name:              "t",
		Command:           "echo",
		AvailabilityCheck: &AvailabilityCheck{Command: "cargo", Args: []string{"--version"}},
	}

	var gotCommand string
	var gotArgs []string
	probe := func(ctx context.Context, command string, args []string) bool {
		gotCommand, gotArgs = command, args
		return false
	}

	CheckAvailability(context.Background(), tc, probe)
	assert.False(t, tc.Available)
	assert.Equal(t, "cargo", gotCommand)
	assert.Equal(t, []string{"--version"}, gotArgs)
}

func TestCheckAllAvailability_RunsEveryConfig(t *testing.T) {
	configs := []*ToolConfig{
		{Name: "a", Command: "echo"},
		{Name: "b", Command: "echo", AvailabilityCheck: &AvailabilityCheck{Command: "missing-binary-xyz"}},
	}
	CheckAllAvailability(context.Background(), configs, func(ctx context.Context, command string, args []string) bool {
		return command != "missing-binary-xyz"
	})
	assert.True(t, configs[0].Available)
	assert.False(t, configs[1].Available)
}
