package toolconfig

import (
	"context"
	"os/exec"
	"time"
)

// ProbeFunc runs an availability probe and reports whether it succeeded
// (exit 0). Overridable in tests to avoid spawning real processes.
type ProbeFunc func(ctx context.Context, command string, args []string) bool

// DefaultProbe runs command with args via os/exec and reports exit 0.
func DefaultProbe(ctx context.Context, command string, args []string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, command, args...)
	return cmd.Run() == nil
}

// CheckAvailability runs tc's AvailabilityCheck (if any) and sets
// tc.Available accordingly. A tool with no AvailabilityCheck is always
// considered available. Availability-checked-but-missing tools are marked
// present-but-disabled, not filtered out — callers decide whether to
// surface Available in the catalog response.
func CheckAvailability(ctx context.Context, tc *ToolConfig, probe ProbeFunc) {
	if tc.AvailabilityCheck == nil {
		tc.Available = true
		return
	}
	if probe == nil {
		probe = DefaultProbe
	}
	tc.Available = probe(ctx, tc.AvailabilityCheck.Command, tc.AvailabilityCheck.Args)
}

// CheckAllAvailability runs CheckAvailability for every config in the slice.
func CheckAllAvailability(ctx context.Context, configs []*ToolConfig, probe ProbeFunc) {
	for _, tc := range configs {
		CheckAvailability(ctx, tc, probe)
	}
}
