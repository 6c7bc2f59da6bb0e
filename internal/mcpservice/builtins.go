// Package mcpservice implements the MCP server role: tool
// listing, tools/call routing, the roots handshake, and the four built-in
// tools (await, status, cancel, discover_tools) that are always present
// alongside the externally-configured catalog. The built-in logic in this
// file is deliberately independent of the go-sdk's wire types so it can be
// unit-tested against fakes; server.go is the thin binding layer that
// registers it against a real *mcp.Server.
package mcpservice

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/operation"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

// AwaitRequest is the decoded argument set for the built-in "await" tool.
type AwaitRequest struct {
	Tools string // prefix filter; "" matches every tool
}

// Await blocks until every currently-active operation matching req.Tools is
// terminal (or the monitor's advanced-wait timeout elapses), then returns
// the terminal set — including operations already completed by an earlier
// identical await, since the completion history persists across reads.
func Await(ctx context.Context, monitor *operation.Monitor, req AwaitRequest) []*operation.Operation {
	return monitor.WaitForOperationsAdvanced(ctx, req.Tools, 0)
}

// StatusRequest is the decoded argument set for the built-in "status" tool.
type StatusRequest struct {
	OperationID string
	Tools       string
}

// Status returns a snapshot: the single named operation if OperationID is
// set, else every active and completed operation, optionally filtered by
// tool-name prefix.
func Status(monitor *operation.Monitor, req StatusRequest) []*operation.Operation {
	if req.OperationID != "" {
		if op := monitor.GetOperation(req.OperationID); op != nil {
			return []*operation.Operation{op}
		}
		return nil
	}

	out := append(monitor.GetActiveOperations(), monitor.GetCompletedOperations()...)
	if req.Tools == "" {
		return out
	}
	filtered := out[:0]
	for _, op := range out {
		if strings.HasPrefix(op.Tool, req.Tools) {
			filtered = append(filtered, op)
		}
	}
	return filtered
}

// Cancel requests cancellation of the named operation. Returns true iff
// the operation existed and was non-terminal.
func Cancel(monitor *operation.Monitor, operationID string) bool {
	return monitor.CancelOperation(operationID)
}

// ToolSummary is the catalog entry returned by discover_tools: name,
// description, availability, and the projected MCP input schema.
type ToolSummary struct {
	Name        string
	Description string
	Available   bool
	Schema      map[string]any
}

// DiscoverTools returns the filtered, availability-checked catalog with
// schemas. catalog.Enabled() already leaves out tools whose "enabled" is
// false.
func DiscoverTools(catalog *toolconfig.Catalog) []ToolSummary {
	enabled := catalog.Enabled()
	out := make([]ToolSummary, 0, len(enabled))
	for _, tc := range enabled {
		out = append(out, ToolSummary{
			Name:        tc.Name,
			Description: tc.Description,
			Available:   tc.Available,
			Schema:      toolconfig.Schema(tc),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// defaultHandshakeDeadline is the roots-handshake timeout. ensureActive
// always uses it; the configured handshake timeout (handshake_seconds /
// -handshake-timeout) is not passed through to the handshake.
const defaultHandshakeDeadline = 10 * time.Second
