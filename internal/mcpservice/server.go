package mcpservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mfateev/mcpsandboxd/internal/adapter"
	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/coreerrors"
	"github.com/mfateev/mcpsandboxd/internal/execpolicy"
	"github.com/mfateev/mcpsandboxd/internal/operation"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/sandboxfsm"
	"github.com/mfateev/mcpsandboxd/internal/session"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

// Options configures Build.
type Options struct {
	Name       string
	Version    string
	Catalog    *toolconfig.Catalog
	SandboxMgr sandbox.Manager
	PoolConfig shellpool.Config
	ClientType callback.ClientType
	// Policy gates every dispatched argv through the exec policy before it
	// reaches a shell. Nil disables the gate entirely.
	Policy *execpolicy.ExecPolicyManager
}

// Build wires one *mcp.Server bound to a fresh session.Session: the four
// built-in tools plus every enabled catalog tool, the roots handshake run
// lazily on first tool call, and progress notifications routed back
// through the connected client's session. It returns the underlying
// Session too, so a caller hosting many connections (internal/httpbridge)
// can register it for lookup and eventual termination.
func Build(opts Options) (*mcp.Server, *session.Session) {
	sess := session.New(opts.Catalog, opts.SandboxMgr, opts.PoolConfig, nil, opts.ClientType, opts.Policy)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	registerBuiltins(server, sess)
	for _, tc := range opts.Catalog.Enabled() {
		registerCatalogTool(server, sess, tc)
	}
	registerSessionTermination(server, sess)

	return server, sess
}

// checkSessionLive rejects a tool call against a session whose FSM has
// already reached Terminated — roots changing after lock, an explicit
// DELETE, or a transport disconnect all land here. A session in any other
// state (including Failed, which callers diagnose via WaitActive instead)
// is unaffected.
func checkSessionLive(sess *session.Session) error {
	if sess.FSM.Current().Phase == sandboxfsm.PhaseTerminated {
		return coreerrors.NewTransportError(nil, "session %s is terminated", sess.ID)
	}
	return nil
}

// ensureActive runs the roots handshake against the client session the
// first time any tool is invoked on sess, then waits for the sandbox to
// become Active. Safe to call redundantly: LockSandbox is idempotent once
// a matching root set is already locked.
func ensureActive(ctx context.Context, sess *session.Session, lister RootsLister) (sandbox.Scope, error) {
	if scope, err := sess.WaitActive(0); err == nil {
		return scope, nil
	}
	if _, err := PerformHandshake(ctx, sess, lister, defaultHandshakeDeadline); err != nil {
		return sandbox.Scope{}, err
	}
	return sess.WaitActive(defaultHandshakeDeadline)
}

func registerBuiltins(server *mcp.Server, sess *session.Session) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "await",
		Description: "Block until active operations (optionally filtered by tool-name prefix) reach a terminal state.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		if err := checkSessionLive(sess); err != nil {
			return nil, nil, err
		}
		tools, _ := args["tools"].(string)
		ops := Await(ctx, sess.Monitor, AwaitRequest{Tools: tools})
		return textResult(renderOperations(ops)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Report the current state of one operation by id, or every active/completed operation.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		if err := checkSessionLive(sess); err != nil {
			return nil, nil, err
		}
		opID, _ := args["operation_id"].(string)
		tools, _ := args["tools"].(string)
		ops := Status(sess.Monitor, StatusRequest{OperationID: opID, Tools: tools})
		return textResult(renderOperations(ops)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel",
		Description: "Request cancellation of a non-terminal operation by id.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		if err := checkSessionLive(sess); err != nil {
			return nil, nil, err
		}
		opID, _ := args["operation_id"].(string)
		if opID == "" {
			return nil, nil, coreerrors.NewConfigError("cancel requires operation_id")
		}
		if Cancel(sess.Monitor, opID) {
			return textResult(fmt.Sprintf("cancellation requested for %s", opID)), nil, nil
		}
		return textResult(fmt.Sprintf("%s is unknown or already terminal", opID)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "discover_tools",
		Description: "List every enabled tool in the catalog with its input schema and availability.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		if err := checkSessionLive(sess); err != nil {
			return nil, nil, err
		}
		return textResult(renderTools(DiscoverTools(sess.Catalog()))), nil, nil
	})
}

func registerCatalogTool(server *mcp.Server, sess *session.Session, tc *toolconfig.ToolConfig) {
	schema, err := toJSONSchema(toolconfig.Schema(tc))
	tool := &mcp.Tool{Name: tc.Name, Description: tc.Description}
	if err == nil {
		tool.InputSchema = schema
	}

	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		if err := checkSessionLive(sess); err != nil {
			return nil, nil, err
		}
		lister, ok := rootsListerFor(req)
		if !ok {
			return nil, nil, coreerrors.NewTransportError(nil, "client session does not support roots/list")
		}
		sess.Router.SetSender(serverSessionSender{session: req.Session})
		if _, err := ensureActive(ctx, sess, lister); err != nil {
			return nil, nil, err
		}

		workDir, _ := args["working_directory"].(string)

		dispatchReq := adapter.Request{
			ToolName:         tc.Name,
			Args:             args,
			WorkingDirectory: workDir,
			ProgressToken:    progressTokenFor(req),
		}
		result, err := sess.Adapter().Dispatch(ctx, dispatchReq)
		if err != nil {
			return nil, nil, err
		}
		if result.Synchronous {
			return textResult(renderOperations([]*operation.Operation{result.Operation})), nil, nil
		}
		return textResult(result.Handle), nil, nil
	})
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func renderOperations(ops []*operation.Operation) string {
	if len(ops) == 0 {
		return "no matching operations"
	}
	var b strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", op.ID, op.Tool, op.State)
		if op.Result != nil {
			if op.Result.Stdout != "" {
				fmt.Fprintf(&b, "  stdout: %s\n", op.Result.Stdout)
			}
			if op.Result.Stderr != "" {
				fmt.Fprintf(&b, "  stderr: %s\n", op.Result.Stderr)
			}
			if op.Result.Message != "" {
				fmt.Fprintf(&b, "  message: %s\n", op.Result.Message)
			}
		}
	}
	return b.String()
}

func renderTools(tools []ToolSummary) string {
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "%s\t%v\t%s\n", t.Name, t.Available, t.Description)
	}
	return b.String()
}
