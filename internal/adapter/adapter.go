package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/coreerrors"
	"github.com/mfateev/mcpsandboxd/internal/execpolicy"
	"github.com/mfateev/mcpsandboxd/internal/operation"
	"github.com/mfateev/mcpsandboxd/internal/retry"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

// DefaultApprovalMode selects the execpolicy heuristic fallback applied
// when no explicit rule matches an argv: known-safe commands (per
// command_safety.IsKnownSafeCommand) are allowed, everything else is held
// for Prompt rather than silently auto-approved.
const DefaultApprovalMode = "unless-trusted"

// Request is a parsed tools/call invocation, after MCP-layer argument
// decoding but before argv synthesis.
type Request struct {
	ToolName         string
	Args             map[string]any
	WorkingDirectory string // "" means: default to scope.Primary()
	ProgressToken    any    // nil if the client sent none
	Description      string
}

// Result is the synchronous outcome of a dispatch — either the tool's own
// completed output (synchronous tools, and each step of a sequence) or the
// operation handle for an asynchronous dispatch.
type Result struct {
	Synchronous bool
	Operation   *operation.Operation // always set once the operation is known
	Handle      string               // set for async dispatch: human-readable next-step message
}

// Adapter resolves a tool-call into an argv, runs it through the ShellPool
// under the session's Sandbox, and records the resulting Operation.
type Adapter struct {
	catalog *toolconfig.Catalog
	mgr     sandbox.Manager
	scope   sandbox.Scope
	pool    *shellpool.Pool
	monitor *operation.Monitor
	router  *callback.Router
	policy  *execpolicy.ExecPolicyManager // nil: no command-dispatch gate
}

// New builds an Adapter bound to one session's locked scope, sandbox
// manager, shell pool, operation monitor, and callback router. policy may
// be nil, in which case every synthesized argv is dispatched unchecked.
func New(catalog *toolconfig.Catalog, mgr sandbox.Manager, scope sandbox.Scope, pool *shellpool.Pool, monitor *operation.Monitor, router *callback.Router, policy *execpolicy.ExecPolicyManager) *Adapter {
	return &Adapter{catalog: catalog, mgr: mgr, scope: scope, pool: pool, monitor: monitor, router: router, policy: policy}
}

// checkPolicy gates argv through the exec policy before it ever reaches a
// shell: Forbidden rejects the dispatch outright. Prompt has no human
// approval channel in this headless server, so — like Forbidden — it is
// not silently auto-run; only explicitly Allow-classified argv (an exact
// rule match, or a command_safety-recognized known-safe command under the
// "unless-trusted" fallback) proceeds.
func (a *Adapter) checkPolicy(argv []string) error {
	if a.policy == nil || len(argv) == 0 {
		return nil
	}
	switch decision := a.policy.EvaluateCommand(argv, DefaultApprovalMode); decision {
	case execpolicy.DecisionAllow:
		return nil
	case execpolicy.DecisionForbidden:
		return coreerrors.NewSandboxError(nil, "command %v is forbidden by exec policy", argv)
	default:
		return coreerrors.NewSandboxError(nil, "command %v requires approval and cannot be auto-run by this server", argv)
	}
}

// Dispatch resolves req against the catalog and runs it, synchronously or
// asynchronously per the tool's config.
func (a *Adapter) Dispatch(ctx context.Context, req Request) (*Result, error) {
	tc := a.catalog.Get(req.ToolName)
	if tc == nil {
		return nil, coreerrors.NewConfigError("unknown tool %q", req.ToolName)
	}

	workDir, err := a.resolveWorkingDir(req.WorkingDirectory)
	if err != nil {
		return nil, err
	}

	argv, err := BuildArgv(tc, req.ToolName, req.Args)
	if err != nil {
		return nil, err
	}

	if len(tc.Sequence) > 0 {
		return a.dispatchSequence(ctx, tc, req, workDir)
	}

	if err := a.checkPolicy(argv); err != nil {
		return nil, err
	}

	timeout := time.Duration(tc.Timeout()) * time.Second

	op := operation.New("", tc.Name, describeOp(req, argv))
	op.Timeout = timeout
	a.monitor.AddOperation(op)
	if req.ProgressToken != nil {
		a.router.BindToken(op.ID, req.ProgressToken)
	}

	if tc.Synchronous {
		a.runAndRecord(ctx, op, tc, argv, workDir, timeout)
		return &Result{Synchronous: true, Operation: op}, nil
	}

	a.monitor.UpdateStatus(op.ID, operation.StatePending, nil)
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.runAndRecord(runCtx, op, tc, argv, workDir, timeout)
	}()

	return &Result{
		Synchronous: false,
		Operation:   op,
		Handle:      fmt.Sprintf("Started %s as operation %s. Call \"await\" or \"status\" with this id to retrieve the result.", tc.Name, op.ID),
	}, nil
}

// resolveWorkingDir canonicalizes and validates the caller-supplied working
// directory against scope, defaulting to the scope's primary path when
// omitted.
func (a *Adapter) resolveWorkingDir(requested string) (string, error) {
	if requested == "" {
		return a.scope.Primary(), nil
	}
	canon, err := sandbox.CanonicalizePath(requested)
	if err != nil {
		return "", coreerrors.NewSandboxError(err, "invalid working directory %q", requested)
	}
	if !a.scope.Contains(canon) {
		return "", coreerrors.NewSandboxError(nil, "working directory %q is outside sandbox scope", requested)
	}
	return canon, nil
}

// runAndRecord executes argv through the pool (acquiring a pooled worker
// when available, falling back to a direct sandboxed spawn otherwise),
// observes the operation's cancellation token, and records the terminal
// result on the monitor.
func (a *Adapter) runAndRecord(ctx context.Context, op *operation.Operation, tc *toolconfig.ToolConfig, argv []string, workDir string, timeout time.Duration) {
	a.monitor.UpdateStatus(op.ID, operation.StateInProgress, nil)
	a.emit(op.ID, callback.Update{OperationID: op.ID, Kind: callback.UpdateStarted, Message: tc.Name + ": " + op.Description})

	var result shellpool.ShellResult
	run := func() error {
		r, err := a.execute(ctx, op, argv, workDir, timeout)
		result = r
		if err == nil && r.ExitCode != 0 {
			return fmt.Errorf("%s", r.Error)
		}
		return err
	}

	var err error
	if tc.RetryEnabled {
		err = retryWrap(ctx, retry.NewDefaultPolicy(), run)
	} else {
		err = run()
	}
	if err != nil && result.ExitCode == 0 {
		a.finish(op, operation.StateFailed, &operation.Result{ExitCode: -1, Message: err.Error()})
		return
	}

	state := operation.StateCompleted
	if result.ExitCode != 0 {
		state = operation.StateFailed
	}
	a.finish(op, state, &operation.Result{ExitCode: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr})
}

func (a *Adapter) execute(ctx context.Context, op *operation.Operation, argv []string, workDir string, timeout time.Duration) (shellpool.ShellResult, error) {
	cmd := shellpool.ShellCommand{ID: op.ID, Argv: argv, WorkingDir: workDir, TimeoutMs: int(timeout.Milliseconds())}

	done := make(chan struct{})
	var result shellpool.ShellResult
	var runErr error
	go func() {
		defer close(done)
		handle, err := a.pool.Acquire(ctx, workDir)
		if err != nil {
			// Pool disabled or at capacity: caller falls back to a direct spawn.
			result, runErr = a.spawnDirect(ctx, argv, workDir, timeout)
			return
		}
		defer a.pool.Release(handle)
		result, runErr = a.pool.Execute(handle, cmd)
	}()

	select {
	case <-done:
		return result, runErr
	case <-op.CancelSignal():
		a.finish(op, operation.StateCancelled, &operation.Result{ExitCode: -1, Message: "operation cancelled"})
		<-done
		return shellpool.ShellResult{}, fmt.Errorf("cancelled")
	case <-ctx.Done():
		// Only synchronous dispatch and sequence steps reach here with the
		// originating request's own context: async dispatch runs its execute
		// call under a detached background context, so an MCP-level
		// notifications/cancelled for the (already-returned) dispatching
		// request never lands here for it. Built-in tools (await, status,
		// cancel, discover_tools) never call execute at all, so they are
		// exempt by construction.
		a.finish(op, operation.StateCancelled, &operation.Result{ExitCode: -1, Message: "operation cancelled: " + ctx.Err().Error()})
		<-done
		return shellpool.ShellResult{}, ctx.Err()
	}
}

// spawnDirect runs argv outside the pool under a fresh sandbox-wrapped
// child, the path taken when Acquire reports ErrPoolDisabled/ErrAtCapacity.
func (a *Adapter) spawnDirect(ctx context.Context, argv []string, workDir string, timeout time.Duration) (shellpool.ShellResult, error) {
	if len(argv) == 0 {
		return shellpool.ShellResult{}, coreerrors.NewConfigError("empty argv")
	}
	spec, err := a.mgr.Build(argv[0], argv[1:], workDir, a.scope)
	if err != nil {
		return shellpool.ShellResult{}, coreerrors.NewSandboxError(err, "build sandboxed child")
	}
	return directExec(ctx, spec, timeout, a.pool.EnvPolicy())
}

// finish records a terminal state exactly once (Monitor.UpdateStatus is
// itself idempotent for a given id) and routes the corresponding terminal
// progress notification.
func (a *Adapter) finish(op *operation.Operation, state operation.State, result *operation.Result) {
	a.monitor.UpdateStatus(op.ID, state, result)
	kind := callback.UpdateCompleted
	switch state {
	case operation.StateFailed:
		kind = callback.UpdateFailed
	case operation.StateCancelled:
		kind = callback.UpdateCancelled
	}
	msg := ""
	if result != nil {
		msg = result.Message
	}
	a.emit(op.ID, callback.Update{OperationID: op.ID, Kind: kind, Message: msg})
	a.router.Forget(op.ID)
}

func (a *Adapter) emit(opID string, u callback.Update) {
	if err := a.router.Route(u); err != nil {
		// Notification delivery failure never fails the operation itself.
		_ = err
	}
}

func describeOp(req Request, argv []string) string {
	if req.Description != "" {
		return req.Description
	}
	return fmt.Sprintf("%v", argv)
}

// retryWrap applies a retry.Policy around a single execution, used when a
// ToolConfig opts into the declarative retry wrapper — not on by default
// for any tool.
func retryWrap(ctx context.Context, policy *retry.Policy, fn func() error) error {
	if policy == nil {
		return fn()
	}
	return policy.Do(ctx, fn)
}
