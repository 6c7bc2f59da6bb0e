package adapter

import (
	"context"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/operation"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

// dispatchSequence executes tc's declared sequence of sub-invocations in
// order, honoring step_delay_ms between them. Each step is dispatched as a
// normal, usually-synchronous
// invocation of some other catalog tool. If any step fails non-recoverably,
// remaining steps are skipped and the sequence reports the first error.
//
// The whole sequence is tracked as a single Operation on the originating
// tool's name, whose Result aggregates each step's stdout/stderr.
func (a *Adapter) dispatchSequence(ctx context.Context, tc *toolconfig.ToolConfig, req Request, workDir string) (*Result, error) {
	op := operation.New("", tc.Name, "sequence: "+req.Description)
	op.Timeout = time.Duration(tc.Timeout()) * time.Second
	a.monitor.AddOperation(op)
	if req.ProgressToken != nil {
		a.router.BindToken(op.ID, req.ProgressToken)
	}
	a.monitor.UpdateStatus(op.ID, operation.StateInProgress, nil)
	a.emit(op.ID, callback.Update{OperationID: op.ID, Kind: callback.UpdateStarted, Message: tc.Name + ": running sequence"})

	run := func() {
		var stdout, stderr string
		delay := time.Duration(tc.StepDelayMs) * time.Millisecond

		for i, step := range tc.Sequence {
			stepTC := a.catalog.Get(step.Tool)
			if stepTC == nil {
				a.finish(op, operation.StateFailed, &operation.Result{ExitCode: -1, Message: "unknown sequence tool " + step.Tool})
				return
			}

			args := step.Args
			if args == nil {
				args = map[string]any{}
			}
			if step.Subcommand != "" {
				args["subcommand"] = step.Subcommand
			}

			argv, err := BuildArgv(stepTC, step.Tool, args)
			if err != nil {
				a.finish(op, operation.StateFailed, &operation.Result{ExitCode: -1, Message: err.Error()})
				return
			}
			if err := a.checkPolicy(argv); err != nil {
				a.finish(op, operation.StateFailed, &operation.Result{ExitCode: -1, Stdout: stdout, Stderr: stderr, Message: err.Error()})
				return
			}

			stepOp := operation.New("", step.Tool, step.Description)
			timeout := time.Duration(stepTC.Timeout()) * time.Second
			res, err := a.execute(ctx, stepOp, argv, workDir, timeout)
			if err != nil {
				a.finish(op, operation.StateFailed, &operation.Result{ExitCode: -1, Stdout: stdout, Stderr: stderr, Message: err.Error()})
				return
			}
			stdout += res.Stdout
			stderr += res.Stderr
			if res.ExitCode != 0 {
				a.finish(op, operation.StateFailed, &operation.Result{ExitCode: res.ExitCode, Stdout: stdout, Stderr: stderr, Message: "sequence step failed"})
				return
			}

			if i < len(tc.Sequence)-1 && delay > 0 {
				select {
				case <-ctx.Done():
					a.finish(op, operation.StateCancelled, &operation.Result{ExitCode: -1, Stdout: stdout, Stderr: stderr, Message: "sequence cancelled"})
					return
				case <-time.After(delay):
				}
			}
		}
		a.finish(op, operation.StateCompleted, &operation.Result{ExitCode: 0, Stdout: stdout, Stderr: stderr})
	}

	if tc.Synchronous {
		run()
		return &Result{Synchronous: true, Operation: op}, nil
	}
	go run()
	return &Result{Synchronous: false, Operation: op, Handle: "Started sequence " + tc.Name + " as operation " + op.ID + ". Call \"await\" or \"status\" with this id to retrieve the result."}, nil
}
