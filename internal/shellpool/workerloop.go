package shellpool

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"

	execpkg "github.com/mfateev/mcpsandboxd/internal/exec"
	"github.com/mfateev/mcpsandboxd/internal/wireframe"
)

// WorkerFlag is the hidden CLI flag cmd/mcpsandboxd re-execs itself with to
// become a pooled shell worker, the same self-reexec shape internal/sandbox
// uses for Landlock — the process that accepts the flag is already running
// inside the sandbox-wrapped argv the Pool built for it.
const WorkerFlag = "--shell-worker"

// defaultCommandTimeout applies when a ShellCommand carries no TimeoutMs.
const defaultCommandTimeout = 30 * time.Second

// RunWorker is the worker-side loop: decode one ShellCommand at a time from
// in, execute it, and write back one ShellResult on out. It returns when in
// reaches EOF (the host closed the pipe) or a decode error occurs.
func RunWorker(in io.Reader, out io.Writer, mode Mode) error {
	r := wireframe.NewReader(in)
	w := wireframe.NewWriter(out)

	for {
		var cmd ShellCommand
		if err := r.Decode(&cmd); err != nil {
			return err
		}
		result := execOne(cmd, mode)
		if err := w.WriteMessage(&result); err != nil {
			return err
		}
	}
}

func execOne(cmd ShellCommand, mode Mode) ShellResult {
	if len(cmd.Argv) == 0 {
		return ShellResult{ID: cmd.ID, ExitCode: -1, Error: "shellpool: empty argv"}
	}

	timeout := defaultCommandTimeout
	if cmd.TimeoutMs > 0 {
		timeout = time.Duration(cmd.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	if cmd.WorkingDir != "" {
		c.Dir = cmd.WorkingDir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var runErr error

	if mode == ModePTY {
		f, err := pty.Start(c)
		if err != nil {
			return ShellResult{ID: cmd.ID, ExitCode: -1, Error: err.Error()}
		}
		io.Copy(&stdoutBuf, f) //nolint:errcheck
		runErr = c.Wait()
		f.Close()
	} else {
		c.Stdout = &stdoutBuf
		c.Stderr = &stderrBuf
		runErr = c.Run()
	}

	result := ShellResult{ID: cmd.ID}
	result.Stdout, result.Stderr = splitAggregated(stdoutBuf.Bytes(), stderrBuf.Bytes())

	if ctx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		result.Error = ErrTimeout.Error()
		return result
	}

	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result
	}
	if runErr != nil {
		result.ExitCode = -1
		result.Error = runErr.Error()
		return result
	}
	result.ExitCode = 0
	return result
}

// splitAggregated caps stdout and stderr each with internal/exec.LimitOutput,
// the same per-stream capping the adapter's direct, unpooled spawn applies.
// The two streams are not combined, so AggregateOutput's shared byte budget
// does not apply here; below the cap both are returned unmodified.
func splitAggregated(stdout, stderr []byte) (string, string) {
	so, _ := execpkg.LimitOutput(stdout)
	se, _ := execpkg.LimitOutput(stderr)
	return string(so), string(se)
}
