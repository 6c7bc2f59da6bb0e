package adapter

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/execenv"
	execpkg "github.com/mfateev/mcpsandboxd/internal/exec"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
)

// directExec launches a sandbox-wrapped ChildSpec without going through the
// ShellPool, used when Acquire reports the pool is disabled or at
// capacity and the caller falls back to a direct spawn. envPolicy applies
// the same environment filtering pooled workers get.
func directExec(ctx context.Context, spec *sandbox.ChildSpec, timeout time.Duration, envPolicy *execenv.ShellEnvironmentPolicy) (shellpool.ShellResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = append(execenv.EnvMapToSlice(execenv.CreateEnv(envPolicy)), spec.Env...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()

	stdout, _ := execpkg.LimitOutput(stdoutBuf.Bytes())
	stderr, _ := execpkg.LimitOutput(stderrBuf.Bytes())
	result := shellpool.ShellResult{Stdout: string(stdout), Stderr: string(stderr)}

	if ctx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		result.Error = shellpool.ErrTimeout.Error()
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return shellpool.ShellResult{}, err
	}
	return result, nil
}
