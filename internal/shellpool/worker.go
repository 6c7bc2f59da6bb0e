package shellpool

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mfateev/mcpsandboxd/internal/execenv"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/wireframe"
)

// worker is one live, sandboxed shell-worker subprocess pinned to a single
// working directory. Commands are dispatched one at a time — concurrency
// across a directory comes from pooling multiple workers, not from
// multiplexing one worker's stdin — the pool is keyed by working_dir alone,
// with a per-directory cap.
type worker struct {
	dir      string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	w        *wireframe.Writer
	r        *wireframe.Reader
	mu       sync.Mutex
	healthy  bool
	lastUsed time.Time
}

// spawnWorker builds a confined child via mgr (already carrying the
// session's scope) re-invoking the current binary with WorkerFlag, and
// waits up to spawnTimeout for it to come up healthy.
func spawnWorker(ctx context.Context, mgr sandbox.Manager, scope sandbox.Scope, dir string, mode Mode, spawnTimeout time.Duration, envPolicy *execenv.ShellEnvironmentPolicy) (*worker, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("shellpool: resolve self executable: %w", err)
	}

	spec, err := mgr.Build(self, []string{WorkerFlag, string(mode)}, dir, scope)
	if err != nil {
		return nil, fmt.Errorf("shellpool: build sandboxed worker: %w", err)
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = append(execenv.EnvMapToSlice(execenv.CreateEnv(envPolicy)), spec.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("shellpool: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("shellpool: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("shellpool: start worker: %w", err)
	}

	w := &worker{
		dir:      dir,
		cmd:      cmd,
		stdin:    stdin,
		w:        wireframe.NewWriter(stdin),
		r:        wireframe.NewReader(stdout),
		healthy:  true,
		lastUsed: time.Now(),
	}

	if err := w.healthCheck(spawnTimeout); err != nil {
		w.close()
		return nil, fmt.Errorf("shellpool: worker failed health probe: %w", err)
	}
	return w, nil
}

var healthProbeArgv = []string{"/bin/sh", "-c", ":"}

// healthCheck sends a trivial probe command and confirms a well-formed
// response arrives within timeout. Called on spawn and before release back
// to the pool; the idle janitor does not call it and evicts by idle time
// alone.
func (w *worker) healthCheck(timeout time.Duration) error {
	res, err := w.runLocked(ShellCommand{ID: "health", Argv: healthProbeArgv, TimeoutMs: int(timeout.Milliseconds())})
	if err != nil {
		w.healthy = false
		return err
	}
	if res.Error != "" {
		w.healthy = false
		return fmt.Errorf("health probe failed: %s", res.Error)
	}
	w.healthy = true
	return nil
}

// run executes one command against this worker. Only one command may be
// outstanding at a time per worker.
func (w *worker) run(cmd ShellCommand) (ShellResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.healthy {
		return ShellResult{}, ErrProcessDied
	}
	return w.runLocked(cmd)
}

func (w *worker) runLocked(cmd ShellCommand) (ShellResult, error) {
	if err := w.w.WriteMessage(&cmd); err != nil {
		w.healthy = false
		return ShellResult{}, fmt.Errorf("%w: %v", ErrProcessDied, err)
	}

	type decodeResult struct {
		res ShellResult
		err error
	}
	done := make(chan decodeResult, 1)
	go func() {
		var res ShellResult
		err := w.r.Decode(&res)
		done <- decodeResult{res, err}
	}()

	timeout := defaultCommandTimeout
	if cmd.TimeoutMs > 0 {
		timeout = time.Duration(cmd.TimeoutMs) * time.Millisecond
	}

	select {
	case d := <-done:
		if d.err != nil {
			w.healthy = false
			return ShellResult{}, fmt.Errorf("%w: %v", ErrProcessDied, d.err)
		}
		w.lastUsed = time.Now()
		return d.res, nil
	case <-time.After(timeout + 2*time.Second):
		w.healthy = false
		return ShellResult{}, ErrTimeout
	}
}

func (w *worker) close() {
	w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
}

func (w *worker) isIdleSince(cutoff time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed.Before(cutoff)
}
