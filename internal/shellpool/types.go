// Package shellpool keeps warm, sandboxed shell-worker subprocesses keyed by
// working directory, amortizing the cost of re-confining a process (SBPL
// profile synthesis, Landlock ruleset installation) across many commands
// run in the same directory.
package shellpool

import (
	"errors"

	"github.com/mfateev/mcpsandboxd/internal/execenv"
)

// Mode selects how a pooled worker runs commands internally.
type Mode string

const (
	// ModePipe runs each command as a plain os/exec.Cmd with piped
	// stdout/stderr — the default for non-interactive tools.
	ModePipe Mode = "pipe"
	// ModePTY runs each command attached to a pseudo-terminal, for tools
	// that require TTY semantics (line discipline, isatty checks).
	ModePTY Mode = "pty"
)

// ShellCommand is one unit of work handed to a pooled worker.
type ShellCommand struct {
	ID         string   `json:"id"`
	Argv       []string `json:"argv"`
	WorkingDir string   `json:"working_dir,omitempty"`
	TimeoutMs  int      `json:"timeout_ms,omitempty"`
}

// ShellResult is a worker's response to one ShellCommand.
type ShellResult struct {
	ID       string `json:"id"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ErrTimeout is returned when a command does not complete within its
// timeout.
var ErrTimeout = errors.New("shellpool: command timed out")

// ErrProcessDied is returned when the worker process exits unexpectedly
// while a command is outstanding.
var ErrProcessDied = errors.New("shellpool: worker process died")

// ErrPoolDisabled is returned by Acquire when the pool has zero capacity
// configured — callers fall back to a direct, unpooled spawn.
var ErrPoolDisabled = errors.New("shellpool: pool disabled")

// ErrAtCapacity is returned by Acquire when every slot for the requested
// directory, or the pool overall, is in use.
var ErrAtCapacity = errors.New("shellpool: at capacity")

// Config bounds the pool's resource usage.
type Config struct {
	ShellsPerDir     int
	MaxTotalShells   int
	IdleTimeoutMs    int
	SpawnTimeoutMs   int
	CommandTimeoutMs int
	Mode             Mode

	// EnvPolicy filters the environment handed to every spawned worker and
	// direct-exec fallback. Nil means execenv.DefaultShellEnvironmentPolicy
	// (inherit everything, no filtering).
	EnvPolicy *execenv.ShellEnvironmentPolicy
}

// DefaultConfig returns the pool's built-in bounds.
func DefaultConfig() Config {
	return Config{
		ShellsPerDir:     4,
		MaxTotalShells:   32,
		IdleTimeoutMs:    5 * 60 * 1000,
		SpawnTimeoutMs:   10 * 1000,
		CommandTimeoutMs: 30 * 1000,
		Mode:             ModePipe,
	}
}
