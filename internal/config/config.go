// Package config loads mcpsandboxd's optional TOML config file and layers
// command-line flag overrides on top of it, the same precedence order
// (file defaults, then explicit flags win) used throughout the corpus.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/sandbox"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
)

// Config is the fully-resolved server configuration: TOML file values with
// any flags the operator passed layered on top.
type Config struct {
	ToolsDir         string `toml:"tools_dir"`
	SandboxMechanism string `toml:"sandbox_mechanism"`
	NoSandbox        bool   `toml:"-"`
	TestMode         bool   `toml:"-"`
	HTTPAddr         string `toml:"http_addr"`
	HandshakeSeconds int    `toml:"handshake_seconds"`
	ClientType       string `toml:"client_type"`

	ShellsPerDir     int    `toml:"shells_per_dir"`
	MaxTotalShells   int    `toml:"max_total_shells"`
	IdleTimeoutMs    int    `toml:"idle_timeout_ms"`
	SpawnTimeoutMs   int    `toml:"spawn_timeout_ms"`
	CommandTimeoutMs int    `toml:"command_timeout_ms"`
	WorkerMode       string `toml:"worker_mode"`
}

// defaults mirrors shellpool.DefaultConfig's values so the TOML file only
// needs to name what it overrides.
func defaults() Config {
	pool := shellpool.DefaultConfig()
	return Config{
		SandboxMechanism: "", // platform default (seatbelt on darwin, landlock on linux) via sandbox.NewManager
		HandshakeSeconds: 10,
		ClientType:       string(callback.ClientTypeDefault),
		ShellsPerDir:     pool.ShellsPerDir,
		MaxTotalShells:   pool.MaxTotalShells,
		IdleTimeoutMs:    pool.IdleTimeoutMs,
		SpawnTimeoutMs:   pool.SpawnTimeoutMs,
		CommandTimeoutMs: pool.CommandTimeoutMs,
		WorkerMode:       string(pool.Mode),
	}
}

// Load reads an optional TOML file at path (skipped entirely if it does
// not exist) and applies it over the built-in defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers every overridable field on fs, defaulting each flag
// to cfg's current value so an unset flag is a no-op.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ToolsDir, "tools-dir", c.ToolsDir, "directory of *.json tool descriptors")
	fs.StringVar(&c.SandboxMechanism, "sandbox-mechanism", c.SandboxMechanism, "seatbelt|landlock|noop (empty: platform default)")
	fs.BoolVar(&c.NoSandbox, "no-sandbox", c.NoSandbox, "disable sandbox confinement entirely (also: "+sandbox.EscapeHatchEnv+")")
	fs.BoolVar(&c.TestMode, "test-mode", c.TestMode, "relax scope path validation for CI (also: "+sandbox.TestModeEnv+")")
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "address to serve the streamable-HTTP bridge on (empty: stdio transport)")
	fs.IntVar(&c.HandshakeSeconds, "handshake-timeout", c.HandshakeSeconds, "handshake timeout in seconds (stored in Config only; the roots handshake always uses a fixed 10s deadline)")
	fs.StringVar(&c.ClientType, "client-type", c.ClientType, "default|no-progress")
	fs.IntVar(&c.ShellsPerDir, "shells-per-dir", c.ShellsPerDir, "max pooled shell workers per working directory")
	fs.IntVar(&c.MaxTotalShells, "max-total-shells", c.MaxTotalShells, "max pooled shell workers across all directories")
	fs.IntVar(&c.IdleTimeoutMs, "idle-timeout-ms", c.IdleTimeoutMs, "idle worker eviction timeout")
	fs.IntVar(&c.SpawnTimeoutMs, "spawn-timeout-ms", c.SpawnTimeoutMs, "worker spawn+health-check timeout")
	fs.IntVar(&c.CommandTimeoutMs, "command-timeout-ms", c.CommandTimeoutMs, "default per-command timeout inside a pooled worker")
	fs.StringVar(&c.WorkerMode, "worker-mode", c.WorkerMode, "pipe|pty")
}

// ResolvePool materializes the shellpool.Config this Config describes.
func (c *Config) ResolvePool() shellpool.Config {
	mode := shellpool.Mode(c.WorkerMode)
	if mode != shellpool.ModePipe && mode != shellpool.ModePTY {
		mode = shellpool.ModePipe
	}
	return shellpool.Config{
		ShellsPerDir:     c.ShellsPerDir,
		MaxTotalShells:   c.MaxTotalShells,
		IdleTimeoutMs:    c.IdleTimeoutMs,
		SpawnTimeoutMs:   c.SpawnTimeoutMs,
		CommandTimeoutMs: c.CommandTimeoutMs,
		Mode:             mode,
	}
}

// ResolveClientType maps the configured string to a callback.ClientType,
// defaulting to ClientTypeDefault for anything unrecognized.
func (c *Config) ResolveClientType() callback.ClientType {
	if callback.ClientType(c.ClientType) == callback.ClientTypeNoProgress {
		return callback.ClientTypeNoProgress
	}
	return callback.ClientTypeDefault
}
