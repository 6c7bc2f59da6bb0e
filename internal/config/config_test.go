package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/mcpsandboxd/internal/callback"
	"github.com/mfateev/mcpsandboxd/internal/shellpool"
)

func TestLoad_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.HandshakeSeconds)
	assert.Equal(t, shellpool.DefaultConfig().ShellsPerDir, cfg.ShellsPerDir)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, string(callback.ClientTypeDefault), cfg.ClientType)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpsandboxd.toml")
	content := "tools_dir = \"/tools\"\nhandshake_seconds = 42\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tools", cfg.ToolsDir)
	assert.Equal(t, 42, cfg.HandshakeSeconds)
}

func TestBindFlags_OverridesFileValue(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-tools-dir", "/flagged", "-worker-mode", "pty"}))

	assert.Equal(t, "/flagged", cfg.ToolsDir)
	assert.Equal(t, "pty", cfg.WorkerMode)
}

func TestResolvePool_FallsBackToPipeForUnknownMode(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.WorkerMode = "bogus"

	pool := cfg.ResolvePool()
	assert.Equal(t, shellpool.ModePipe, pool.Mode)
}

func TestResolveClientType_DefaultsUnlessNoProgress(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, callback.ClientTypeDefault, cfg.ResolveClientType())

	cfg.ClientType = string(callback.ClientTypeNoProgress)
	assert.Equal(t, callback.ClientTypeNoProgress, cfg.ResolveClientType())
}
