package toolconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTool(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

func TestLoadFile_RequiresNameAndCommand(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "bad.json", `{"description":"no name or command"}`)

	_, err := LoadFile(filepath.Join(dir, "bad.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestLoadFile_RejectsReservedName(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "status.json", `{"name":"status","command":"echo"}`)

	_, err := LoadFile(filepath.Join(dir, "status.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built-in")
}

func TestLoadDir_SortsAndDetectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "b.json", `{"name":"bbb","command":"echo"}`)
	writeTool(t, dir, "a.json", `{"name":"aaa","command":"echo"}`)
	writeTool(t, dir, "skip.txt", `not json`)

	configs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "aaa", configs[0].Name)
	assert.Equal(t, "bbb", configs[1].Name)

	writeTool(t, dir, "c.json", `{"name":"aaa","command":"echo"}`)
	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tool name")
}

func TestCatalog_EnabledFiltersDisabled(t *testing.T) {
	disabled := false
	cfgs := []*ToolConfig{
		{Name: "on", Command: "echo"},
		{Name: "off", Command: "echo", Enabled: &disabled},
	}
	catalog := NewCatalog(cfgs)

	require.Len(t, catalog.All(), 2)
	enabled := catalog.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "on", enabled[0].Name)
	assert.Nil(t, catalog.Get("missing"))
	assert.Equal(t, "on", catalog.Get("on").Name)
}

func TestToolConfig_TimeoutDefault(t *testing.T) {
	tc := &ToolConfig{Name: "t", Command: "echo"}
	assert.Equal(t, 30, tc.Timeout())
	tc.TimeoutSeconds = 5
	assert.Equal(t, 5, tc.Timeout())
}
