package toolconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFile reads and parses a single tool-config JSON file.
func LoadFile(path string) (*ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("toolconfig: read %s: %w", path, err)
	}
	var tc ToolConfig
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("toolconfig: parse %s: %w", path, err)
	}
	if tc.Name == "" {
		return nil, fmt.Errorf("toolconfig: %s: missing required field \"name\"", path)
	}
	if tc.Command == "" {
		return nil, fmt.Errorf("toolconfig: %s: missing required field \"command\"", path)
	}
	if IsReservedToolName(tc.Name) {
		return nil, fmt.Errorf("toolconfig: %s: %q collides with a built-in tool name", path, tc.Name)
	}
	return &tc, nil
}

// reservedToolNames are the always-present built-in tools; no loaded
// ToolConfig may reuse one of these names.
var reservedToolNames = map[string]bool{
	"await":          true,
	"status":         true,
	"cancel":         true,
	"discover_tools": true,
}

// IsReservedToolName reports whether name collides with one of the
// built-in tools always registered alongside the loaded catalog.
func IsReservedToolName(name string) bool {
	return reservedToolNames[name]
}

// LoadDir reads every *.json file directly under dir as a ToolConfig,
// sorted by name for deterministic catalog ordering. Duplicate tool names
// across files are a load error: the catalog must be unambiguous.
func LoadDir(dir string) ([]*ToolConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("toolconfig: read dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	byName := make(map[string]string, len(paths))
	out := make([]*ToolConfig, 0, len(paths))
	for _, p := range paths {
		tc, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		if prior, dup := byName[tc.Name]; dup {
			return nil, fmt.Errorf("toolconfig: duplicate tool name %q in %s and %s", tc.Name, prior, p)
		}
		byName[tc.Name] = p
		out = append(out, tc)
	}
	return out, nil
}

// Catalog is the name-keyed, read-only view of loaded tool configs the
// Adapter dispatches against and McpService lists from.
type Catalog struct {
	byName map[string]*ToolConfig
	order  []string
}

// NewCatalog builds a Catalog from a slice of configs, preserving order.
func NewCatalog(configs []*ToolConfig) *Catalog {
	c := &Catalog{byName: make(map[string]*ToolConfig, len(configs))}
	for _, tc := range configs {
		c.byName[tc.Name] = tc
		c.order = append(c.order, tc.Name)
	}
	return c
}

// Get returns the tool config named name, or nil if unknown.
func (c *Catalog) Get(name string) *ToolConfig {
	return c.byName[name]
}

// Enabled returns every enabled tool in load order. Disabled tools are
// filtered before the catalog is exposed.
func (c *Catalog) Enabled() []*ToolConfig {
	out := make([]*ToolConfig, 0, len(c.order))
	for _, name := range c.order {
		tc := c.byName[name]
		if tc.IsEnabled() {
			out = append(out, tc)
		}
	}
	return out
}

// All returns every tool config, including disabled ones, in load order.
func (c *Catalog) All() []*ToolConfig {
	out := make([]*ToolConfig, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}
