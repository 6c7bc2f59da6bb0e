package toolconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_IncludesCommonProperties(t *testing.T) {
	tc := &ToolConfig{Name: "cargo"}
	schema := Schema(tc)

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "working_directory")
	assert.Contains(t, props, "raw_args")
	assert.NotContains(t, schema, "required")
}

func TestSchema_SubcommandEnumAndOptions(t *testing.T) {
	tc := &ToolConfig{
		Name: "cargo",
		Subcommand: []Subcommand{
			{
				Name: "build",
				Options: []Option{
					{Name: "release", Type: OptionBoolean, Required: true},
				},
				PositionalArgs: []PositionalArg{
					{Name: "package", Required: true},
				},
				Subcommand: []Subcommand{
					{Name: "nested", Options: []Option{{Name: "jobs", Type: OptionNumber}}},
				},
			},
		},
	}

	schema := Schema(tc)
	props := schema["properties"].(map[string]any)

	sub := props["subcommand"].(map[string]any)
	assert.Equal(t, []string{"build", "nested"}, sub["enum"])

	release := props["release"].(map[string]any)
	assert.Equal(t, "boolean", release["type"])

	jobs := props["jobs"].(map[string]any)
	assert.Equal(t, "number", jobs["type"])

	pkg := props["package"].(map[string]any)
	assert.Equal(t, "string", pkg["type"])

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"release", "package"}, required)
}

func TestSchema_DoesNotDuplicateRepeatedOptionNames(t *testing.T) {
	tc := &ToolConfig{
		Name: "cargo",
		Subcommand: []Subcommand{
			{Name: "build", Options: []Option{{Name: "verbose", Type: OptionBoolean}}},
			{Name: "test", Options: []Option{{Name: "verbose", Type: OptionBoolean, Description: "second"}}},
		},
	}

	schema := Schema(tc)
	props := schema["properties"].(map[string]any)
	verbose := props["verbose"].(map[string]any)
	assert.Empty(t, verbose["description"])
}
