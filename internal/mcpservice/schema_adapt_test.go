package mcpservice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

func TestToJSONSchema_RoundTripsToolConfigSchema(t *testing.T) {
	tc := &toolconfig.ToolConfig{
		Name: "cargo",
		Subcommand: []toolconfig.Subcommand{
			{Name: "build", Options: []toolconfig.Option{{Name: "release", Type: toolconfig.OptionBoolean, Required: true}}},
		},
	}

	schema, err := toJSONSchema(toolconfig.Schema(tc))
	require.NoError(t, err)
	require.NotNil(t, schema)

	roundTripped, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(roundTripped), "release")
	assert.Contains(t, string(roundTripped), "object")
}

func TestToJSONSchema_RejectsUnmarshalableInput(t *testing.T) {
	_, err := toJSONSchema(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
