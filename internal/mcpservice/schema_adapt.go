package mcpservice

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// toJSONSchema adapts the plain map produced by toolconfig.Schema into the
// *jsonschema.Schema shape mcp.Tool.InputSchema wants, by round-tripping
// through JSON rather than hand-translating every field. The map is already
// valid JSON Schema (draft 2020-12 object/properties/required/enum), so the
// unmarshal side does the real work.
func toJSONSchema(raw map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("mcpservice: marshal schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("mcpservice: unmarshal schema: %w", err)
	}
	return &schema, nil
}
