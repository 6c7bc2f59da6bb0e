package toolconfig

// Schema projects a ToolConfig into the MCP JSON-schema shape registered
// for a tool: subcommand becomes an enum property, options and positional
// args become typed properties,
// and the common properties (working_directory, raw args escape hatch) are
// always injected. Returned as a plain map so it can be handed straight to
// mcp.Tool.InputSchema without a code-generation step, matching how the
// go-sdk's own client-side Tool.InputSchema is consumed elsewhere in the
// corpus (as map[string]interface{}, not a generated struct).
func Schema(tc *ToolConfig) map[string]any {
	props := map[string]any{
		"working_directory": map[string]any{
			"type":        "string",
			"description": "Working directory for the command; must be inside the sandbox scope. Defaults to the scope's primary path.",
		},
		"raw_args": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Escape hatch: additional raw arguments appended verbatim after the synthesized argv.",
		},
	}
	var required []string

	if names := subcommandEnum(tc); len(names) > 0 {
		props["subcommand"] = map[string]any{
			"type": "string",
			"enum": names,
		}
	}

	addOptionsAndPositionals(props, &required, tc.Subcommand)

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// subcommandEnum flattens every node name in the subcommand tree into the
// enum of acceptable "subcommand" values, depth-first.
func subcommandEnum(tc *ToolConfig) []string {
	var names []string
	var walk func([]Subcommand)
	walk = func(nodes []Subcommand) {
		for _, n := range nodes {
			names = append(names, n.Name)
			walk(n.Subcommand)
		}
	}
	walk(tc.Subcommand)
	return names
}

// addOptionsAndPositionals merges every option/positional-arg across the
// whole subcommand tree into one flat property set. Tools route a single
// subcommand per call, so the schema is permissive (any known option or
// positional name from any branch). At dispatch time the Adapter emits only
// the options and positionals declared on the resolved branch; an argument
// declared only on another branch is ignored, not rejected.
func addOptionsAndPositionals(props map[string]any, required *[]string, nodes []Subcommand) {
	for _, n := range nodes {
		for _, opt := range n.Options {
			if _, exists := props[opt.Name]; exists {
				continue
			}
			props[opt.Name] = map[string]any{
				"type":        jsonSchemaType(opt.Type),
				"description": opt.Description,
			}
			if opt.Required {
				*required = append(*required, opt.Name)
			}
		}
		for _, pos := range n.PositionalArgs {
			if _, exists := props[pos.Name]; exists {
				continue
			}
			props[pos.Name] = map[string]any{
				"type":        "string",
				"description": pos.Description,
			}
			if pos.Required {
				*required = append(*required, pos.Name)
			}
		}
		addOptionsAndPositionals(props, required, n.Subcommand)
	}
}

func jsonSchemaType(t OptionType) string {
	switch t {
	case OptionBoolean:
		return "boolean"
	case OptionNumber:
		return "number"
	default:
		return "string"
	}
}
