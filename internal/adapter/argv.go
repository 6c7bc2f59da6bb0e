// Package adapter turns a structured (tool, subcommand, arguments) tuple
// into an argv, dispatches it through the ShellPool under the Sandbox, and
// records the resulting Operation. Argv synthesis generalizes a
// hardcoded "bash -c <command>" shape into the externally-configured
// subcommand/option tree of toolconfig.ToolConfig.
package adapter

import (
	"fmt"

	"github.com/mfateev/mcpsandboxd/internal/coreerrors"
	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

// BuildArgv synthesizes the full argv for one tool invocation: base
// command, resolved subcommand segments, then positional args (declared
// order) and options.
//
// rawArgs carries the call's structured arguments: option/positional
// values by name, plus the reserved keys "subcommand" (an explicit
// subcommand path string, used instead of longest-prefix matching on the
// tool name when present) and "raw_args" (a []string escape hatch appended
// verbatim at the end).
func BuildArgv(tc *toolconfig.ToolConfig, flatOrPath string, rawArgs map[string]any) ([]string, error) {
	resolved := resolveNode(tc, flatOrPath, rawArgs)

	argv := []string{tc.Command}
	argv = append(argv, resolved.Segments...)

	if resolved.Node != nil {
		positional, err := positionalArgs(resolved.Node, rawArgs)
		if err != nil {
			return nil, err
		}
		argv = append(argv, positional...)

		options, err := optionArgs(resolved.Node, rawArgs)
		if err != nil {
			return nil, err
		}
		argv = append(argv, options...)
	}

	if raw, ok := rawArgs["raw_args"]; ok {
		extra, err := stringSlice(raw)
		if err != nil {
			return nil, coreerrors.NewConfigError("raw_args: %v", err)
		}
		argv = append(argv, extra...)
	}

	return argv, nil
}

func resolveNode(tc *toolconfig.ToolConfig, flatOrPath string, rawArgs map[string]any) toolconfig.ResolvedPath {
	if sc, ok := rawArgs["subcommand"].(string); ok && sc != "" {
		if r := toolconfig.FindSubcommand(tc, sc); r.Node != nil {
			return r
		}
	}
	return toolconfig.ResolveSubcommand(tc, flatOrPath)
}

// positionalArgs appends every declared positional arg present in rawArgs,
// in the subcommand's declared order. A missing required positional is a
// ConfigError.
func positionalArgs(node *toolconfig.Subcommand, rawArgs map[string]any) ([]string, error) {
	var out []string
	for _, pos := range node.PositionalArgs {
		v, ok := rawArgs[pos.Name]
		if !ok {
			if pos.Required {
				return nil, coreerrors.NewConfigError("missing required positional argument %q", pos.Name)
			}
			continue
		}
		s, err := toString(v)
		if err != nil {
			return nil, coreerrors.NewConfigError("positional argument %q: %v", pos.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// optionArgs emits every declared option present in rawArgs as "--long
// value", "-short value", or a bare flag for booleans. Options are emitted
// in declared order for determinism.
func optionArgs(node *toolconfig.Subcommand, rawArgs map[string]any) ([]string, error) {
	var out []string
	for _, opt := range node.Options {
		v, ok := rawArgs[opt.Name]
		if !ok {
			if opt.Required {
				return nil, coreerrors.NewConfigError("missing required option %q", opt.Name)
			}
			continue
		}
		flag := "--" + opt.Name
		if opt.Alias != "" {
			flag = "-" + opt.Alias
		}
		switch opt.Type {
		case toolconfig.OptionBoolean:
			b, err := toBool(v)
			if err != nil {
				return nil, coreerrors.NewConfigError("option %q: %v", opt.Name, err)
			}
			if b {
				out = append(out, flag)
			}
		default:
			s, err := toString(v)
			if err != nil {
				return nil, coreerrors.NewConfigError("option %q: %v", opt.Name, err)
			}
			out = append(out, flag, s)
		}
	}
	return out, nil
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return fmt.Sprintf("%g", t), nil
	case bool:
		return fmt.Sprintf("%t", t), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return t == "true" || t == "1", nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func stringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		if strs, ok2 := v.([]string); ok2 {
			return strs, nil
		}
		return nil, fmt.Errorf("expected array of strings, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("expected array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}
