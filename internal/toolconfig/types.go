// Package toolconfig loads the externally-authored JSON tool descriptors
// that drive the Adapter's argv synthesis and the MCP service's tool
// catalog. A ToolConfig is read-only once loaded; the filesystem is the
// only out-of-scope collaborator this package depends on.
package toolconfig

// OptionType is the declared value type of a named option.
type OptionType string

const (
	OptionString  OptionType = "string"
	OptionBoolean OptionType = "boolean"
	OptionNumber  OptionType = "number"
)

// Option describes one named flag a subcommand accepts.
type Option struct {
	Name        string     `json:"name"`
	Type        OptionType `json:"type"`
	Alias       string     `json:"alias,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
}

// PositionalArg describes one positional argument a subcommand accepts, in
// declared order.
type PositionalArg struct {
	Name        string `json:"name"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// Subcommand is one node of a tool's recursive subcommand tree.
type Subcommand struct {
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Options        []Option        `json:"options,omitempty"`
	PositionalArgs []PositionalArg `json:"positional_args,omitempty"`
	Subcommand     []Subcommand    `json:"subcommand,omitempty"`
}

// SequenceStep is one entry in a tool's ordered composition of other tool
// invocations.
type SequenceStep struct {
	Tool        string         `json:"tool"`
	Subcommand  string         `json:"subcommand,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Description string         `json:"description,omitempty"`
}

// AvailabilityCheck is a command+args probe whose exit 0 means "installed".
type AvailabilityCheck struct {
	Command           string   `json:"command"`
	Args              []string `json:"args,omitempty"`
	SkipSubcommandArgs bool    `json:"skip_subcommand_args,omitempty"`
}

// ToolConfig is the read-only descriptor for one external tool, loaded
// from a JSON file.
type ToolConfig struct {
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	Command            string             `json:"command"`
	Enabled            *bool              `json:"enabled,omitempty"`
	Synchronous        bool               `json:"synchronous,omitempty"`
	TimeoutSeconds     int                `json:"timeout_seconds,omitempty"`
	Subcommand         []Subcommand       `json:"subcommand,omitempty"`
	Sequence           []SequenceStep     `json:"sequence,omitempty"`
	StepDelayMs        int                `json:"step_delay_ms,omitempty"`
	AvailabilityCheck  *AvailabilityCheck `json:"availability_check,omitempty"`
	InstallInstructions string            `json:"install_instructions,omitempty"`
	RetryEnabled       bool               `json:"retry_enabled,omitempty"`

	// Available is populated by CheckAvailability, not by the JSON loader.
	Available bool `json:"-"`
}

// IsEnabled reports whether this tool should be exposed to clients.
// Absent "enabled" defaults to true; explicit false filters the tool out.
func (t *ToolConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Timeout returns the tool's declared timeout, defaulting to 30s.
func (t *ToolConfig) Timeout() int {
	if t.TimeoutSeconds <= 0 {
		return 30
	}
	return t.TimeoutSeconds
}
