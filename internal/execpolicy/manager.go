package execpolicy

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mfateev/mcpsandboxd/internal/command_safety"
)

// ExecPolicyManager loads and evaluates exec policy rules against argv
// the Adapter is about to run on a ShellPool worker, classifying each
// into Allow/Prompt/Forbidden before the command ever reaches a shell.
type ExecPolicyManager struct {
	policy *Policy
	mu     sync.RWMutex
}

// NewExecPolicyManager creates a manager with a pre-built policy.
func NewExecPolicyManager(policy *Policy) *ExecPolicyManager {
	return &ExecPolicyManager{policy: policy}
}

// LoadExecPolicy reads all *.rules files from {configDir}/rules/ and parses
// them into an ExecPolicyManager.
func LoadExecPolicy(configDir string) (*ExecPolicyManager, error) {
	rulesDir := filepath.Join(configDir, "rules")

	entries, err := os.ReadDir(rulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			// No rules directory — return empty policy
			return NewExecPolicyManager(NewPolicy()), nil
		}
		return nil, err
	}

	merged := NewPolicy()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rules") {
			continue
		}
		path := filepath.Join(rulesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		p, err := ParsePolicy(path, string(data))
		if err != nil {
			return nil, err
		}
		merged.Merge(p)
	}

	return NewExecPolicyManager(merged), nil
}

// LoadExecPolicyFromSource parses a raw rules source string into a manager,
// for rules embedded directly in a tool config rather than read from disk.
func LoadExecPolicyFromSource(source string) (*ExecPolicyManager, error) {
	if source == "" {
		return NewExecPolicyManager(NewPolicy()), nil
	}

	p, err := ParsePolicy("inline-rules", source)
	if err != nil {
		return nil, err
	}
	return NewExecPolicyManager(p), nil
}

// EvaluateCommand evaluates a shell command against the policy.
//
// approvalMode determines the heuristic fallback when no rule matches:
//   - "unless-trusted": IsKnownSafeCommand → Allow, else Prompt
//   - "never":          Allow (auto-approve everything)
//   - "on-failure":     Allow (runs in sandbox, escalate on failure)
func (m *ExecPolicyManager) EvaluateCommand(cmd []string, approvalMode string) Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Parse bash -lc "..." into individual commands
	subCommands := command_safety.ParseShellLcPlainCommands(cmd)
	if subCommands == nil {
		// Can't parse — treat the whole command as a single unit
		subCommands = [][]string{cmd}
	}

	fallback := m.heuristicFallback(approvalMode)
	eval := m.policy.CheckMultiple(subCommands, fallback)
	return eval.Decision
}

// EvaluateShellCommand is a convenience method that wraps a shell command
// string as ["bash", "-c", command] before evaluating.
func (m *ExecPolicyManager) EvaluateShellCommand(command, approvalMode string) Decision {
	return m.EvaluateCommand([]string{"bash", "-c", command}, approvalMode)
}

// GetEvaluation returns the full evaluation (including justification) for a command.
func (m *ExecPolicyManager) GetEvaluation(cmd []string, approvalMode string) Evaluation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subCommands := command_safety.ParseShellLcPlainCommands(cmd)
	if subCommands == nil {
		subCommands = [][]string{cmd}
	}

	fallback := m.heuristicFallback(approvalMode)
	return m.policy.CheckMultiple(subCommands, fallback)
}

// AppendAndReload appends a prefix rule to the rules file and reloads the policy.
func (m *ExecPolicyManager) AppendAndReload(configDir string, prefix []string) error {
	rulesFile := filepath.Join(configDir, "rules", "default.rules")
	if err := AppendAllowPrefixRule(rulesFile, prefix); err != nil {
		return err
	}

	// Reload
	newManager, err := LoadExecPolicy(configDir)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = newManager.policy
	return nil
}

// heuristicFallback returns the fallback function for the given approval mode.
func (m *ExecPolicyManager) heuristicFallback(approvalMode string) func([]string) Decision {
	switch approvalMode {
	case "never", "":
		return func(cmd []string) Decision {
			return DecisionAllow
		}
	case "on-failure":
		return func(cmd []string) Decision {
			return DecisionAllow
		}
	case "unless-trusted":
		return func(cmd []string) Decision {
			if command_safety.IsKnownSafeCommand(cmd) {
				return DecisionAllow
			}
			return DecisionPrompt
		}
	default:
		// Unknown mode — default to prompt
		return func(cmd []string) Decision {
			return DecisionPrompt
		}
	}
}
