package sandbox

import (
	"fmt"
	"os"
	"runtime"
)

// EscapeHatchFlag and EscapeHatchEnv name the two documented ways an
// operator may disable sandboxing. detect_nested refuses to run unless one
// of them is explicitly set, and the startup security error names both.
const (
	EscapeHatchFlag = "--no-sandbox"
	EscapeHatchEnv  = "MCPSANDBOXD_NO_SANDBOX"
)

// NewManager builds the sandbox Manager for the requested mechanism. ""
// selects the platform default (seatbelt on darwin, landlock on linux); on
// any other platform "" is an error, since noop is never chosen implicitly.
func NewManager(mechanism Mechanism) (Manager, error) {
	if mechanism == "" {
		mechanism = defaultMechanism()
		if mechanism == MechanismNoop {
			return nil, fmt.Errorf("sandbox: no confinement mechanism on %s; select noop explicitly to run unconfined", runtime.GOOS)
		}
	}
	switch mechanism {
	case MechanismSeatbelt:
		return newSeatbeltManager(), nil
	case MechanismLandlock:
		return newLandlockManager(), nil
	case MechanismNoop:
		return &NoopManager{}, nil
	default:
		return nil, fmt.Errorf("sandbox: unknown mechanism %q", mechanism)
	}
}

func defaultMechanism() Mechanism {
	switch runtime.GOOS {
	case "darwin":
		return MechanismSeatbelt
	case "linux":
		return MechanismLandlock
	default:
		return MechanismNoop
	}
}

// DetectNested reports whether this process is itself confined by an outer
// sandbox that would prevent it from installing its own. Today this is
// approximated by checking the one documented
// signal per platform. Mechanism availability is probed separately by
// CheckPrerequisites, which runs when a session locks its sandbox and on
// every Build; NewManager does not call it.
func DetectNested() bool {
	return detectNestedPlatform()
}

// NoopManager bypasses confinement. It must only be selected explicitly
// (CLI flag or MCPSANDBOXD_NO_SANDBOX), never as a silent fallback from a
// failed platform mechanism.
type NoopManager struct{}

func (n *NoopManager) Build(program string, args []string, workingDir string, scope Scope) (*ChildSpec, error) {
	if err := validateBuildArgs(workingDir, scope); err != nil {
		return nil, err
	}
	return &ChildSpec{
		Argv: append([]string{program}, args...),
		Dir:  workingDir,
	}, nil
}

func (n *NoopManager) CheckPrerequisites() error { return nil }

func (n *NoopManager) Mechanism() Mechanism { return MechanismNoop }

// noSandboxRequested reports whether an operator has opted into the no-op
// escape hatch via flag or environment variable.
func noSandboxRequested(args []string) bool {
	if os.Getenv(EscapeHatchEnv) != "" {
		return true
	}
	for _, a := range args {
		if a == EscapeHatchFlag {
			return true
		}
	}
	return false
}

// NoSandboxRequested is the exported form of noSandboxRequested, used by
// cmd/mcpsandboxd to decide whether DetectNested's failure should be fatal.
func NoSandboxRequested(args []string) bool {
	return noSandboxRequested(args)
}
