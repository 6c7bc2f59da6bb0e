//go:build !linux

package sandbox

import "fmt"

type landlockManager struct{}

func newLandlockManager() Manager { return &landlockManager{} }

func (l *landlockManager) Mechanism() Mechanism { return MechanismLandlock }

func (l *landlockManager) CheckPrerequisites() error {
	return fmt.Errorf("sandbox: landlock is only available on linux")
}

func (l *landlockManager) Build(program string, args []string, workingDir string, scope Scope) (*ChildSpec, error) {
	return nil, l.CheckPrerequisites()
}

// ApplyAndExec is unreachable off Linux; cmd/mcpsandboxd never re-execs with
// --landlock-exec on this platform.
func ApplyAndExec(scopePaths []string, program string, args []string) error {
	return fmt.Errorf("sandbox: landlock is only available on linux")
}

func detectNestedPlatform() bool { return false }
