// Package sandbox builds OS-level confinement for child processes so a tool
// invocation can read broadly but write only within a session's scope.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TestModeEnv relaxes scope-membership validation for CI environments,
// where a working directory's canonicalized form often differs from its
// reported root after symlink resolution (e.g. macOS maps /tmp to
// /private/tmp). When set, Scope.Contains additionally compares the
// symlink-resolved form of both the candidate path and each scope root
// before rejecting a path as out of scope.
const TestModeEnv = "MCPSANDBOXD_TEST_MODE"

func testModeEnabled() bool {
	return os.Getenv(TestModeEnv) != ""
}

// Mechanism selects which OS confinement facility builds the child process.
type Mechanism string

const (
	// MechanismSeatbelt uses macOS sandbox-exec with a generated SBPL profile.
	MechanismSeatbelt Mechanism = "seatbelt"
	// MechanismLandlock uses Linux Landlock rulesets.
	MechanismLandlock Mechanism = "landlock"
	// MechanismNoop bypasses confinement. Must be explicitly requested.
	MechanismNoop Mechanism = "noop"
)

// ParseMechanism parses a string into a Mechanism.
func ParseMechanism(s string) (Mechanism, error) {
	switch s {
	case "seatbelt":
		return MechanismSeatbelt, nil
	case "landlock":
		return MechanismLandlock, nil
	case "noop", "none", "test":
		return MechanismNoop, nil
	default:
		return "", fmt.Errorf("invalid sandbox mechanism %q: must be seatbelt, landlock, or noop", s)
	}
}

// Scope is an ordered list of absolute, canonicalized paths a session may
// write to. The first entry is primary: the default working directory when
// a caller specifies none.
//
// Once built for a session it must never change: a session's scope, once
// locked, is immutable for its lifetime.
type Scope struct {
	paths []string
}

// NewScope canonicalizes and de-duplicates the given paths, preserving order
// of first occurrence. Returns an error if paths is empty.
func NewScope(paths []string) (Scope, error) {
	if len(paths) == 0 {
		return Scope{}, fmt.Errorf("sandbox scope must not be empty")
	}
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		c, err := CanonicalizePath(p)
		if err != nil {
			return Scope{}, fmt.Errorf("canonicalize scope path %q: %w", p, err)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return Scope{paths: out}, nil
}

// Paths returns the scope's canonicalized paths in order.
func (s Scope) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Primary returns the default working directory for this scope, or "" if
// the scope was never initialized.
func (s Scope) Primary() string {
	if len(s.paths) == 0 {
		return ""
	}
	return s.paths[0]
}

// Empty reports whether the scope has no paths.
func (s Scope) Empty() bool {
	return len(s.paths) == 0
}

// Contains reports whether path is inside scope: equal to some scope path,
// or nested under it, after canonicalization. In test mode (TestModeEnv)
// it additionally accepts a symlink-resolved match, relaxing the strict
// comparison CI containers can otherwise fail (e.g. a reported root under
// /tmp whose resolved form lands under /private/tmp).
func (s Scope) Contains(path string) bool {
	c, err := CanonicalizePath(path)
	if err != nil {
		return false
	}
	if pathWithinRoots(c, s.paths) {
		return true
	}
	if !testModeEnabled() {
		return false
	}
	real, err := filepath.EvalSymlinks(c)
	if err != nil {
		return false
	}
	for _, root := range s.paths {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			continue
		}
		if real == realRoot || strings.HasPrefix(real, realRoot+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func pathWithinRoots(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// CanonicalizePath strips a file:// URI scheme if present, resolves ".." and
// symlink-free cleaning via filepath.Clean, and returns an absolute path.
func CanonicalizePath(p string) (string, error) {
	p = strings.TrimPrefix(p, "file://")
	if !filepath.IsAbs(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		p = abs
	}
	return filepath.Clean(p), nil
}

// ChildSpec is the transformed argv/env/dir a Manager produces for launching
// a confined child process.
type ChildSpec struct {
	Argv []string
	Env  []string // additional/overriding environment entries, "KEY=VALUE"
	Dir  string
}

// Manager is the per-mechanism sandbox implementation.
type Manager interface {
	// Build wraps program/args so the resulting child process can only write
	// within scope. Fails if workingDir is outside scope, if scope is empty,
	// or if OS prerequisites for this mechanism are unavailable.
	Build(program string, args []string, workingDir string, scope Scope) (*ChildSpec, error)

	// CheckPrerequisites probes whether this mechanism is usable on the
	// running kernel/OS.
	CheckPrerequisites() error

	// Mechanism identifies which facility this Manager implements.
	Mechanism() Mechanism
}

// ErrScopeEmpty is returned by Build when scope has no paths.
var ErrScopeEmpty = fmt.Errorf("sandbox: scope is empty")

// ErrWorkingDirOutsideScope is returned by Build when workingDir is not
// contained in scope.
type ErrWorkingDirOutsideScope struct {
	WorkingDir string
}

func (e *ErrWorkingDirOutsideScope) Error() string {
	return fmt.Sprintf("sandbox: working directory %q is outside sandbox scope", e.WorkingDir)
}

func validateBuildArgs(workingDir string, scope Scope) error {
	if scope.Empty() {
		return ErrScopeEmpty
	}
	if workingDir != "" && !scope.Contains(workingDir) {
		return &ErrWorkingDirOutsideScope{WorkingDir: workingDir}
	}
	return nil
}
