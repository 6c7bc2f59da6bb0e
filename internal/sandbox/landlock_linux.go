//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// landlockABIVersion is the Landlock ABI version named in CheckPrerequisites'
// error message. The access rights requested below are all ABI v1 rights
// (LANDLOCK_ACCESS_FS_REFER is not requested), and the probe does not query
// the running kernel's ABI version.
const landlockABIVersion = 2

// landlockReadAccess grants broad read traversal: shells must load
// dot-files, shared libraries and toolchain data from many paths, and
// blanket read denial has been observed to abort shell startup.
const landlockReadAccess = unix.LANDLOCK_ACCESS_FS_EXECUTE |
	unix.LANDLOCK_ACCESS_FS_READ_FILE |
	unix.LANDLOCK_ACCESS_FS_READ_DIR

// landlockWriteAccess is layered on top of landlockReadAccess for scope
// paths only.
const landlockWriteAccess = unix.LANDLOCK_ACCESS_FS_WRITE_FILE |
	unix.LANDLOCK_ACCESS_FS_REMOVE_DIR |
	unix.LANDLOCK_ACCESS_FS_REMOVE_FILE |
	unix.LANDLOCK_ACCESS_FS_MAKE_CHAR |
	unix.LANDLOCK_ACCESS_FS_MAKE_DIR |
	unix.LANDLOCK_ACCESS_FS_MAKE_REG |
	unix.LANDLOCK_ACCESS_FS_MAKE_SOCK |
	unix.LANDLOCK_ACCESS_FS_MAKE_FIFO |
	unix.LANDLOCK_ACCESS_FS_MAKE_BLOCK |
	unix.LANDLOCK_ACCESS_FS_MAKE_SYM

const (
	// ReexecEnv marks a re-invocation of this binary as the Landlock
	// pre-exec wrapper: the real command follows "--" in argv.
	ReexecEnv = "MCPSANDBOXD_LANDLOCK_EXEC"
	// ScopeEnv carries the scope paths the wrapper should grant write
	// access to, colon-separated.
	ScopeEnv = "MCPSANDBOXD_LANDLOCK_SCOPE"
)

type landlockManager struct{}

func newLandlockManager() Manager { return &landlockManager{} }

func (l *landlockManager) Mechanism() Mechanism { return MechanismLandlock }

func (l *landlockManager) CheckPrerequisites() error {
	attr := unix.LandlockRulesetAttr{
		Handled_access_fs: uint64(landlockReadAccess | landlockWriteAccess),
	}
	fd, err := unix.LandlockCreateRuleset(&attr, 0)
	if err != nil {
		return fmt.Errorf("sandbox: landlock unavailable (kernel lacks ABI >= %d): %w", landlockABIVersion, err)
	}
	unix.Close(fd)
	return nil
}

// Build re-invokes the current executable as a pre-exec wrapper: the
// wrapper applies the Landlock ruleset to itself, then replaces itself
// (syscall.Exec semantics, see ApplyAndExec) with the real command. This is
// the only way to restrict-self strictly before exec in a language without
// fork()-then-syscalls-then-exec in the child, matching the self re-exec
// pattern used by sandboxed worker pools in the wild.
func (l *landlockManager) Build(program string, args []string, workingDir string, scope Scope) (*ChildSpec, error) {
	if err := validateBuildArgs(workingDir, scope); err != nil {
		return nil, err
	}
	if err := l.CheckPrerequisites(); err != nil {
		return nil, err
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve self executable: %w", err)
	}
	argv := append([]string{self, "--landlock-exec", "--"}, append([]string{program}, args...)...)
	scopeJoined := ""
	for i, p := range scope.Paths() {
		if i > 0 {
			scopeJoined += ":"
		}
		scopeJoined += p
	}
	env := []string{
		ReexecEnv + "=1",
		ScopeEnv + "=" + scopeJoined,
	}
	return &ChildSpec{Argv: argv, Env: env, Dir: workingDir}, nil
}

// ApplyAndExec is invoked by cmd/mcpsandboxd when re-exec'd with
// --landlock-exec: it restricts the current process's filesystem access per
// scopePaths, then execs program/args in place. It never returns on success.
func ApplyAndExec(scopePaths []string, program string, args []string) error {
	if err := restrictSelf(scopePaths); err != nil {
		return err
	}
	resolved, err := exec.LookPath(program)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", program, err)
	}
	full := append([]string{program}, args...)
	return unix.Exec(resolved, full, os.Environ())
}

func restrictSelf(scopePaths []string) error {
	attr := unix.LandlockRulesetAttr{
		Handled_access_fs: uint64(landlockReadAccess | landlockWriteAccess),
	}
	rulesetFd, err := unix.LandlockCreateRuleset(&attr, 0)
	if err != nil {
		return fmt.Errorf("landlock_create_ruleset: %w", err)
	}
	defer unix.Close(rulesetFd)

	if err := addPathRule(rulesetFd, "/", landlockReadAccess); err != nil {
		return err
	}
	for _, p := range scopePaths {
		if p == "" {
			continue
		}
		if err := addPathRule(rulesetFd, p, landlockReadAccess|landlockWriteAccess); err != nil {
			return err
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	if err := unix.LandlockRestrictSelf(rulesetFd, 0); err != nil {
		return fmt.Errorf("landlock_restrict_self: %w", err)
	}
	return nil
}

func addPathRule(rulesetFd int, path string, access uint64) error {
	fd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %q for landlock rule: %w", path, err)
	}
	defer unix.Close(fd)

	pathBeneath := unix.LandlockPathBeneathAttr{
		Allowed_access: access,
		Parent_fd:      int32(fd),
	}
	if err := unix.LandlockAddPathBeneathRule(rulesetFd, &pathBeneath, 0); err != nil {
		return fmt.Errorf("landlock_add_rule %q: %w", path, err)
	}
	return nil
}

func detectNestedPlatform() bool {
	attr := unix.LandlockRulesetAttr{Handled_access_fs: uint64(landlockReadAccess)}
	fd, err := unix.LandlockCreateRuleset(&attr, 0)
	if err != nil {
		// Absence of Landlock support entirely is not nesting, it's an
		// older kernel; CheckPrerequisites surfaces that separately.
		return false
	}
	defer unix.Close(fd)
	// If PR_SET_NO_NEW_PRIVS cannot be set, the outer environment is
	// blocking what a ruleset install needs; that is taken as the nesting
	// signal. landlock_restrict_self itself is not attempted here.
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return true
	}
	return false
}
