package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScope_RejectsEmpty(t *testing.T) {
	_, err := NewScope(nil)
	require.Error(t, err)
}

func TestNewScope_CanonicalizesAndDedupes(t *testing.T) {
	s, err := NewScope([]string{"/tmp/proj", "file:///tmp/proj", "/tmp/proj/../proj/sub"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/proj", "/tmp/proj/sub"}, s.Paths())
	assert.Equal(t, "/tmp/proj", s.Primary())
}

func TestScope_Contains(t *testing.T) {
	s, err := NewScope([]string{"/tmp/proj"})
	require.NoError(t, err)
	assert.True(t, s.Contains("/tmp/proj"))
	assert.True(t, s.Contains("/tmp/proj/sub/file.txt"))
	assert.False(t, s.Contains("/tmp/projectx"))
	assert.False(t, s.Contains("/etc"))
}

func TestParseMechanism(t *testing.T) {
	tests := []struct {
		input   string
		want    Mechanism
		wantErr bool
	}{
		{"seatbelt", MechanismSeatbelt, false},
		{"landlock", MechanismLandlock, false},
		{"noop", MechanismNoop, false},
		{"none", MechanismNoop, false},
		{"test", MechanismNoop, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMechanism(tt.input)
		if tt.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNoopManager_Build(t *testing.T) {
	scope, err := NewScope([]string{"/tmp/proj"})
	require.NoError(t, err)
	n := &NoopManager{}
	spec, err := n.Build("bash", []string{"-c", "echo hi"}, "/tmp/proj", scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"bash", "-c", "echo hi"}, spec.Argv)
	assert.Equal(t, MechanismNoop, n.Mechanism())
}

func TestNoopManager_Build_RejectsEmptyScope(t *testing.T) {
	n := &NoopManager{}
	_, err := n.Build("bash", nil, "", Scope{})
	require.ErrorIs(t, err, ErrScopeEmpty)
}

func TestNoopManager_Build_RejectsOutsideScope(t *testing.T) {
	scope, err := NewScope([]string{"/tmp/proj"})
	require.NoError(t, err)
	n := &NoopManager{}
	_, err = n.Build("bash", nil, "/etc", scope)
	require.Error(t, err)
	var outside *ErrWorkingDirOutsideScope
	assert.ErrorAs(t, err, &outside)
}

func TestNewManager_DefaultsToPlatformMechanism(t *testing.T) {
	mgr, err := NewManager("")
	require.NoError(t, err)
	assert.NotEmpty(t, mgr.Mechanism())
}

func TestNewManager_Noop(t *testing.T) {
	mgr, err := NewManager(MechanismNoop)
	require.NoError(t, err)
	assert.Equal(t, MechanismNoop, mgr.Mechanism())
	assert.NoError(t, mgr.CheckPrerequisites())
}

func TestNoSandboxRequested(t *testing.T) {
	assert.False(t, NoSandboxRequested([]string{"run"}))
	assert.True(t, NoSandboxRequested([]string{"run", EscapeHatchFlag}))
	t.Setenv(EscapeHatchEnv, "1")
	assert.True(t, NoSandboxRequested(nil))
}
