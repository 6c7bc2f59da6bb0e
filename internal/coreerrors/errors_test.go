package coreerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoreError_Recoverable(t *testing.T) {
	assert.True(t, NewShellError(ShellSubkindTimeout, nil, "timed out").Recoverable())
	assert.True(t, NewShellError(ShellSubkindPoolFull, nil, "full").Recoverable())
	assert.True(t, NewShellError(ShellSubkindProcessDied, nil, "died").Recoverable())
	assert.False(t, NewShellError(ShellSubkindSpawnError, nil, "spawn").Recoverable())
	assert.False(t, NewConfigError("bad config").Recoverable())
}

func TestCoreError_ResourceExhaustion(t *testing.T) {
	assert.True(t, NewShellError(ShellSubkindPoolFull, nil, "full").ResourceExhaustion())
	assert.False(t, NewShellError(ShellSubkindTimeout, nil, "timeout").ResourceExhaustion())
}

func TestCoreError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewSandboxError(cause, "wrap")
	assert.ErrorIs(t, err, cause)
}

func TestIs(t *testing.T) {
	err := NewOperationError("unknown id")
	assert.True(t, Is(err, KindOperation))
	assert.False(t, Is(err, KindShell))
	assert.False(t, Is(errors.New("plain"), KindOperation))
}
