// Package coreerrors defines the core's error taxonomy by kind, not by Go
// type name: one struct implementing error, categorized by Kind, with
// constructors per kind and classification helpers the retry policy and
// the Adapter rely on.
package coreerrors

import "fmt"

// Kind categorizes a CoreError.
type Kind int

const (
	KindConfig Kind = iota
	KindSandbox
	KindShell
	KindOperation
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindSandbox:
		return "SandboxError"
	case KindShell:
		return "ShellError"
	case KindOperation:
		return "OperationError"
	case KindTransport:
		return "TransportError"
	default:
		return "UnknownError"
	}
}

// ShellSubkind refines KindShell: Timeout / PoolFull / ProcessDied /
// SpawnError / WorkingDirectoryError / SerializationError.
type ShellSubkind int

const (
	ShellSubkindNone ShellSubkind = iota
	ShellSubkindTimeout
	ShellSubkindPoolFull
	ShellSubkindProcessDied
	ShellSubkindSpawnError
	ShellSubkindWorkingDirectoryError
	ShellSubkindSerializationError
)

func (s ShellSubkind) String() string {
	switch s {
	case ShellSubkindTimeout:
		return "Timeout"
	case ShellSubkindPoolFull:
		return "PoolFull"
	case ShellSubkindProcessDied:
		return "ProcessDied"
	case ShellSubkindSpawnError:
		return "SpawnError"
	case ShellSubkindWorkingDirectoryError:
		return "WorkingDirectoryError"
	case ShellSubkindSerializationError:
		return "SerializationError"
	default:
		return "None"
	}
}

// CoreError is the single error type spanning the taxonomy.
type CoreError struct {
	Kind    Kind
	Sub     ShellSubkind // only meaningful when Kind == KindShell
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Sub != ShellSubkindNone {
		return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Sub, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Recoverable reports whether this error's category is one the caller may
// retry (ShellError: timeout, pool-full, process-died are recoverable;
// spawn/working-directory/serialization are not).
func (e *CoreError) Recoverable() bool {
	if e.Kind != KindShell {
		return false
	}
	switch e.Sub {
	case ShellSubkindTimeout, ShellSubkindPoolFull, ShellSubkindProcessDied:
		return true
	default:
		return false
	}
}

// ResourceExhaustion reports whether this error reflects exhaustion of a
// bounded resource (pool capacity) rather than an I/O failure.
func (e *CoreError) ResourceExhaustion() bool {
	return e.Kind == KindShell && e.Sub == ShellSubkindPoolFull
}

func NewConfigError(format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

func NewSandboxError(cause error, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: KindSandbox, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func NewShellError(sub ShellSubkind, cause error, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: KindShell, Sub: sub, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func NewOperationError(format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: KindOperation, Message: fmt.Sprintf(format, args...)}
}

func NewTransportError(cause error, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: KindTransport, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a CoreError of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*CoreError)
	if !ok {
		return false
	}
	return ce.Kind == kind
}
