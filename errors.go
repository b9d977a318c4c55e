package svcinstall

import (
	"errors"
	"fmt"
)

// Common errors returned by svcinstall operations
var (
	// ErrUnsupportedPlatform indicates the current OS matches none of the
	// three supported service managers
	ErrUnsupportedPlatform = errors.New("svcinstall: unsupported platform")

	// ErrNoExecutable indicates an install request without an executable
	ErrNoExecutable = errors.New("svcinstall: no executable in request")

	// ErrMonitorRunning indicates Start was called on a running monitor
	ErrMonitorRunning = errors.New("svcinstall: monitor already running")

	// ErrInvalidConfig indicates the configuration failed validation
	ErrInvalidConfig = errors.New("svcinstall: invalid configuration")
)

// CmdError represents a failed native service-manager command. It carries
// the combined stderr/stdout so callers can surface the tool's own message.
type CmdError struct {
	// Op is the lifecycle operation that failed
	Op Operation
	// Cmd is the command line that was executed
	Cmd string
	// Output is the combined stderr/stdout of the failed command
	Output string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *CmdError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("svcinstall %s: %q: %v: %s", e.Op.String(), e.Cmd, e.Err, e.Output)
	}
	return fmt.Sprintf("svcinstall %s: %q: %v", e.Op.String(), e.Cmd, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *CmdError) Unwrap() error {
	return e.Err
}
