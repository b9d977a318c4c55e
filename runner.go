package svcinstall

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// CmdResult holds the outcome of one native command invocation.
type CmdResult struct {
	// Stdout is the captured standard output
	Stdout string
	// Stderr is the captured standard error
	Stderr string
	// ExitCode is the command's exit code; -1 when the command never ran
	ExitCode int
}

// Combined returns the trimmed stderr followed by stdout, which is the
// order native tools usually put their diagnostic message in.
func (r CmdResult) Combined() string {
	out := strings.TrimSpace(r.Stderr)
	if s := strings.TrimSpace(r.Stdout); s != "" {
		if out != "" {
			out += "\n"
		}
		out += s
	}
	return out
}

// Runner executes native service-manager commands. Adapters and status
// readers depend on this interface so tests can substitute a fake backend.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CmdResult, error)
}

// ExecRunner shells out with a mandatory per-call timeout. Native lifecycle
// tools are otherwise unbounded and a hung invocation would stall the
// monitor's poll loop.
type ExecRunner struct {
	// Timeout bounds each command; DefaultCommandTimeout when zero
	Timeout time.Duration
}

// NewExecRunner returns an ExecRunner with the default command timeout.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Timeout: DefaultCommandTimeout}
}

// Run executes the command and captures stdout/stderr separately. A nonzero
// exit is returned as an error alongside the populated result.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (CmdResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.ExitCode = -1
		}
		if cctx.Err() != nil {
			err = cctx.Err()
		}
		return res, err
	}
	return res, nil
}

// commandLine renders name and args for error messages and logging.
func commandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)
	return strings.Join(parts, " ")
}
