package svcinstall

import (
	"context"
	"strconv"
	"strings"
)

// StatusSchtasks reduces the verbose CSV task query to a canonical Runtime.
// Read never returns an error; failures degrade to a valid value.
type StatusSchtasks struct {
	// Runner executes schtasks
	Runner Runner
	// Task is the registered task name
	Task string
	// SchtasksPath is the schtasks binary
	SchtasksPath string
}

// NewStatusSchtasks creates a status reader for the given task name.
func NewStatusSchtasks(runner Runner, task string) *StatusSchtasks {
	return &StatusSchtasks{Runner: runner, Task: task, SchtasksPath: "schtasks"}
}

// Read queries the task's runtime state.
func (s *StatusSchtasks) Read(ctx context.Context) Runtime {
	res, err := s.Runner.Run(ctx, s.SchtasksPath,
		"/query", "/tn", s.Task, "/v", "/fo", "csv")
	if err != nil {
		return Runtime{
			State:               StateUnknown,
			MissingRegistration: true,
			Detail:              res.Combined(),
		}
	}

	record := parseTaskQueryCSV(res.Stdout)
	if record == nil {
		return Runtime{State: StateUnknown, MissingRegistration: true}
	}

	// "Ready" is registered-but-idle; "Running" and "Enabled" count as running.
	rt := Runtime{NativeState: record["status"]}
	switch strings.ToLower(rt.NativeState) {
	case "running", "enabled":
		rt.State = StateRunning
	case "ready", "disabled", "stopped":
		rt.State = StateStopped
	default:
		rt.State = StateUnknown
	}

	if pid, err := strconv.Atoi(record["pid"]); err == nil && pid > 0 {
		rt.PID = pid
	}
	if result, ok := record["last result"]; ok {
		if code, err := strconv.Atoi(result); err == nil {
			rt.LastExitCode = code
		}
	}
	return rt
}
