package svcinstall

import (
	"context"
	"strconv"
	"strings"
)

// systemdShowProperties is the fixed property list requested from
// systemctl show. Restricting the query keeps the output stable and small.
const systemdShowProperties = "ActiveState,SubState,MainPID,ExecMainStatus,ExecMainCode"

// StatusSystemd reduces "systemctl --user show" output to a canonical
// Runtime. Read never returns an error; every failure path degrades to a
// valid value because this query sits on the monitor's hot path.
type StatusSystemd struct {
	// Runner executes systemctl
	Runner Runner
	// Unit is the unit name without the .service suffix
	Unit string
	// SystemctlPath is the systemctl binary
	SystemctlPath string
}

// NewStatusSystemd creates a status reader for the given unit.
func NewStatusSystemd(runner Runner, unit string) *StatusSystemd {
	return &StatusSystemd{Runner: runner, Unit: unit, SystemctlPath: "systemctl"}
}

// Read queries the unit's runtime state.
func (s *StatusSystemd) Read(ctx context.Context) Runtime {
	res, err := s.Runner.Run(ctx, s.SystemctlPath,
		"--user", "show", s.Unit+".service",
		"--property="+systemdShowProperties, "--no-page")
	if err != nil {
		out := res.Combined()
		if containsNotFound(out) {
			return Runtime{State: StateStopped, MissingRegistration: true, Detail: out}
		}
		return Runtime{State: StateUnknown, Detail: out}
	}

	props := parseKeyValueLines(res.Stdout)

	rt := Runtime{
		NativeState: props["activestate"],
		SubState:    props["substate"],
	}
	if pid, err := strconv.Atoi(props["mainpid"]); err == nil {
		rt.PID = pid
	}
	if code, err := strconv.Atoi(props["execmainstatus"]); err == nil {
		rt.LastExitCode = code
	}
	rt.LastExitReason = props["execmaincode"]

	switch {
	case rt.NativeState == "active":
		rt.State = StateRunning
	case rt.NativeState != "":
		rt.State = StateStopped
	default:
		rt.State = StateUnknown
	}

	// systemd answers "inactive"/LoadState not-found for unknown units on
	// some versions instead of failing; a zero MainPID with no substate is
	// indistinguishable from a stopped unit, so only the error path above
	// sets MissingRegistration.
	return rt
}

// parseKeyValueLines parses generic "Key=Value" lines into a map with
// lower-cased keys.
func parseKeyValueLines(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		props[key] = strings.TrimSpace(parts[1])
	}
	return props
}

// containsNotFound matches the "no such unit/service" family of messages.
func containsNotFound(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "not-found") ||
		strings.Contains(lower, "could not be found") ||
		strings.Contains(lower, "no such file")
}
