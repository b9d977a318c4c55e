package svcinstall

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// StatusLaunchd reduces "launchctl print" output to a canonical Runtime.
// Read never returns an error; failures degrade to a valid value.
type StatusLaunchd struct {
	// Runner executes launchctl
	Runner Runner
	// Label is the registered launchd label
	Label string
	// PlistPath is the artifact location, used to distinguish a removed
	// registration from a stale label launchd still answers for
	PlistPath string
	// Domain is the launchd domain target; defaults to gui/<uid>
	Domain string
	// LaunchctlPath is the launchctl binary
	LaunchctlPath string
}

// NewStatusLaunchd creates a status reader for the given label.
func NewStatusLaunchd(runner Runner, label, plistPath string) *StatusLaunchd {
	return &StatusLaunchd{
		Runner:        runner,
		Label:         label,
		PlistPath:     plistPath,
		Domain:        fmt.Sprintf("gui/%d", os.Getuid()),
		LaunchctlPath: "launchctl",
	}
}

// serviceTarget returns the domain-qualified label.
func (s *StatusLaunchd) serviceTarget() string {
	return s.Domain + "/" + s.Label
}

// Read queries the agent's runtime state.
func (s *StatusLaunchd) Read(ctx context.Context) Runtime {
	artifactExists := false
	if s.PlistPath != "" {
		if _, err := os.Stat(s.PlistPath); err == nil {
			artifactExists = true
		}
	}

	res, err := s.Runner.Run(ctx, s.LaunchctlPath, "print", s.serviceTarget())
	if err != nil {
		return Runtime{
			State:               StateUnknown,
			MissingRegistration: !artifactExists,
			Detail:              res.Combined(),
		}
	}

	fields := parseLaunchdPrint(res.Stdout)

	rt := Runtime{
		NativeState: fields["state"],
		CachedLabel: !artifactExists,
	}
	if pid, err := strconv.Atoi(fields["pid"]); err == nil && pid > 0 {
		rt.PID = pid
	}
	if code, err := strconv.Atoi(fields["last exit status"]); err == nil {
		rt.LastExitCode = code
	}
	rt.LastExitReason = fields["last exit reason"]

	switch {
	case rt.NativeState == "running" || rt.PID > 0:
		rt.State = StateRunning
	case rt.NativeState != "" && !isNumeric(rt.NativeState):
		rt.State = StateStopped
	default:
		rt.State = StateUnknown
	}
	return rt
}

// parseLaunchdPrint scans freeform "key = value" / "key: value" lines into
// a map with lower-cased keys. launchctl's print output is explicitly not
// a stable interface, so only loosely structured lines are considered.
func parseLaunchdPrint(output string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		var sep string
		switch {
		case strings.Contains(line, " = "):
			sep = " = "
		case strings.Contains(line, ": "):
			sep = ": "
		default:
			continue
		}
		parts := strings.SplitN(line, sep, 2)
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if _, seen := fields[key]; !seen {
			fields[key] = value
		}
	}
	return fields
}

// isNumeric reports whether s parses as an integer.
func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
