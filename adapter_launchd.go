package svcinstall

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// stoppedToleratedLaunchd are the launchctl messages that make a failed
// stop or bootout idempotent.
var stoppedToleratedLaunchd = []string{"no such process", "could not find", "not find service", "boot-out failed: 3"}

// AdapterLaunchd manages a per-user launchd agent.
type AdapterLaunchd struct {
	// Label is the resolved launchd label
	Label string
	// Builder renders and parses the property list
	Builder *BuilderLaunchd
	// Status reads the canonical runtime state
	Status *StatusLaunchd
	// Runner executes launchctl
	Runner Runner
	// Paths is the resolved directory layout
	Paths Paths
	// Domain is the launchd domain target (gui/<uid>)
	Domain string
	// LaunchctlPath is the launchctl binary
	LaunchctlPath string
	// Log receives per-step debug output
	Log zerolog.Logger
}

// NewAdapterLaunchd creates the launchd agent adapter for a service.
func NewAdapterLaunchd(service string, paths Paths, runner Runner, log zerolog.Logger) *AdapterLaunchd {
	label := LaunchdLabel(service)
	plistPath := paths.PlistPath(label)
	status := NewStatusLaunchd(runner, label, plistPath)
	return &AdapterLaunchd{
		Label:         label,
		Builder:       NewBuilderLaunchd(paths.AgentDir),
		Status:        status,
		Runner:        runner,
		Paths:         paths,
		Domain:        status.Domain,
		LaunchctlPath: "launchctl",
		Log:           log,
	}
}

// ManagerLabel names the native service manager.
func (a *AdapterLaunchd) ManagerLabel() string { return ManagerLaunchd }

// ArtifactPath is the property-list location.
func (a *AdapterLaunchd) ArtifactPath() string { return a.Paths.PlistPath(a.Label) }

// serviceTarget is the domain-qualified label.
func (a *AdapterLaunchd) serviceTarget() string { return a.Domain + "/" + a.Label }

// Install writes the plist and bootstraps the agent into the user domain.
func (a *AdapterLaunchd) Install(ctx context.Context, req InstallRequest) error {
	if err := os.MkdirAll(a.Paths.LogDir, DirMode); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	logFile, errFile := a.Paths.LogFiles(a.Label)
	plistPath, err := a.Builder.WritePlist(a.Label, req, logFile, errFile)
	if err != nil {
		return err
	}

	// Boot out any stale copy so bootstrap does not refuse the label.
	if res, err := a.Runner.Run(ctx, a.LaunchctlPath, "bootout", a.serviceTarget()); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("bootout failed, continuing")
	}
	if res, err := a.Runner.Run(ctx, a.LaunchctlPath, "enable", a.serviceTarget()); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("enable failed, continuing")
	}

	if res, err := a.Runner.Run(ctx, a.LaunchctlPath, "bootstrap", a.Domain, plistPath); err != nil {
		return &CmdError{
			Op:     OpInstall,
			Cmd:    commandLine(a.LaunchctlPath, []string{"bootstrap", a.Domain, plistPath}),
			Output: res.Combined(),
			Err:    err,
		}
	}
	return nil
}

// Uninstall boots the agent out of the domain and removes the plist.
// Already-absent registrations count as success.
func (a *AdapterLaunchd) Uninstall(ctx context.Context) error {
	if err := runLifecycle(ctx, a.Runner, OpUninstall, stoppedToleratedLaunchd,
		a.LaunchctlPath, "bootout", a.serviceTarget()); err != nil {
		a.Log.Debug().Err(err).Msg("bootout failed, continuing")
	}
	if err := os.Remove(a.ArtifactPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing plist: %w", err)
	}
	return nil
}

// Start kickstarts the agent.
func (a *AdapterLaunchd) Start(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpStart, nil,
		a.LaunchctlPath, "kickstart", a.serviceTarget())
}

// Stop boots the agent out of the domain; KeepAlive would immediately
// revive a merely killed process. An already-absent agent is success.
func (a *AdapterLaunchd) Stop(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpStop, stoppedToleratedLaunchd,
		a.LaunchctlPath, "bootout", a.serviceTarget())
}

// Restart kills and restarts the agent in one step.
func (a *AdapterLaunchd) Restart(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpRestart, nil,
		a.LaunchctlPath, "kickstart", "-k", a.serviceTarget())
}

// Runtime recomputes the canonical status. Never fails.
func (a *AdapterLaunchd) Runtime(ctx context.Context) Runtime {
	return a.Status.Read(ctx)
}

// IsLoaded reports whether launchd lists the label in the user domain.
func (a *AdapterLaunchd) IsLoaded(ctx context.Context) bool {
	_, err := a.Runner.Run(ctx, a.LaunchctlPath, "print", a.serviceTarget())
	return err == nil
}

// ReadCommand parses the argument sequence back out of the plist.
func (a *AdapterLaunchd) ReadCommand(_ context.Context) []string {
	return a.Builder.ReadCommand(a.Label)
}
