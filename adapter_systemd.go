package svcinstall

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// stoppedToleratedSystemd are the systemctl messages that make a failed
// stop idempotent.
var stoppedToleratedSystemd = []string{"not loaded", "not found", "inactive", "not running"}

// AdapterSystemd manages a service through the systemd user session.
type AdapterSystemd struct {
	// Unit is the resolved unit name without the .service suffix
	Unit string
	// Builder renders and parses the unit file
	Builder *BuilderSystemd
	// Status reads the canonical runtime state
	Status *StatusSystemd
	// Runner executes systemctl
	Runner Runner
	// Paths is the resolved directory layout
	Paths Paths
	// SystemctlPath is the systemctl binary
	SystemctlPath string
	// Log receives per-step debug output
	Log zerolog.Logger
}

// NewAdapterSystemd creates the systemd user-session adapter for a service.
func NewAdapterSystemd(service string, paths Paths, runner Runner, log zerolog.Logger) *AdapterSystemd {
	unit := UnitName(service)
	return &AdapterSystemd{
		Unit:          unit,
		Builder:       NewBuilderSystemd(paths.UnitDir),
		Status:        NewStatusSystemd(runner, unit),
		Runner:        runner,
		Paths:         paths,
		SystemctlPath: "systemctl",
		Log:           log,
	}
}

// ManagerLabel names the native service manager.
func (a *AdapterSystemd) ManagerLabel() string { return ManagerSystemd }

// ArtifactPath is the unit file location.
func (a *AdapterSystemd) ArtifactPath() string { return a.Paths.UnitPath(a.Unit) }

// unitArg is the .service-qualified unit name passed to systemctl.
func (a *AdapterSystemd) unitArg() string { return a.Unit + ".service" }

func (a *AdapterSystemd) userCmd(ctx context.Context, args ...string) (CmdResult, error) {
	return a.Runner.Run(ctx, a.SystemctlPath, append([]string{"--user"}, args...)...)
}

// Install writes the unit file and brings the service up.
func (a *AdapterSystemd) Install(ctx context.Context, req InstallRequest) error {
	if err := os.MkdirAll(a.Paths.LogDir, DirMode); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	logFile, errFile := a.Paths.LogFiles(a.Unit)
	if _, err := a.Builder.WriteUnit(a.Unit, req, logFile, errFile); err != nil {
		return err
	}

	// Cleanup and enable are idempotent; stale state must not block install.
	if res, err := a.userCmd(ctx, "daemon-reload"); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("daemon-reload failed, continuing")
	}
	if res, err := a.userCmd(ctx, "enable", a.unitArg()); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("enable failed, continuing")
	}

	if res, err := a.userCmd(ctx, "start", a.unitArg()); err != nil {
		return &CmdError{
			Op:     OpInstall,
			Cmd:    commandLine(a.SystemctlPath, []string{"--user", "start", a.unitArg()}),
			Output: res.Combined(),
			Err:    err,
		}
	}
	return nil
}

// Uninstall stops and disables the unit and removes the unit file.
// Already-absent registrations count as success.
func (a *AdapterSystemd) Uninstall(ctx context.Context) error {
	_ = a.Stop(ctx)
	if res, err := a.userCmd(ctx, "disable", a.unitArg()); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("disable failed, continuing")
	}
	if err := os.Remove(a.ArtifactPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}
	if res, err := a.userCmd(ctx, "daemon-reload"); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("daemon-reload failed, continuing")
	}
	return nil
}

// Start starts the unit.
func (a *AdapterSystemd) Start(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpStart, nil,
		a.SystemctlPath, "--user", "start", a.unitArg())
}

// Stop stops the unit; an already-stopped unit is success.
func (a *AdapterSystemd) Stop(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpStop, stoppedToleratedSystemd,
		a.SystemctlPath, "--user", "stop", a.unitArg())
}

// Restart restarts the unit.
func (a *AdapterSystemd) Restart(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpRestart, nil,
		a.SystemctlPath, "--user", "restart", a.unitArg())
}

// Runtime recomputes the canonical status. Never fails.
func (a *AdapterSystemd) Runtime(ctx context.Context) Runtime {
	return a.Status.Read(ctx)
}

// IsLoaded reports whether the unit is enabled in the user session.
func (a *AdapterSystemd) IsLoaded(ctx context.Context) bool {
	_, err := a.userCmd(ctx, "is-enabled", a.unitArg())
	return err == nil
}

// ReadCommand parses the argument sequence back out of the unit file.
func (a *AdapterSystemd) ReadCommand(_ context.Context) []string {
	return a.Builder.ReadCommand(a.Unit)
}
