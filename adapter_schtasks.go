package svcinstall

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// stoppedToleratedSchtasks are the schtasks messages that make a failed
// end/delete idempotent.
var stoppedToleratedSchtasks = []string{"not currently running", "cannot find", "does not exist"}

// AdapterSchtasks manages a service through the Windows Task Scheduler.
type AdapterSchtasks struct {
	// Task is the resolved scheduled-task name
	Task string
	// Builder renders the task definition and parses query output
	Builder *BuilderSchtasks
	// Status reads the canonical runtime state
	Status *StatusSchtasks
	// Runner executes schtasks
	Runner Runner
	// Paths is the resolved directory layout
	Paths Paths
	// SchtasksPath is the schtasks binary
	SchtasksPath string
	// Log receives per-step debug output
	Log zerolog.Logger
}

// NewAdapterSchtasks creates the scheduled-task adapter for a service.
func NewAdapterSchtasks(service string, paths Paths, runner Runner, log zerolog.Logger) *AdapterSchtasks {
	task := TaskName(service)
	return &AdapterSchtasks{
		Task:         task,
		Builder:      NewBuilderSchtasks(paths.ConfigDir),
		Status:       NewStatusSchtasks(runner, task),
		Runner:       runner,
		Paths:        paths,
		SchtasksPath: "schtasks",
		Log:          log,
	}
}

// ManagerLabel names the native service manager.
func (a *AdapterSchtasks) ManagerLabel() string { return ManagerSchtasks }

// ArtifactPath is the generated task-definition location.
func (a *AdapterSchtasks) ArtifactPath() string { return a.Paths.TaskXMLPath(a.Task) }

// Install writes the task definition, re-registers the task, and runs it.
func (a *AdapterSchtasks) Install(ctx context.Context, req InstallRequest) error {
	if err := os.MkdirAll(a.Paths.LogDir, DirMode); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	logFile, errFile := a.Paths.LogFiles(a.Task)
	xmlPath, err := a.Builder.WriteTaskXML(a.Task, req, logFile, errFile)
	if err != nil {
		return err
	}

	// End and delete any stale registration; both are no-ops for a new task.
	if res, err := a.Runner.Run(ctx, a.SchtasksPath, "/end", "/tn", a.Task); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("end failed, continuing")
	}
	if res, err := a.Runner.Run(ctx, a.SchtasksPath, "/delete", "/tn", a.Task, "/f"); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("delete failed, continuing")
	}

	if res, err := a.Runner.Run(ctx, a.SchtasksPath, "/create", "/tn", a.Task, "/xml", xmlPath, "/f"); err != nil {
		return &CmdError{
			Op:     OpInstall,
			Cmd:    commandLine(a.SchtasksPath, []string{"/create", "/tn", a.Task, "/xml", xmlPath, "/f"}),
			Output: res.Combined(),
			Err:    err,
		}
	}
	if res, err := a.Runner.Run(ctx, a.SchtasksPath, "/run", "/tn", a.Task); err != nil {
		return &CmdError{
			Op:     OpInstall,
			Cmd:    commandLine(a.SchtasksPath, []string{"/run", "/tn", a.Task}),
			Output: res.Combined(),
			Err:    err,
		}
	}
	return nil
}

// Uninstall ends and deletes the task and removes the generated artifact.
// Already-absent registrations count as success.
func (a *AdapterSchtasks) Uninstall(ctx context.Context) error {
	if res, err := a.Runner.Run(ctx, a.SchtasksPath, "/end", "/tn", a.Task); err != nil {
		a.Log.Debug().Str("output", res.Combined()).Msg("end failed, continuing")
	}
	if err := runLifecycle(ctx, a.Runner, OpUninstall, stoppedToleratedSchtasks,
		a.SchtasksPath, "/delete", "/tn", a.Task, "/f"); err != nil {
		return err
	}
	if err := os.Remove(a.ArtifactPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing task definition: %w", err)
	}
	return nil
}

// Start runs the registered task.
func (a *AdapterSchtasks) Start(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpStart, nil,
		a.SchtasksPath, "/run", "/tn", a.Task)
}

// Stop ends the running task; an already-stopped task is success.
func (a *AdapterSchtasks) Stop(ctx context.Context) error {
	return runLifecycle(ctx, a.Runner, OpStop, stoppedToleratedSchtasks,
		a.SchtasksPath, "/end", "/tn", a.Task)
}

// Restart ends and re-runs the task.
func (a *AdapterSchtasks) Restart(ctx context.Context) error {
	if err := a.Stop(ctx); err != nil {
		return err
	}
	return runLifecycle(ctx, a.Runner, OpRestart, nil,
		a.SchtasksPath, "/run", "/tn", a.Task)
}

// Runtime recomputes the canonical status. Never fails.
func (a *AdapterSchtasks) Runtime(ctx context.Context) Runtime {
	return a.Status.Read(ctx)
}

// IsLoaded reports whether the scheduler knows the task name.
func (a *AdapterSchtasks) IsLoaded(ctx context.Context) bool {
	_, err := a.Runner.Run(ctx, a.SchtasksPath, "/query", "/tn", a.Task)
	return err == nil
}

// ReadCommand parses the argument sequence back out of the verbose query.
func (a *AdapterSchtasks) ReadCommand(ctx context.Context) []string {
	res, err := a.Runner.Run(ctx, a.SchtasksPath, "/query", "/tn", a.Task, "/v", "/fo", "csv")
	if err != nil {
		return nil
	}
	return a.Builder.ParseCommand(res.Stdout)
}
