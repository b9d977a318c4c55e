package svcinstall

import (
	"context"
	"strings"
)

// Adapter is the per-platform composition of a config builder, a status
// reader, and the native install/uninstall/stop/restart command sequences.
// Exactly three implementations exist, one per supported service manager;
// the ServiceManager selects one at construction and never re-dispatches.
type Adapter interface {
	// Install registers the service: ensure the log directory, write the
	// native artifact (overwriting any previous one), run the idempotent
	// cleanup step, re-enable, then start. Only a failing start aborts.
	Install(ctx context.Context, req InstallRequest) error

	// Uninstall best-effort stops the service and removes the native
	// registration. An already-absent registration is success.
	Uninstall(ctx context.Context) error

	// Start starts the registered service
	Start(ctx context.Context) error

	// Stop stops the service; "already not running" counts as success
	Stop(ctx context.Context) error

	// Restart restarts the service
	Restart(ctx context.Context) error

	// Runtime recomputes the canonical status. Never fails.
	Runtime(ctx context.Context) Runtime

	// IsLoaded reports the lightweight native enabled/listed check,
	// independent of Runtime
	IsLoaded(ctx context.Context) bool

	// ReadCommand deserializes the existing registration back into the
	// canonical ordered argument list; nil means no prior registration
	ReadCommand(ctx context.Context) []string

	// ManagerLabel names the native service manager
	ManagerLabel() string

	// ArtifactPath is where the native artifact lives for this service
	ArtifactPath() string
}

// runLifecycle executes one native lifecycle command. A nonzero exit whose
// output matches a tolerated substring is treated as success (idempotent
// stop/cleanup); any other failure becomes a CmdError carrying the
// combined output.
func runLifecycle(ctx context.Context, runner Runner, op Operation, tolerated []string, name string, args ...string) error {
	res, err := runner.Run(ctx, name, args...)
	if err == nil {
		return nil
	}
	out := res.Combined()
	lower := strings.ToLower(out)
	for _, t := range tolerated {
		if strings.Contains(lower, t) {
			return nil
		}
	}
	return &CmdError{Op: op, Cmd: commandLine(name, args), Output: out, Err: err}
}
