package svcinstall

import "time"

// Platform identifiers matched against runtime.GOOS at manager construction.
const (
	PlatformLinux   = "linux"
	PlatformDarwin  = "darwin"
	PlatformWindows = "windows"
)

// Native service-manager labels reported by PlatformInfo.
const (
	ManagerSystemd  = "systemd"
	ManagerLaunchd  = "launchd"
	ManagerSchtasks = "schtasks"
)

// Default timeouts and policy values
const (
	// DefaultCommandTimeout bounds every shelled-out native command so a
	// hung tool cannot stall the monitor loop.
	DefaultCommandTimeout = 30 * time.Second

	// DefaultProbeTimeout bounds the HTTP or command health probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultPollInterval is the monitor poll interval when none is configured.
	DefaultPollInterval = 30 * time.Second

	// DefaultRestartDelay is the delay the native manager applies before
	// restarting a crashed service (RestartSec for systemd units).
	DefaultRestartDelay = 10 * time.Second

	// DefaultMaxRetries is the default restart retry budget.
	DefaultMaxRetries = 3

	// DefaultFileLimit is the soft file-descriptor limit written into
	// launchd property lists.
	DefaultFileLimit = 4096
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644
)

// RunState is the canonical running state derived from a native status query.
type RunState int

const (
	// StateUnknown means the native query gave no usable answer
	StateUnknown RunState = iota
	// StateRunning means the native manager reports an active process
	StateRunning
	// StateStopped means the service is registered but not running
	StateStopped
)

// RunState string constants
const (
	stateUnknownStr = "unknown"
	stateRunningStr = "running"
	stateStoppedStr = "stopped"
)

// String returns the string representation of a RunState
func (s RunState) String() string {
	switch s {
	case StateRunning:
		return stateRunningStr
	case StateStopped:
		return stateStoppedStr
	default:
		return stateUnknownStr
	}
}

// Operation identifies a lifecycle or query operation for logging and errors.
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpInstall registers the service with the native manager
	OpInstall
	// OpUninstall removes the native registration
	OpUninstall
	// OpStart starts the service
	OpStart
	// OpStop stops the service
	OpStop
	// OpRestart restarts the service
	OpRestart
	// OpStatus queries the native runtime status
	OpStatus
	// OpIsLoaded checks whether the registration is known to the manager
	OpIsLoaded
)

// Operation string constants
const (
	opUnknownStr   = "unknown"
	opInstallStr   = "install"
	opUninstallStr = "uninstall"
	opStartStr     = "start"
	opStopStr      = "stop"
	opRestartStr   = "restart"
	opStatusStr    = "status"
	opIsLoadedStr  = "is-loaded"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpInstall:
		return opInstallStr
	case OpUninstall:
		return opUninstallStr
	case OpStart:
		return opStartStr
	case OpStop:
		return opStopStr
	case OpRestart:
		return opRestartStr
	case OpStatus:
		return opStatusStr
	case OpIsLoaded:
		return opIsLoadedStr
	default:
		return opUnknownStr
	}
}

// InstallRequest describes one service installation. Args[0] is the
// executable; the remaining elements are passed through in order.
type InstallRequest struct {
	// Args is the program argument sequence, executable first
	Args []string
	// WorkingDir is an optional working directory for the service
	WorkingDir string
	// Env is an optional environment overlay applied on top of the
	// service manager's own environment
	Env map[string]string
	// Description is an optional human-readable description
	Description string
	// Name overrides the configured service name when non-empty
	Name string
}

// Runtime is the canonical status record recomputed on every native query.
// It is never cached or persisted.
type Runtime struct {
	// State is the canonical running state
	State RunState
	// NativeState is the manager's own state string (ActiveState,
	// launchd state, task Status) when one was reported
	NativeState string
	// SubState is the manager's sub-state when one was reported
	SubState string
	// PID is the main process ID, 0 when not running or not reported
	PID int
	// LastExitCode is the most recent exit status when reported
	LastExitCode int
	// LastExitReason is the manager's description of the last exit
	LastExitReason string
	// Detail carries free-text diagnostic output from a failed query
	Detail string
	// MissingRegistration is set when no native artifact or registration
	// exists for the service name. Implies State is stopped or unknown.
	MissingRegistration bool
	// CachedLabel is set when the artifact file is gone but the manager
	// still answers for the stale label
	CachedLabel bool
}

// ResourceCheck is the per-tick evaluation of the configured ceilings.
type ResourceCheck struct {
	// MemoryOK is false when the memory ceiling is configured and exceeded
	MemoryOK bool
	// CPUOK is false when the CPU ceiling is configured and exceeded
	CPUOK bool
	// Overall is MemoryOK && CPUOK
	Overall bool
}

// DaemonStatus is the composed snapshot delivered to the monitor callback
// and returned by the orchestrator's Status call. Recomputed every tick.
type DaemonStatus struct {
	// Runtime is the canonical native status
	Runtime Runtime
	// Loaded reports the lightweight native enabled/listed check
	Loaded bool
	// Uptime of the local process
	Uptime time.Duration
	// MemoryBytes is the local process resident memory
	MemoryBytes uint64
	// CPUPercent is the local process CPU usage
	CPUPercent float64
	// Health is the probe result; nil when no probe ran
	Health *bool
	// Resources is the ceiling breakdown; nil when monitoring is disabled
	Resources *ResourceCheck
}

// IsRunning reports whether the native manager considers the service running.
func (s DaemonStatus) IsRunning() bool {
	return s.Runtime.State == StateRunning
}
