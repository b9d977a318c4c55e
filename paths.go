package svcinstall

import (
	"os"
	"path/filepath"
	"strings"
)

// Recognized environment-variable overrides. Identifier overrides win over
// the configured service name for their platform only.
const (
	// EnvServiceName overrides the configured service name on all platforms
	EnvServiceName = "SVCINSTALL_SERVICE_NAME"
	// EnvUnitName overrides the systemd unit name
	EnvUnitName = "SVCINSTALL_UNIT_NAME"
	// EnvLaunchdLabel overrides the launchd label
	EnvLaunchdLabel = "SVCINSTALL_LAUNCHD_LABEL"
	// EnvTaskName overrides the Windows scheduled-task name
	EnvTaskName = "SVCINSTALL_TASK_NAME"
	// EnvProfile selects a named profile subdirectory under the config dir
	EnvProfile = "SVCINSTALL_PROFILE"
	// EnvConfigDir overrides the config directory
	EnvConfigDir = "SVCINSTALL_CONFIG_DIR"
	// EnvLogDir overrides the log directory
	EnvLogDir = "SVCINSTALL_LOG_DIR"
	// EnvPIDFile overrides the PID file path
	EnvPIDFile = "SVCINSTALL_PID_FILE"
	// EnvLogLevel overrides the configured logging level
	EnvLogLevel = "SVCINSTALL_LOG_LEVEL"
	// EnvAutoRestart toggles the auto-restart flag ("true"/"false")
	EnvAutoRestart = "SVCINSTALL_AUTO_RESTART"
	// EnvMonitoring toggles the monitoring-enabled flag ("true"/"false")
	EnvMonitoring = "SVCINSTALL_MONITORING"
)

// launchdLabelPrefix is prepended to service names without a reverse-DNS
// label of their own.
const launchdLabelPrefix = "com.axondata."

// Paths holds the resolved per-platform directories and file locations.
type Paths struct {
	// ConfigDir holds the JSON configuration and generated task XML
	ConfigDir string
	// LogDir holds the service's stdout/stderr log files
	LogDir string
	// UnitDir is the systemd user unit directory
	UnitDir string
	// AgentDir is the launchd per-user agent directory
	AgentDir string
	// PIDFile is the optional PID file location
	PIDFile string
}

// ResolvePaths computes the directory layout for the given platform,
// honoring the recognized environment overrides.
func ResolvePaths(platform string) Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	var p Paths
	switch platform {
	case PlatformWindows:
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		p.ConfigDir = filepath.Join(base, "svcinstall")
		p.LogDir = filepath.Join(base, "svcinstall", "logs")
	case PlatformDarwin:
		p.ConfigDir = filepath.Join(home, "Library", "Application Support", "svcinstall")
		p.LogDir = filepath.Join(home, "Library", "Logs", "svcinstall")
		p.AgentDir = filepath.Join(home, "Library", "LaunchAgents")
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			configHome = filepath.Join(home, ".config")
		}
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			stateHome = filepath.Join(home, ".local", "state")
		}
		p.ConfigDir = filepath.Join(configHome, "svcinstall")
		p.LogDir = filepath.Join(stateHome, "svcinstall", "logs")
		p.UnitDir = filepath.Join(configHome, "systemd", "user")
	}

	if dir := os.Getenv(EnvConfigDir); dir != "" {
		p.ConfigDir = dir
	}
	if profile := os.Getenv(EnvProfile); profile != "" {
		p.ConfigDir = filepath.Join(p.ConfigDir, profile)
	}
	if dir := os.Getenv(EnvLogDir); dir != "" {
		p.LogDir = dir
	}
	p.PIDFile = os.Getenv(EnvPIDFile)

	return p
}

// ConfigFile returns the JSON configuration file path.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.json")
}

// UnitPath returns the systemd unit file path for a unit name.
func (p Paths) UnitPath(unit string) string {
	return filepath.Join(p.UnitDir, unit+".service")
}

// PlistPath returns the launchd property-list path for a label.
func (p Paths) PlistPath(label string) string {
	return filepath.Join(p.AgentDir, label+".plist")
}

// TaskXMLPath returns where the generated scheduled-task definition is kept.
func (p Paths) TaskXMLPath(task string) string {
	return filepath.Join(p.ConfigDir, task+".task.xml")
}

// LogFiles returns the stdout and stderr log file paths for a service name.
func (p Paths) LogFiles(name string) (logFile, errFile string) {
	return filepath.Join(p.LogDir, name+".out.log"),
		filepath.Join(p.LogDir, name+".err.log")
}

// UnitName resolves the systemd unit name for a service.
func UnitName(service string) string {
	if v := os.Getenv(EnvUnitName); v != "" {
		return v
	}
	return service
}

// LaunchdLabel resolves the launchd label for a service. Names that already
// look reverse-DNS qualified are used as-is.
func LaunchdLabel(service string) string {
	if v := os.Getenv(EnvLaunchdLabel); v != "" {
		return v
	}
	if strings.Contains(service, ".") {
		return service
	}
	return launchdLabelPrefix + service
}

// TaskName resolves the Windows scheduled-task name for a service.
func TaskName(service string) string {
	if v := os.Getenv(EnvTaskName); v != "" {
		return v
	}
	return service
}
