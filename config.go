package svcinstall

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// MonitoringConfig controls the polling monitor. When Enabled, Interval
// must be positive and MaxCPUPercent, if set, must be in (0,100].
type MonitoringConfig struct {
	// Enabled turns the polling monitor on
	Enabled bool
	// Interval is the poll interval
	Interval time.Duration
	// HealthCheckURL is probed with an HTTP GET when set
	HealthCheckURL string
	// HealthCheckCommand is run through the shell when set and no URL is
	HealthCheckCommand string
	// MaxMemoryBytes is the resident-memory ceiling; 0 disables the check
	MaxMemoryBytes uint64
	// MaxCPUPercent is the CPU ceiling in percent; 0 disables the check
	MaxCPUPercent float64
}

// ServiceConfiguration is the persisted install configuration. The config
// manager owns the only mutable copy.
type ServiceConfiguration struct {
	// Name is the service name used to derive native identifiers
	Name string
	// DisplayName is the human-facing name
	DisplayName string
	// Description is written into the native artifact
	Description string
	// ExecutablePath is the program to supervise
	ExecutablePath string
	// Arguments are passed after the executable, order preserved
	Arguments []string
	// WorkingDir is the service working directory
	WorkingDir string
	// Environment is the environment overlay
	Environment map[string]string
	// AutoRestart makes the monitor restart a stopped service
	AutoRestart bool
	// RestartDelay is the delay before a monitor-triggered restart
	RestartDelay time.Duration
	// MaxRetries bounds consecutive monitor-triggered restarts
	MaxRetries int
	// LogLevel is the logging level for the embedding process
	LogLevel string
	// LogFile and ErrorFile override the derived log locations
	LogFile   string
	ErrorFile string
	// Monitoring is the embedded monitor configuration
	Monitoring MonitoringConfig
}

// InstallRequest derives the install request for the current configuration.
func (c *ServiceConfiguration) InstallRequest() InstallRequest {
	args := make([]string, 0, len(c.Arguments)+1)
	args = append(args, c.ExecutablePath)
	args = append(args, c.Arguments...)
	return InstallRequest{
		Args:        args,
		WorkingDir:  c.WorkingDir,
		Env:         c.Environment,
		Description: c.Description,
		Name:        c.Name,
	}
}

// rawServiceConfiguration mirrors ServiceConfiguration with duration
// strings for JSON round-tripping.
type rawServiceConfiguration struct {
	Name           string            `json:"name"`
	DisplayName    string            `json:"displayName,omitempty"`
	Description    string            `json:"description,omitempty"`
	ExecutablePath string            `json:"executablePath"`
	Arguments      []string          `json:"arguments,omitempty"`
	WorkingDir     string            `json:"workingDirectory,omitempty"`
	Environment    map[string]string `json:"environment,omitempty"`
	AutoRestart    bool              `json:"autoRestart"`
	RestartDelay   string            `json:"restartDelay,omitempty"`
	MaxRetries     int               `json:"maxRetries"`
	LogLevel       string            `json:"logLevel,omitempty"`
	LogFile        string            `json:"logFile,omitempty"`
	ErrorFile      string            `json:"errorFile,omitempty"`
	Monitoring     rawMonitoring     `json:"monitoring"`
}

type rawMonitoring struct {
	Enabled            bool    `json:"enabled"`
	Interval           string  `json:"checkInterval,omitempty"`
	HealthCheckURL     string  `json:"healthCheckUrl,omitempty"`
	HealthCheckCommand string  `json:"healthCheckCommand,omitempty"`
	MaxMemoryBytes     uint64  `json:"maxMemoryBytes,omitempty"`
	MaxCPUPercent      float64 `json:"maxCpuPercent,omitempty"`
}

// DefaultConfiguration returns the built-in configuration used when no
// config file exists or the existing one cannot be parsed.
func DefaultConfiguration() ServiceConfiguration {
	return ServiceConfiguration{
		Name:         "svcinstall-daemon",
		DisplayName:  "svcinstall managed daemon",
		AutoRestart:  true,
		RestartDelay: DefaultRestartDelay,
		MaxRetries:   DefaultMaxRetries,
		LogLevel:     "info",
		Monitoring: MonitoringConfig{
			Enabled:  false,
			Interval: DefaultPollInterval,
		},
	}
}

// ConfigManager loads, validates, and persists the JSON configuration,
// merged with the recognized environment overrides.
type ConfigManager struct {
	path string
	log  zerolog.Logger

	mu  sync.Mutex
	cfg ServiceConfiguration
}

// NewConfigManager loads the configuration from path. A missing or
// unparsable file falls back to built-in defaults instead of failing; the
// environment overrides are applied in either case.
func NewConfigManager(path string, log zerolog.Logger) *ConfigManager {
	cm := &ConfigManager{path: path, log: log}
	cm.cfg = cm.load()
	return cm
}

// Path is the configuration file location.
func (cm *ConfigManager) Path() string { return cm.path }

// load reads the file, falling back to defaults on any failure.
func (cm *ConfigManager) load() ServiceConfiguration {
	cfg := DefaultConfiguration()

	data, err := os.ReadFile(cm.path)
	if err != nil {
		if !os.IsNotExist(err) {
			cm.log.Warn().Err(err).Str("path", cm.path).Msg("config unreadable, using defaults")
		}
		return applyEnvOverrides(cfg)
	}

	var raw rawServiceConfiguration
	if err := json.Unmarshal(data, &raw); err != nil {
		cm.log.Warn().Err(err).Str("path", cm.path).Msg("config unparsable, using defaults")
		return applyEnvOverrides(cfg)
	}

	merged, err := fromRaw(&raw)
	if err != nil {
		cm.log.Warn().Err(err).Str("path", cm.path).Msg("config invalid, using defaults")
		return applyEnvOverrides(cfg)
	}
	return applyEnvOverrides(merged)
}

// Reload re-reads the file and replaces the in-memory configuration.
func (cm *ConfigManager) Reload() ServiceConfiguration {
	cfg := cm.load()
	cm.mu.Lock()
	cm.cfg = cfg
	cm.mu.Unlock()
	return cfg
}

// Config returns a copy of the current configuration.
func (cm *ConfigManager) Config() ServiceConfiguration {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.cfg
}

// Update applies fn to the configuration and persists the result.
func (cm *ConfigManager) Update(fn func(*ServiceConfiguration)) error {
	cm.mu.Lock()
	fn(&cm.cfg)
	cfg := cm.cfg
	cm.mu.Unlock()
	return cm.save(cfg)
}

// Save persists the current configuration atomically.
func (cm *ConfigManager) Save() error {
	return cm.save(cm.Config())
}

// ResetToDefaults replaces the configuration with the built-in defaults
// and persists it.
func (cm *ConfigManager) ResetToDefaults() error {
	cm.mu.Lock()
	cm.cfg = applyEnvOverrides(DefaultConfiguration())
	cfg := cm.cfg
	cm.mu.Unlock()
	return cm.save(cfg)
}

func (cm *ConfigManager) save(cfg ServiceConfiguration) error {
	raw := toRaw(&cfg)
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cm.path), DirMode); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := renameio.WriteFile(cm.path, append(data, '\n'), FileMode); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate returns human-readable problems with the configuration. An
// empty slice means the configuration is valid; Validate never fails.
func (cm *ConfigManager) Validate() []string {
	return ValidateConfiguration(cm.Config())
}

// ValidateConfiguration checks a configuration against the install and
// monitoring invariants.
func ValidateConfiguration(cfg ServiceConfiguration) []string {
	var errs []string
	if cfg.Name == "" {
		errs = append(errs, "service name must not be empty")
	}
	if cfg.ExecutablePath == "" {
		errs = append(errs, "executablePath must not be empty")
	}
	if cfg.RestartDelay < 0 {
		errs = append(errs, "restartDelay must not be negative")
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, "maxRetries must not be negative")
	}
	if cfg.Monitoring.Enabled {
		if cfg.Monitoring.Interval <= 0 {
			errs = append(errs, "monitoring.checkInterval must be positive when monitoring is enabled")
		}
		if cfg.Monitoring.MaxCPUPercent != 0 && (cfg.Monitoring.MaxCPUPercent <= 0 || cfg.Monitoring.MaxCPUPercent > 100) {
			errs = append(errs, "monitoring.maxCpuPercent must be in (0,100] when set")
		}
	}
	return errs
}

// applyEnvOverrides merges the fixed set of recognized environment
// overrides over a configuration.
func applyEnvOverrides(cfg ServiceConfiguration) ServiceConfiguration {
	if v := os.Getenv(EnvServiceName); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvAutoRestart); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoRestart = b
		}
	}
	if v := os.Getenv(EnvMonitoring); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Monitoring.Enabled = b
		}
	}
	return cfg
}

func fromRaw(raw *rawServiceConfiguration) (ServiceConfiguration, error) {
	cfg := DefaultConfiguration()

	if raw.Name != "" {
		cfg.Name = raw.Name
	}
	if raw.DisplayName != "" {
		cfg.DisplayName = raw.DisplayName
	}
	cfg.Description = raw.Description
	cfg.ExecutablePath = raw.ExecutablePath
	cfg.Arguments = raw.Arguments
	cfg.WorkingDir = raw.WorkingDir
	cfg.Environment = raw.Environment
	cfg.AutoRestart = raw.AutoRestart
	cfg.MaxRetries = raw.MaxRetries
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	cfg.LogFile = raw.LogFile
	cfg.ErrorFile = raw.ErrorFile

	if raw.RestartDelay != "" {
		d, err := time.ParseDuration(raw.RestartDelay)
		if err != nil {
			return cfg, fmt.Errorf("invalid restartDelay: %w", err)
		}
		cfg.RestartDelay = d
	}

	cfg.Monitoring.Enabled = raw.Monitoring.Enabled
	cfg.Monitoring.HealthCheckURL = raw.Monitoring.HealthCheckURL
	cfg.Monitoring.HealthCheckCommand = raw.Monitoring.HealthCheckCommand
	cfg.Monitoring.MaxMemoryBytes = raw.Monitoring.MaxMemoryBytes
	cfg.Monitoring.MaxCPUPercent = raw.Monitoring.MaxCPUPercent
	if raw.Monitoring.Interval != "" {
		d, err := time.ParseDuration(raw.Monitoring.Interval)
		if err != nil {
			return cfg, fmt.Errorf("invalid monitoring.checkInterval: %w", err)
		}
		cfg.Monitoring.Interval = d
	}

	return cfg, nil
}

func toRaw(cfg *ServiceConfiguration) rawServiceConfiguration {
	raw := rawServiceConfiguration{
		Name:           cfg.Name,
		DisplayName:    cfg.DisplayName,
		Description:    cfg.Description,
		ExecutablePath: cfg.ExecutablePath,
		Arguments:      cfg.Arguments,
		WorkingDir:     cfg.WorkingDir,
		Environment:    cfg.Environment,
		AutoRestart:    cfg.AutoRestart,
		MaxRetries:     cfg.MaxRetries,
		LogLevel:       cfg.LogLevel,
		LogFile:        cfg.LogFile,
		ErrorFile:      cfg.ErrorFile,
		Monitoring: rawMonitoring{
			Enabled:            cfg.Monitoring.Enabled,
			HealthCheckURL:     cfg.Monitoring.HealthCheckURL,
			HealthCheckCommand: cfg.Monitoring.HealthCheckCommand,
			MaxMemoryBytes:     cfg.Monitoring.MaxMemoryBytes,
			MaxCPUPercent:      cfg.Monitoring.MaxCPUPercent,
		},
	}
	if cfg.RestartDelay != 0 {
		raw.RestartDelay = cfg.RestartDelay.String()
	}
	if cfg.Monitoring.Interval != 0 {
		raw.Monitoring.Interval = cfg.Monitoring.Interval.String()
	}
	return raw
}
