package svcinstall

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func configManagerFor(t *testing.T, content string) *ConfigManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return NewConfigManager(path, zerolog.Nop())
}

func TestConfigManagerMissingFileUsesDefaults(t *testing.T) {
	cm := configManagerFor(t, "")
	cfg := cm.Config()

	def := DefaultConfiguration()
	if cfg.Name != def.Name {
		t.Errorf("Name = %q, want default %q", cfg.Name, def.Name)
	}
	if cfg.RestartDelay != DefaultRestartDelay {
		t.Errorf("RestartDelay = %v, want %v", cfg.RestartDelay, DefaultRestartDelay)
	}
	if cfg.Monitoring.Interval != DefaultPollInterval {
		t.Errorf("Monitoring.Interval = %v, want %v", cfg.Monitoring.Interval, DefaultPollInterval)
	}
}

func TestConfigManagerUnparsableFileUsesDefaults(t *testing.T) {
	cm := configManagerFor(t, "{not json at all")
	if cfg := cm.Config(); cfg.Name != DefaultConfiguration().Name {
		t.Errorf("Name = %q, want default after parse failure", cfg.Name)
	}
}

func TestConfigManagerLoad(t *testing.T) {
	cm := configManagerFor(t, `{
		"name": "agentbus",
		"executablePath": "/usr/local/bin/agentbus",
		"arguments": ["--port", "8000"],
		"autoRestart": true,
		"restartDelay": "5s",
		"maxRetries": 2,
		"monitoring": {
			"enabled": true,
			"checkInterval": "15s",
			"healthCheckUrl": "http://localhost:8000/health",
			"maxMemoryBytes": 1048576,
			"maxCpuPercent": 80
		}
	}`)
	cfg := cm.Config()

	if cfg.Name != "agentbus" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.ExecutablePath != "/usr/local/bin/agentbus" {
		t.Errorf("ExecutablePath = %q", cfg.ExecutablePath)
	}
	if !reflect.DeepEqual(cfg.Arguments, []string{"--port", "8000"}) {
		t.Errorf("Arguments = %v", cfg.Arguments)
	}
	if cfg.RestartDelay != 5*time.Second {
		t.Errorf("RestartDelay = %v", cfg.RestartDelay)
	}
	if cfg.Monitoring.Interval != 15*time.Second {
		t.Errorf("Monitoring.Interval = %v", cfg.Monitoring.Interval)
	}
	if cfg.Monitoring.MaxMemoryBytes != 1<<20 {
		t.Errorf("MaxMemoryBytes = %d", cfg.Monitoring.MaxMemoryBytes)
	}
	if problems := cm.Validate(); len(problems) != 0 {
		t.Errorf("Validate = %v, want none", problems)
	}
}

func TestConfigManagerEnvOverrides(t *testing.T) {
	t.Setenv(EnvServiceName, "override-name")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvAutoRestart, "false")
	t.Setenv(EnvMonitoring, "true")

	cm := configManagerFor(t, `{"name":"original","executablePath":"/bin/x","autoRestart":true}`)
	cfg := cm.Config()

	if cfg.Name != "override-name" {
		t.Errorf("Name = %q, want env override", cfg.Name)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.AutoRestart {
		t.Error("AutoRestart = true, want env override false")
	}
	if !cfg.Monitoring.Enabled {
		t.Error("Monitoring.Enabled = false, want env override true")
	}
}

func TestValidateConfiguration(t *testing.T) {
	valid := ServiceConfiguration{
		Name:           "agentbus",
		ExecutablePath: "/bin/x",
	}

	tests := []struct {
		name     string
		mutate   func(*ServiceConfiguration)
		wantHint string
	}{
		{
			name:     "empty_name",
			mutate:   func(c *ServiceConfiguration) { c.Name = "" },
			wantHint: "name",
		},
		{
			name:     "empty_executable",
			mutate:   func(c *ServiceConfiguration) { c.ExecutablePath = "" },
			wantHint: "executablePath",
		},
		{
			name:     "negative_restart_delay",
			mutate:   func(c *ServiceConfiguration) { c.RestartDelay = -time.Second },
			wantHint: "restartDelay",
		},
		{
			name:     "negative_max_retries",
			mutate:   func(c *ServiceConfiguration) { c.MaxRetries = -1 },
			wantHint: "maxRetries",
		},
		{
			name: "monitoring_without_interval",
			mutate: func(c *ServiceConfiguration) {
				c.Monitoring.Enabled = true
				c.Monitoring.Interval = 0
			},
			wantHint: "checkInterval",
		},
		{
			name: "cpu_ceiling_over_100",
			mutate: func(c *ServiceConfiguration) {
				c.Monitoring.Enabled = true
				c.Monitoring.Interval = time.Second
				c.Monitoring.MaxCPUPercent = 150
			},
			wantHint: "maxCpuPercent",
		},
	}

	if problems := ValidateConfiguration(valid); len(problems) != 0 {
		t.Fatalf("valid config reported problems: %v", problems)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			problems := ValidateConfiguration(cfg)
			if len(problems) == 0 {
				t.Fatal("expected at least one problem")
			}
			found := false
			for _, p := range problems {
				if strings.Contains(p, tt.wantHint) {
					found = true
				}
			}
			if !found {
				t.Errorf("problems %v do not mention %q", problems, tt.wantHint)
			}
		})
	}
}

func TestConfigManagerSaveReloadRoundTrip(t *testing.T) {
	cm := configManagerFor(t, "")

	err := cm.Update(func(c *ServiceConfiguration) {
		c.Name = "agentbus"
		c.ExecutablePath = "/usr/local/bin/agentbus"
		c.Arguments = []string{"--port", "8000"}
		c.RestartDelay = 7 * time.Second
		c.Monitoring.Enabled = true
		c.Monitoring.Interval = 42 * time.Second
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reloaded := NewConfigManager(cm.Path(), zerolog.Nop()).Config()
	if reloaded.Name != "agentbus" {
		t.Errorf("Name = %q", reloaded.Name)
	}
	if !reflect.DeepEqual(reloaded.Arguments, []string{"--port", "8000"}) {
		t.Errorf("Arguments = %v", reloaded.Arguments)
	}
	if reloaded.RestartDelay != 7*time.Second {
		t.Errorf("RestartDelay = %v", reloaded.RestartDelay)
	}
	if reloaded.Monitoring.Interval != 42*time.Second {
		t.Errorf("Monitoring.Interval = %v", reloaded.Monitoring.Interval)
	}
}

func TestConfigManagerResetToDefaults(t *testing.T) {
	cm := configManagerFor(t, `{"name":"custom","executablePath":"/bin/x"}`)
	if err := cm.ResetToDefaults(); err != nil {
		t.Fatalf("ResetToDefaults failed: %v", err)
	}
	if cfg := cm.Config(); cfg.Name != DefaultConfiguration().Name {
		t.Errorf("Name after reset = %q", cfg.Name)
	}
	// the reset configuration was persisted
	if data, err := os.ReadFile(cm.Path()); err != nil || !strings.Contains(string(data), DefaultConfiguration().Name) {
		t.Errorf("reset not persisted: %v", err)
	}
}

func TestServiceConfigurationInstallRequest(t *testing.T) {
	cfg := ServiceConfiguration{
		Name:           "agentbus",
		ExecutablePath: "/usr/local/bin/agentbus",
		Arguments:      []string{"--port", "8000"},
		WorkingDir:     "/srv",
		Description:    "Test Service",
	}
	req := cfg.InstallRequest()

	want := []string{"/usr/local/bin/agentbus", "--port", "8000"}
	if !reflect.DeepEqual(req.Args, want) {
		t.Errorf("Args = %v, want %v", req.Args, want)
	}
	if req.Name != "agentbus" || req.WorkingDir != "/srv" || req.Description != "Test Service" {
		t.Errorf("request fields not carried over: %+v", req)
	}
}
