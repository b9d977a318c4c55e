package svcinstall

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func daemonFixture(t *testing.T, adapter Adapter, configJSON string) *Daemon {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if configJSON != "" {
		require.NoError(t, os.WriteFile(path, []byte(configJSON), 0o644))
	}
	cm := NewConfigManager(path, zerolog.Nop())
	mgr, err := NewServiceManager("agentbus", WithAdapter(adapter))
	require.NoError(t, err)
	return NewDaemon(cm, mgr, nil, zerolog.Nop())
}

func TestDaemonInstallRejectsInvalidConfig(t *testing.T) {
	adapter := &stubAdapter{}
	// default configuration has no executablePath
	d := daemonFixture(t, adapter, "")

	err := d.Install(context.Background())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Install = %v, want ErrInvalidConfig", err)
	}
}

func TestDaemonInstallValidConfig(t *testing.T) {
	adapter := &stubAdapter{}
	d := daemonFixture(t, adapter,
		`{"name":"agentbus","executablePath":"/usr/local/bin/agentbus","arguments":["--port","8000"]}`)

	require.NoError(t, d.Install(context.Background()))
}

func TestDaemonStatusAndHealth(t *testing.T) {
	adapter := &stubAdapter{
		runtime: Runtime{State: StateRunning, PID: 0},
		loaded:  true,
	}
	d := daemonFixture(t, adapter,
		`{"name":"agentbus","executablePath":"/bin/x"}`)

	status := d.Status(context.Background())
	if !status.IsRunning() {
		t.Error("IsRunning = false, want true")
	}
	if !status.Loaded {
		t.Error("Loaded = false, want true")
	}

	report := d.HealthCheck(context.Background())
	if !report.Service || !report.System || !report.Resources {
		t.Errorf("report = %+v, want all checks passing", report)
	}
	if !report.Overall {
		t.Error("Overall = false for a healthy service")
	}
	if len(report.Details) != 0 {
		t.Errorf("Details = %v, want empty for a healthy service", report.Details)
	}
}

func TestDaemonHealthCheckStoppedService(t *testing.T) {
	adapter := &stubAdapter{
		runtime: Runtime{State: StateStopped, MissingRegistration: true},
		loaded:  false,
	}
	d := daemonFixture(t, adapter, `{"name":"agentbus","executablePath":"/bin/x"}`)

	report := d.HealthCheck(context.Background())
	if report.Service || report.System || report.Overall {
		t.Errorf("report = %+v, want service/system/overall false", report)
	}
	if len(report.Details) == 0 {
		t.Error("Details empty for a failing health check")
	}
}

func TestDaemonPlatformAndDiagnose(t *testing.T) {
	adapter := &stubAdapter{
		runtime: Runtime{State: StateStopped},
	}
	d := daemonFixture(t, adapter, "")

	info := d.Platform()
	if info.ServiceManagerLabel != "stub" {
		t.Errorf("ServiceManagerLabel = %q", info.ServiceManagerLabel)
	}

	diag := d.Diagnose(context.Background())
	if diag.Service != "agentbus" {
		t.Errorf("Service = %q", diag.Service)
	}
	if diag.ConfigPath == "" {
		t.Error("ConfigPath empty")
	}
	// the default configuration has no executable, so diagnose must
	// surface the validation problems without failing
	if len(diag.ConfigProblems) == 0 {
		t.Error("ConfigProblems empty for an incomplete configuration")
	}
}
