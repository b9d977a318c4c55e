package svcinstall

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// HealthReport is the composite health verdict for a managed service.
type HealthReport struct {
	// Service reports whether the service process is running
	Service bool
	// System reports whether the native manager still knows the service
	System bool
	// Resources reports whether the configured ceilings hold; true when
	// no ceiling is configured
	Resources bool
	// Overall is the conjunction of the other verdicts
	Overall bool
	// Details carries one human-readable line per failing check
	Details []string
}

// PlatformInfo identifies the selected platform and native manager.
type PlatformInfo struct {
	Platform            string
	ServiceManagerLabel string
}

// Diagnostics is the structured snapshot produced by Diagnose.
type Diagnostics struct {
	Platform       string
	ManagerLabel   string
	Service        string
	ArtifactPath   string
	ArtifactExists bool
	ConfigPath     string
	ConfigProblems []string
	Loaded         bool
	Runtime        Runtime
	Command        []string
}

// Daemon composes the config manager, service manager, and monitor into
// the single entry point the CLI talks to. All collaborators are
// injected; the daemon constructs nothing on its own.
type Daemon struct {
	cm     *ConfigManager
	mgr    *ServiceManager
	mon    *Monitor
	prober *HealthProber
	log    zerolog.Logger
}

// NewDaemon assembles a daemon from already-constructed parts. The
// monitor and prober may be nil when monitoring is not used.
func NewDaemon(cm *ConfigManager, mgr *ServiceManager, mon *Monitor, log zerolog.Logger) *Daemon {
	return &Daemon{
		cm:     cm,
		mgr:    mgr,
		mon:    mon,
		prober: NewHealthProber(&ExecRunner{Timeout: DefaultProbeTimeout}),
		log:    log,
	}
}

// Monitor exposes the injected monitor; nil when monitoring is off.
func (d *Daemon) Monitor() *Monitor { return d.mon }

// Config exposes the injected config manager.
func (d *Daemon) Config() *ConfigManager { return d.cm }

// Manager exposes the injected service manager.
func (d *Daemon) Manager() *ServiceManager { return d.mgr }

// Install validates the configuration and registers the service. A
// configuration with validation problems is rejected before any native
// command runs.
func (d *Daemon) Install(ctx context.Context) error {
	cfg := d.cm.Config()
	if problems := ValidateConfiguration(cfg); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return d.mgr.Install(ctx, cfg.InstallRequest())
}

// Uninstall removes the native registration.
func (d *Daemon) Uninstall(ctx context.Context) error {
	if d.mon != nil {
		d.mon.Stop()
	}
	return d.mgr.Uninstall(ctx)
}

// Start starts the registered service.
func (d *Daemon) Start(ctx context.Context) error { return d.mgr.Start(ctx) }

// Stop stops the service; an already-stopped service is success.
func (d *Daemon) Stop(ctx context.Context) error { return d.mgr.Stop(ctx) }

// Restart restarts the service.
func (d *Daemon) Restart(ctx context.Context) error { return d.mgr.Restart(ctx) }

// StartMonitoring launches the polling monitor when the configuration
// enables it.
func (d *Daemon) StartMonitoring(ctx context.Context) error {
	if d.mon == nil {
		return nil
	}
	cfg := d.cm.Config()
	if !cfg.Monitoring.Enabled {
		return nil
	}
	return d.mon.Start(ctx)
}

// StopMonitoring stops the polling monitor.
func (d *Daemon) StopMonitoring() {
	if d.mon != nil {
		d.mon.Stop()
	}
}

// Status composes the full best-effort status snapshot. Never fails.
func (d *Daemon) Status(ctx context.Context) DaemonStatus {
	return CollectStatus(ctx, d.mgr, d.prober, d.cm.Config())
}

// HealthCheck reduces the status snapshot to a pass/fail report with
// one detail line per failing check. Never fails.
func (d *Daemon) HealthCheck(ctx context.Context) HealthReport {
	status := d.Status(ctx)

	report := HealthReport{
		Service:   status.IsRunning(),
		System:    status.Loaded,
		Resources: true,
	}
	if status.Resources != nil {
		report.Resources = status.Resources.Overall
	}

	if !report.Service {
		report.Details = append(report.Details,
			fmt.Sprintf("service is not running (state %s)", status.Runtime.State))
	}
	if !report.System {
		report.Details = append(report.Details, "service is not registered with the native manager")
	}
	if status.Resources != nil && !status.Resources.MemoryOK {
		report.Details = append(report.Details,
			fmt.Sprintf("memory usage %d bytes exceeds the configured ceiling", status.MemoryBytes))
	}
	if status.Resources != nil && !status.Resources.CPUOK {
		report.Details = append(report.Details,
			fmt.Sprintf("cpu usage %.1f%% exceeds the configured ceiling", status.CPUPercent))
	}
	if status.Health != nil && !*status.Health {
		report.Details = append(report.Details, "health probe failed")
	}

	report.Overall = report.Service && report.System && report.Resources &&
		(status.Health == nil || *status.Health)
	return report
}

// Platform identifies the selected platform and native manager.
func (d *Daemon) Platform() PlatformInfo {
	return PlatformInfo{
		Platform:            d.mgr.Platform(),
		ServiceManagerLabel: d.mgr.ManagerLabel(),
	}
}

// Diagnose gathers everything useful for debugging a broken install.
// Never fails; every field is best-effort.
func (d *Daemon) Diagnose(ctx context.Context) Diagnostics {
	diag := Diagnostics{
		Platform:       d.mgr.Platform(),
		ManagerLabel:   d.mgr.ManagerLabel(),
		Service:        d.mgr.Service(),
		ArtifactPath:   d.mgr.ArtifactPath(),
		ConfigPath:     d.cm.Path(),
		ConfigProblems: d.cm.Validate(),
		Loaded:         d.mgr.IsLoaded(ctx),
		Runtime:        d.mgr.Runtime(ctx),
		Command:        d.mgr.ReadCommand(ctx),
	}
	if _, err := os.Stat(diag.ArtifactPath); err == nil {
		diag.ArtifactExists = true
	}
	return diag
}
