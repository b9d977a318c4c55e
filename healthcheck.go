package svcinstall

import (
	"context"
	"net/http"
	"runtime"
)

// HealthProber runs the configured health probe. An HTTP URL takes
// precedence over a shell command; with neither configured the probe is
// skipped entirely.
type HealthProber struct {
	// Client performs HTTP probes; its timeout bounds each request
	Client *http.Client
	// Runner executes command probes
	Runner Runner
	// GOOS selects the shell used for command probes
	GOOS string
}

// NewHealthProber creates a prober with the default probe timeout.
func NewHealthProber(runner Runner) *HealthProber {
	return &HealthProber{
		Client: &http.Client{Timeout: DefaultProbeTimeout},
		Runner: runner,
		GOOS:   runtime.GOOS,
	}
}

// Probe runs the configured check. The result is nil when no probe is
// configured, otherwise healthy or not; probe failures of any kind mean
// unhealthy, never an error.
func (p *HealthProber) Probe(ctx context.Context, cfg MonitoringConfig) *bool {
	switch {
	case cfg.HealthCheckURL != "":
		ok := p.probeHTTP(ctx, cfg.HealthCheckURL)
		return &ok
	case cfg.HealthCheckCommand != "":
		ok := p.probeCommand(ctx, cfg.HealthCheckCommand)
		return &ok
	default:
		return nil
	}
}

func (p *HealthProber) probeHTTP(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *HealthProber) probeCommand(ctx context.Context, command string) bool {
	// the probe gets its own short deadline; the runner's command timeout
	// is far too generous for a liveness check
	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	var err error
	if p.GOOS == PlatformWindows {
		_, err = p.Runner.Run(ctx, "cmd", "/C", command)
	} else {
		_, err = p.Runner.Run(ctx, "sh", "-c", command)
	}
	return err == nil
}
