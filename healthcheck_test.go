package svcinstall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthProberHTTP(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no_content", http.StatusNoContent, true},
		{"server_error", http.StatusInternalServerError, false},
		{"not_found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewHealthProber(&fakeRunner{})
			got := p.Probe(context.Background(), MonitoringConfig{HealthCheckURL: srv.URL})
			if got == nil {
				t.Fatal("Probe returned nil for a configured URL")
			}
			if *got != tt.want {
				t.Errorf("Probe = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestHealthProberHTTPUnreachable(t *testing.T) {
	p := NewHealthProber(&fakeRunner{})
	// a closed server: connection refused must degrade to unhealthy
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := p.Probe(context.Background(), MonitoringConfig{HealthCheckURL: url})
	if got == nil || *got {
		t.Errorf("Probe against a dead server = %v, want false", got)
	}
}

func TestHealthProberCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"success", nil, true},
		{"nonzero_exit", errors.New("exit status 1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{handler: func(string, []string) (CmdResult, error) {
				return CmdResult{}, tt.err
			}}
			p := NewHealthProber(runner)
			p.GOOS = PlatformLinux

			got := p.Probe(context.Background(), MonitoringConfig{HealthCheckCommand: "check-health"})
			if got == nil || *got != tt.want {
				t.Errorf("Probe = %v, want %v", got, tt.want)
			}
			if !runner.sawCommand("sh -c check-health") {
				t.Errorf("probe command not run through the shell: %v", runner.callLines())
			}
		})
	}
}

// deadlineRunner records the deadline on the context it is invoked with.
type deadlineRunner struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineRunner) Run(ctx context.Context, _ string, _ ...string) (CmdResult, error) {
	d.deadline, d.ok = ctx.Deadline()
	return CmdResult{}, nil
}

func TestHealthProberCommandDeadline(t *testing.T) {
	runner := &deadlineRunner{}
	p := NewHealthProber(runner)
	p.GOOS = PlatformLinux

	before := time.Now()
	p.Probe(context.Background(), MonitoringConfig{HealthCheckCommand: "check"})
	if !runner.ok {
		t.Fatal("probe command ran without a deadline")
	}
	if remaining := runner.deadline.Sub(before); remaining > DefaultProbeTimeout {
		t.Errorf("probe deadline %v out, want at most %v", remaining, DefaultProbeTimeout)
	}
}

func TestHealthProberCommandShellPerPlatform(t *testing.T) {
	runner := &fakeRunner{}
	p := NewHealthProber(runner)
	p.GOOS = PlatformWindows

	p.Probe(context.Background(), MonitoringConfig{HealthCheckCommand: "check"})
	if !runner.sawCommand("cmd /C check") {
		t.Errorf("windows probe not run through cmd: %v", runner.callLines())
	}
}

func TestHealthProberURLTakesPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runner := &fakeRunner{}
	p := NewHealthProber(runner)
	got := p.Probe(context.Background(), MonitoringConfig{
		HealthCheckURL:     srv.URL,
		HealthCheckCommand: "never-run",
	})
	if got == nil || !*got {
		t.Errorf("Probe = %v, want true", got)
	}
	if runner.callCount() != 0 {
		t.Error("command probe ran despite a configured URL")
	}
}

func TestHealthProberUnconfigured(t *testing.T) {
	p := NewHealthProber(&fakeRunner{})
	if got := p.Probe(context.Background(), MonitoringConfig{}); got != nil {
		t.Errorf("Probe with no probe configured = %v, want nil", got)
	}
}
