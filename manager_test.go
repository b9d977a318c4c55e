package svcinstall

import (
	"context"
	"errors"
	"testing"
)

func TestNewServiceManagerDispatch(t *testing.T) {
	tests := []struct {
		platform  string
		wantLabel string
	}{
		{PlatformLinux, ManagerSystemd},
		{PlatformDarwin, ManagerLaunchd},
		{PlatformWindows, ManagerSchtasks},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			m, err := NewServiceManager("agentbus",
				WithPlatform(tt.platform),
				WithRunner(&fakeRunner{}),
				WithPaths(testPaths(t)),
			)
			if err != nil {
				t.Fatalf("NewServiceManager(%s) failed: %v", tt.platform, err)
			}
			if m.ManagerLabel() != tt.wantLabel {
				t.Errorf("ManagerLabel = %q, want %q", m.ManagerLabel(), tt.wantLabel)
			}
			if m.Platform() != tt.platform {
				t.Errorf("Platform = %q, want %q", m.Platform(), tt.platform)
			}
			if m.Service() != "agentbus" {
				t.Errorf("Service = %q", m.Service())
			}
		})
	}
}

func TestNewServiceManagerUnsupportedPlatform(t *testing.T) {
	_, err := NewServiceManager("agentbus", WithPlatform("plan9"))
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestServiceManagerForwardsToAdapter(t *testing.T) {
	runner := &fakeRunner{}
	m, err := NewServiceManager("agentbus",
		WithPlatform(PlatformLinux),
		WithRunner(runner),
		WithPaths(testPaths(t)),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Errorf("Start = %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Errorf("Stop = %v", err)
	}
	if err := m.Restart(ctx); err != nil {
		t.Errorf("Restart = %v", err)
	}
	_ = m.Runtime(ctx)
	_ = m.IsLoaded(ctx)

	for _, want := range []string{"start agentbus.service", "stop agentbus.service", "restart agentbus.service", "show agentbus.service", "is-enabled agentbus.service"} {
		if !runner.sawCommand(want) {
			t.Errorf("manager did not forward %q: %v", want, runner.callLines())
		}
	}
}

// stubAdapter satisfies Adapter for injection tests.
type stubAdapter struct {
	runtime Runtime
	loaded  bool
}

func (s *stubAdapter) Install(context.Context, InstallRequest) error { return nil }
func (s *stubAdapter) Uninstall(context.Context) error               { return nil }
func (s *stubAdapter) Start(context.Context) error                   { return nil }
func (s *stubAdapter) Stop(context.Context) error                    { return nil }
func (s *stubAdapter) Restart(context.Context) error                 { return nil }
func (s *stubAdapter) Runtime(context.Context) Runtime               { return s.runtime }
func (s *stubAdapter) IsLoaded(context.Context) bool                 { return s.loaded }
func (s *stubAdapter) ReadCommand(context.Context) []string          { return nil }
func (s *stubAdapter) ManagerLabel() string                          { return "stub" }
func (s *stubAdapter) ArtifactPath() string                          { return "/dev/null" }

func TestServiceManagerWithAdapter(t *testing.T) {
	stub := &stubAdapter{runtime: Runtime{State: StateRunning, PID: 1}, loaded: true}
	m, err := NewServiceManager("agentbus", WithAdapter(stub))
	if err != nil {
		t.Fatal(err)
	}
	if rt := m.Runtime(context.Background()); rt.State != StateRunning {
		t.Errorf("State = %v, want running", rt.State)
	}
	if !m.IsLoaded(context.Background()) {
		t.Error("IsLoaded = false, want true")
	}
}
