package svcinstall

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// ServiceManager selects exactly one platform adapter at construction and
// forwards every lifecycle and query call to it. The platform is never
// re-evaluated afterward.
type ServiceManager struct {
	adapter  Adapter
	platform string
	service  string
	log      zerolog.Logger
}

// ServiceManagerOption configures a ServiceManager
type ServiceManagerOption func(*smOptions)

type smOptions struct {
	platform string
	runner   Runner
	paths    *Paths
	adapter  Adapter
	log      zerolog.Logger
}

// WithPlatform overrides the detected operating system. Intended for tests;
// production construction uses runtime.GOOS.
func WithPlatform(platform string) ServiceManagerOption {
	return func(o *smOptions) { o.platform = platform }
}

// WithRunner substitutes the command runner used by adapters and readers
func WithRunner(r Runner) ServiceManagerOption {
	return func(o *smOptions) { o.runner = r }
}

// WithPaths overrides the resolved directory layout
func WithPaths(p Paths) ServiceManagerOption {
	return func(o *smOptions) { o.paths = &p }
}

// WithAdapter substitutes the platform adapter entirely
func WithAdapter(a Adapter) ServiceManagerOption {
	return func(o *smOptions) { o.adapter = a }
}

// WithManagerLogger sets the logger used for per-operation logging
func WithManagerLogger(log zerolog.Logger) ServiceManagerOption {
	return func(o *smOptions) { o.log = log }
}

// NewServiceManager constructs the manager for a service name, selecting
// the adapter for the current operating system. The selection is fatal and
// immediate: an unsupported OS fails construction, not first use.
func NewServiceManager(service string, opts ...ServiceManagerOption) (*ServiceManager, error) {
	o := smOptions{
		platform: runtime.GOOS,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runner == nil {
		o.runner = NewExecRunner()
	}
	if o.paths == nil {
		p := ResolvePaths(o.platform)
		o.paths = &p
	}

	m := &ServiceManager{
		platform: o.platform,
		service:  service,
		log:      o.log,
	}

	if o.adapter != nil {
		m.adapter = o.adapter
		return m, nil
	}

	switch o.platform {
	case PlatformLinux:
		m.adapter = NewAdapterSystemd(service, *o.paths, o.runner, o.log)
	case PlatformDarwin:
		m.adapter = NewAdapterLaunchd(service, *o.paths, o.runner, o.log)
	case PlatformWindows:
		m.adapter = NewAdapterSchtasks(service, *o.paths, o.runner, o.log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, o.platform)
	}
	return m, nil
}

// logOp emits the before/after pair around one forwarded operation.
func (m *ServiceManager) logOp(op Operation, fn func() error) error {
	m.log.Info().Str("op", op.String()).Str("service", m.service).Msg("running operation")
	err := fn()
	if err != nil {
		m.log.Error().Str("op", op.String()).Str("service", m.service).Err(err).Msg("operation failed")
	} else {
		m.log.Info().Str("op", op.String()).Str("service", m.service).Msg("operation complete")
	}
	return err
}

// Install registers and starts the service through the native manager.
func (m *ServiceManager) Install(ctx context.Context, req InstallRequest) error {
	return m.logOp(OpInstall, func() error { return m.adapter.Install(ctx, req) })
}

// Uninstall removes the native registration.
func (m *ServiceManager) Uninstall(ctx context.Context) error {
	return m.logOp(OpUninstall, func() error { return m.adapter.Uninstall(ctx) })
}

// Start starts the service.
func (m *ServiceManager) Start(ctx context.Context) error {
	return m.logOp(OpStart, func() error { return m.adapter.Start(ctx) })
}

// Stop stops the service.
func (m *ServiceManager) Stop(ctx context.Context) error {
	return m.logOp(OpStop, func() error { return m.adapter.Stop(ctx) })
}

// Restart restarts the service.
func (m *ServiceManager) Restart(ctx context.Context) error {
	return m.logOp(OpRestart, func() error { return m.adapter.Restart(ctx) })
}

// Runtime recomputes the canonical status. Never fails.
func (m *ServiceManager) Runtime(ctx context.Context) Runtime {
	rt := m.adapter.Runtime(ctx)
	m.log.Debug().
		Str("service", m.service).
		Str("state", rt.State.String()).
		Bool("missing", rt.MissingRegistration).
		Msg("runtime status")
	return rt
}

// IsLoaded reports the lightweight native enabled/listed check.
func (m *ServiceManager) IsLoaded(ctx context.Context) bool {
	return m.adapter.IsLoaded(ctx)
}

// ReadCommand deserializes the registered argument sequence; nil means no
// prior registration.
func (m *ServiceManager) ReadCommand(ctx context.Context) []string {
	return m.adapter.ReadCommand(ctx)
}

// Platform is the operating system the manager was constructed for.
func (m *ServiceManager) Platform() string { return m.platform }

// ManagerLabel names the selected native service manager.
func (m *ServiceManager) ManagerLabel() string { return m.adapter.ManagerLabel() }

// ArtifactPath is the native artifact location for this service.
func (m *ServiceManager) ArtifactPath() string { return m.adapter.ArtifactPath() }

// Service is the configured service name.
func (m *ServiceManager) Service() string { return m.service }
