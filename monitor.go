package svcinstall

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"vawter.tech/stopper"
)

// monitorStopGrace bounds how long Stop waits for an in-flight tick.
const monitorStopGrace = 5 * time.Second

// StatusFunc receives the status computed by each monitor tick.
type StatusFunc func(DaemonStatus)

// Monitor polls the service on a fixed interval, runs the configured
// health probe and resource checks, and optionally restarts a stopped
// service. Ticks never overlap: a poll that is still running when the
// next ticker fires makes that tick a no-op.
type Monitor struct {
	mgr    *ServiceManager
	prober *HealthProber
	clk    clock.Clock
	log    zerolog.Logger

	mu       sync.Mutex
	cfg      ServiceConfiguration
	sctx     *stopper.Context
	retries  int
	onStatus StatusFunc

	busy       atomic.Bool
	restarting atomic.Bool

	intervalCh      chan time.Duration
	restartFailures chan error
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorClock substitutes the wall clock, for tests.
func WithMonitorClock(clk clock.Clock) MonitorOption {
	return func(m *Monitor) { m.clk = clk }
}

// WithMonitorLogger sets the monitor logger.
func WithMonitorLogger(log zerolog.Logger) MonitorOption {
	return func(m *Monitor) { m.log = log }
}

// WithMonitorProber substitutes the health prober.
func WithMonitorProber(p *HealthProber) MonitorOption {
	return func(m *Monitor) { m.prober = p }
}

// WithStatusFunc registers the per-tick status callback.
func WithStatusFunc(fn StatusFunc) MonitorOption {
	return func(m *Monitor) { m.onStatus = fn }
}

// NewMonitor creates a monitor for a managed service.
func NewMonitor(mgr *ServiceManager, cfg ServiceConfiguration, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		mgr:             mgr,
		cfg:             cfg,
		clk:             clock.New(),
		log:             zerolog.Nop(),
		intervalCh:      make(chan time.Duration, 1),
		restartFailures: make(chan error, 8),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.prober == nil {
		m.prober = NewHealthProber(&ExecRunner{Timeout: DefaultProbeTimeout})
	}
	return m
}

// RestartFailures delivers errors from monitor-triggered restarts. The
// channel is buffered; when nobody drains it, further failures are
// logged and dropped.
func (m *Monitor) RestartFailures() <-chan error { return m.restartFailures }

// Start launches the polling loop. A second Start without an
// intervening Stop fails with ErrMonitorRunning.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sctx != nil {
		return ErrMonitorRunning
	}
	interval := m.cfg.Monitoring.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	sctx := stopper.WithContext(ctx)
	m.sctx = sctx
	sctx.Go(func(sctx *stopper.Context) error {
		m.loop(sctx, interval)
		return nil
	})
	m.log.Debug().Dur("interval", interval).Msg("monitor started")
	return nil
}

// Stop stops the polling loop and waits for in-flight work.
func (m *Monitor) Stop() {
	m.mu.Lock()
	sctx := m.sctx
	m.sctx = nil
	m.mu.Unlock()
	if sctx == nil {
		return
	}
	sctx.Stop(monitorStopGrace)
	_ = sctx.Wait()
	m.log.Debug().Msg("monitor stopped")
}

// Running reports whether the polling loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sctx != nil
}

// UpdateConfig replaces the monitored configuration. An interval change
// re-arms the ticker; the retry budget is reset.
func (m *Monitor) UpdateConfig(cfg ServiceConfiguration) {
	m.mu.Lock()
	prev := m.cfg.Monitoring.Interval
	m.cfg = cfg
	m.retries = 0
	running := m.sctx != nil
	m.mu.Unlock()

	next := cfg.Monitoring.Interval
	if running && next > 0 && next != prev {
		select {
		case m.intervalCh <- next:
		default:
		}
	}
}

func (m *Monitor) loop(sctx *stopper.Context, interval time.Duration) {
	ticker := m.clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sctx.Stopping():
			return
		case next := <-m.intervalCh:
			ticker.Reset(next)
			m.log.Debug().Dur("interval", next).Msg("poll interval updated")
		case <-ticker.C:
			m.tick(sctx)
		}
	}
}

// tick performs one poll. Overlapping ticks are skipped.
func (m *Monitor) tick(sctx *stopper.Context) {
	if !m.busy.CompareAndSwap(false, true) {
		m.log.Debug().Msg("previous poll still running, skipping tick")
		return
	}
	defer m.busy.Store(false)

	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	status := CollectStatus(sctx, m.mgr, m.prober, cfg)

	m.log.Debug().
		Str("state", status.Runtime.State.String()).
		Int("pid", status.Runtime.PID).
		Bool("loaded", status.Loaded).
		Msg("poll")

	if m.onStatus != nil {
		m.onStatus(status)
	}

	switch {
	case status.Runtime.State == StateRunning:
		m.mu.Lock()
		m.retries = 0
		m.mu.Unlock()
	case status.Runtime.State == StateStopped && cfg.AutoRestart && !status.Runtime.MissingRegistration:
		m.scheduleRestart(sctx, cfg)
	}
}

// scheduleRestart restarts the service after the configured delay, off
// the polling goroutine. At most one restart is in flight, and the
// retry budget bounds consecutive attempts.
func (m *Monitor) scheduleRestart(sctx *stopper.Context, cfg ServiceConfiguration) {
	m.mu.Lock()
	if cfg.MaxRetries > 0 && m.retries >= cfg.MaxRetries {
		m.mu.Unlock()
		m.log.Warn().Int("retries", m.retries).Msg("restart budget exhausted")
		return
	}
	m.mu.Unlock()

	if !m.restarting.CompareAndSwap(false, true) {
		return
	}

	sctx.Go(func(sctx *stopper.Context) error {
		defer m.restarting.Store(false)

		if cfg.RestartDelay > 0 {
			timer := m.clk.Timer(cfg.RestartDelay)
			defer timer.Stop()
			select {
			case <-sctx.Stopping():
				return nil
			case <-timer.C:
			}
		}

		m.mu.Lock()
		m.retries++
		attempt := m.retries
		m.mu.Unlock()

		m.log.Info().Int("attempt", attempt).Msg("restarting stopped service")
		if err := m.mgr.Restart(sctx); err != nil {
			m.log.Error().Err(err).Int("attempt", attempt).Msg("restart failed")
			select {
			case m.restartFailures <- err:
			default:
				m.log.Warn().Msg("restart failure channel full, dropping")
			}
		}
		return nil
	})
}

// CollectStatus assembles the full status snapshot: canonical runtime,
// loaded flag, and, for a live PID, resource usage plus the configured
// health probe and ceiling checks.
func CollectStatus(ctx context.Context, mgr *ServiceManager, prober *HealthProber, cfg ServiceConfiguration) DaemonStatus {
	status := DaemonStatus{
		Runtime: mgr.Runtime(ctx),
		Loaded:  mgr.IsLoaded(ctx),
	}

	if prober != nil && cfg.Monitoring.Enabled {
		status.Health = prober.Probe(ctx, cfg.Monitoring)
	}

	if status.Runtime.PID > 0 {
		if usage, err := SampleProcess(ctx, status.Runtime.PID); err == nil {
			status.MemoryBytes = usage.MemoryBytes
			status.CPUPercent = usage.CPUPercent
			status.Uptime = usage.Uptime
			if cfg.Monitoring.MaxMemoryBytes > 0 || cfg.Monitoring.MaxCPUPercent > 0 {
				check := EvaluateResources(usage, cfg.Monitoring)
				status.Resources = &check
			}
		}
	}
	return status
}
