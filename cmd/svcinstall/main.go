// Package main is the svcinstall command-line interface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	svcinstall "github.com/axondata/go-svcinstall"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `Usage: svcinstall [flags] <command>

Commands:
  install     register and start the service from the configuration
  uninstall   stop the service and remove its native registration
  start       start the registered service
  stop        stop the service (already stopped counts as success)
  restart     restart the service
  status      print the current status
  health      print the composite health report
  diagnose    print a full diagnostic snapshot
  config      print the effective configuration
  monitor     run the polling monitor in the foreground
  version     print version information

Flags:
`

func main() {
	var (
		serviceName = flag.String("service", "", "Service name (overrides the configured name)")
		configPath  = flag.String("config", "", "Path to the JSON configuration file")
		logLevel    = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
		logFile     = flag.String("log-file", "", "Log to this file with rotation instead of stderr only")
		jsonOut     = flag.Bool("json", false, "Print command results as JSON")
		timeout     = flag.Duration("timeout", svcinstall.DefaultCommandTimeout, "Timeout for each native command")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	if command == "version" {
		info := svcinstall.GetVersion()
		fmt.Printf("svcinstall %s (built %s, library %s, managers %s)\n",
			version, buildTime, info.Version, strings.Join(info.Managers, "/"))
		return
	}

	app, err := newApp(*serviceName, *configPath, *logLevel, *logFile, *timeout, *jsonOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "svcinstall: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.run(ctx, command); err != nil {
		app.log.Error().Err(err).Str("command", command).Msg("command failed")
		fmt.Fprintf(os.Stderr, "svcinstall %s: %v\n", command, err)
		os.Exit(1)
	}
}

type app struct {
	daemon  *svcinstall.Daemon
	log     zerolog.Logger
	jsonOut bool
}

func newApp(service, configPath, logLevel, logFile string, timeout time.Duration, jsonOut bool) (*app, error) {
	paths := svcinstall.ResolvePaths(runtime.GOOS)
	if configPath == "" {
		configPath = paths.ConfigFile()
	}

	cm := svcinstall.NewConfigManager(configPath, zerolog.Nop())
	cfg := cm.Config()
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	log := setupLogger(logLevel, logFile)

	name := cfg.Name
	if service != "" {
		name = service
	}

	mgr, err := svcinstall.NewServiceManager(name,
		svcinstall.WithPaths(paths),
		svcinstall.WithRunner(&svcinstall.ExecRunner{Timeout: timeout}),
		svcinstall.WithManagerLogger(log),
	)
	if err != nil {
		return nil, err
	}

	mon := svcinstall.NewMonitor(mgr, cfg, svcinstall.WithMonitorLogger(log))
	return &app{
		daemon:  svcinstall.NewDaemon(cm, mgr, mon, log),
		log:     log,
		jsonOut: jsonOut,
	}, nil
}

// setupLogger builds a console logger, optionally duplicated into a
// rotated file.
func setupLogger(level, file string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func (a *app) run(ctx context.Context, command string) error {
	switch command {
	case "install":
		if err := a.daemon.Install(ctx); err != nil {
			return err
		}
		a.log.Info().Msg("service installed")
		return nil
	case "uninstall":
		if err := a.daemon.Uninstall(ctx); err != nil {
			return err
		}
		a.log.Info().Msg("service uninstalled")
		return nil
	case "start":
		return a.daemon.Start(ctx)
	case "stop":
		return a.daemon.Stop(ctx)
	case "restart":
		return a.daemon.Restart(ctx)

	// Read-only commands print their result and always exit zero.
	case "status":
		return a.printStatus(ctx)
	case "health":
		return a.printHealth(ctx)
	case "diagnose":
		return a.printDiagnostics(ctx)
	case "config":
		return a.printConfig()
	case "monitor":
		return a.runMonitor(ctx)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) printStatus(ctx context.Context) error {
	status := a.daemon.Status(ctx)
	if a.jsonOut {
		return printJSON(status)
	}

	fmt.Printf("state:    %s\n", status.Runtime.State)
	if status.Runtime.NativeState != "" {
		fmt.Printf("native:   %s\n", status.Runtime.NativeState)
	}
	if status.Runtime.PID > 0 {
		fmt.Printf("pid:      %d\n", status.Runtime.PID)
	}
	if status.Uptime > 0 {
		fmt.Printf("uptime:   %s\n", status.Uptime.Round(time.Second))
	}
	if status.MemoryBytes > 0 {
		fmt.Printf("memory:   %.1f MiB\n", float64(status.MemoryBytes)/(1<<20))
	}
	fmt.Printf("loaded:   %v\n", status.Loaded)
	if status.Runtime.MissingRegistration {
		fmt.Println("warning:  no registration found for this service")
	}
	if status.Health != nil {
		fmt.Printf("health:   %v\n", *status.Health)
	}
	return nil
}

func (a *app) printHealth(ctx context.Context) error {
	report := a.daemon.HealthCheck(ctx)
	if a.jsonOut {
		return printJSON(report)
	}

	fmt.Printf("service:   %v\n", report.Service)
	fmt.Printf("system:    %v\n", report.System)
	fmt.Printf("resources: %v\n", report.Resources)
	fmt.Printf("overall:   %v\n", report.Overall)
	for _, d := range report.Details {
		fmt.Printf("  - %s\n", d)
	}
	return nil
}

func (a *app) printDiagnostics(ctx context.Context) error {
	diag := a.daemon.Diagnose(ctx)
	if a.jsonOut {
		return printJSON(diag)
	}

	fmt.Printf("platform:  %s (%s)\n", diag.Platform, diag.ManagerLabel)
	fmt.Printf("service:   %s\n", diag.Service)
	fmt.Printf("artifact:  %s (exists: %v)\n", diag.ArtifactPath, diag.ArtifactExists)
	fmt.Printf("config:    %s\n", diag.ConfigPath)
	fmt.Printf("loaded:    %v\n", diag.Loaded)
	fmt.Printf("state:     %s\n", diag.Runtime.State)
	if len(diag.Command) > 0 {
		fmt.Printf("command:   %s\n", strings.Join(diag.Command, " "))
	}
	for _, p := range diag.ConfigProblems {
		fmt.Printf("  config problem: %s\n", p)
	}
	return nil
}

func (a *app) printConfig() error {
	cfg := a.daemon.Config().Config()
	if a.jsonOut {
		return printJSON(cfg)
	}

	fmt.Printf("name:        %s\n", cfg.Name)
	fmt.Printf("executable:  %s\n", cfg.ExecutablePath)
	if len(cfg.Arguments) > 0 {
		fmt.Printf("arguments:   %s\n", strings.Join(cfg.Arguments, " "))
	}
	fmt.Printf("autoRestart: %v\n", cfg.AutoRestart)
	fmt.Printf("monitoring:  %v (interval %s)\n", cfg.Monitoring.Enabled, cfg.Monitoring.Interval)
	for _, p := range svcinstall.ValidateConfiguration(cfg) {
		fmt.Printf("  problem: %s\n", p)
	}
	return nil
}

// runMonitor runs the polling monitor until interrupted, with the
// config watcher pushing file changes into it.
func (a *app) runMonitor(ctx context.Context) error {
	mon := a.daemon.Monitor()
	if err := mon.Start(ctx); err != nil {
		return err
	}
	defer mon.Stop()

	watcher := svcinstall.NewConfigWatcher(a.daemon.Config(), mon, a.log)
	if err := watcher.Start(ctx); err != nil {
		a.log.Warn().Err(err).Msg("config watch unavailable, continuing without hot reload")
	} else {
		defer watcher.Stop()
	}

	a.log.Info().Msg("monitoring, press ctrl-c to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-mon.RestartFailures():
			a.log.Error().Err(err).Msg("automatic restart failed")
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
