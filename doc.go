// Package svcinstall installs and supervises a background service across
// the three mainstream desktop/server platforms without requiring the
// caller to know anything about the native service manager.
//
// On Linux it manages a systemd user unit, on macOS a launchd agent, and
// on Windows a scheduled task. The platform is inspected exactly once,
// when the ServiceManager is constructed:
//
//	mgr, err := svcinstall.NewServiceManager("agentbus")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = mgr.Install(ctx, svcinstall.InstallRequest{
//	    Args:        []string{"/usr/local/bin/agentbus", "--port", "8000"},
//	    Description: "AgentBus message broker",
//	})
//
//	rt := mgr.Runtime(ctx)
//	fmt.Printf("state: %v, pid: %d\n", rt.State, rt.PID)
//
// # Status is best-effort
//
// Runtime never fails. A service the native manager has never heard of
// comes back as stopped or unknown with MissingRegistration set, and a
// broken native tool degrades to unknown with the raw output in Detail.
// Lifecycle operations (Install, Uninstall, Start, Stop, Restart) do
// propagate failures, as a *CmdError carrying the native tool's combined
// output.
//
// # Monitoring
//
// The Monitor polls a managed service on a fixed interval, runs an
// optional HTTP or command health probe, checks memory and CPU ceilings,
// and can restart a stopped service automatically:
//
//	mon := svcinstall.NewMonitor(mgr, cfg,
//	    svcinstall.WithStatusFunc(func(st svcinstall.DaemonStatus) {
//	        fmt.Printf("running=%v\n", st.IsRunning())
//	    }))
//	err = mon.Start(ctx)
//
// The Daemon type composes a ConfigManager, a ServiceManager, and a
// Monitor into the single entry point the svcinstall command uses.
package svcinstall
