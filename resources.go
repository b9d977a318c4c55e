package svcinstall

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage is a point-in-time sample of a supervised process.
type ResourceUsage struct {
	// MemoryBytes is the resident set size
	MemoryBytes uint64
	// CPUPercent is the cumulative CPU usage in percent
	CPUPercent float64
	// Uptime is the time since the process was created
	Uptime time.Duration
}

// SampleProcess reads memory, CPU, and uptime for a PID. Fields that
// cannot be read stay zero; only a missing process fails.
func SampleProcess(ctx context.Context, pid int) (ResourceUsage, error) {
	var usage ResourceUsage

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return usage, err
	}

	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		usage.MemoryBytes = mem.RSS
	}
	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		usage.CPUPercent = pct
	}
	if created, err := proc.CreateTimeWithContext(ctx); err == nil && created > 0 {
		usage.Uptime = time.Since(time.UnixMilli(created))
	}
	return usage, nil
}

// EvaluateResources checks a sample against the configured ceilings. A
// ceiling of zero is not enforced; Overall is the conjunction of the
// enforced checks.
func EvaluateResources(usage ResourceUsage, cfg MonitoringConfig) ResourceCheck {
	check := ResourceCheck{MemoryOK: true, CPUOK: true}
	if cfg.MaxMemoryBytes > 0 && usage.MemoryBytes > cfg.MaxMemoryBytes {
		check.MemoryOK = false
	}
	if cfg.MaxCPUPercent > 0 && usage.CPUPercent > cfg.MaxCPUPercent {
		check.CPUOK = false
	}
	check.Overall = check.MemoryOK && check.CPUOK
	return check
}
