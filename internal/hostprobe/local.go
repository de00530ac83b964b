package hostprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// localCPUInterval is the measurement window for CPU utilization.
const localCPUInterval = 500 * time.Millisecond

// LocalProbe reads the machine hostpulse itself runs on.
type LocalProbe struct{}

// NewLocalProbe creates a LocalProbe.
func NewLocalProbe() *LocalProbe { return &LocalProbe{} }

// Sample implements Probe.
func (LocalProbe) Sample(ctx context.Context, host Host) (Reading, error) {
	cpuPct, err := cpu.PercentWithContext(ctx, localCPUInterval, false)
	if err != nil {
		return Reading{}, fmt.Errorf("read cpu: %w", err)
	}
	if len(cpuPct) == 0 {
		return Reading{}, fmt.Errorf("read cpu: no data")
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("read memory: %w", err)
	}
	path := host.DiskPath
	if path == "" {
		path = "/"
	}
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Reading{}, fmt.Errorf("read disk %s: %w", path, err)
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("read load: %w", err)
	}
	return Reading{
		CPUPercent:    clampPercent(cpuPct[0]),
		MemoryPercent: clampPercent(vm.UsedPercent),
		DiskPercent:   clampPercent(du.UsedPercent),
		Load1m:        avg.Load1,
	}, nil
}

// Processes implements Probe. Processes that exit mid-scan are skipped.
func (LocalProbe) Processes(ctx context.Context, _ Host) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cpuPct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		user, _ := p.UsernameWithContext(ctx)
		cmd, _ := p.CmdlineWithContext(ctx)
		if cmd == "" {
			cmd, _ = p.NameWithContext(ctx)
		}
		out = append(out, Process{
			PID:           int(p.Pid),
			User:          user,
			CPUPercent:    cpuPct,
			MemoryPercent: float64(memPct),
			Command:       cmd,
		})
	}
	return out, nil
}
