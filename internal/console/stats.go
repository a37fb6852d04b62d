// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package console

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/tomtom215/monolith/internal/buildinfo"
)

// StatsSource supplies the live numbers the stats command reports.
// Nil funcs are skipped.
type StatsSource struct {
	// QueueDepths returns per-component pending counts.
	QueueDepths func() map[string]int

	// HeartbeatCount returns the number of nodes the ledger has seen.
	HeartbeatCount func() int

	// StreamSubscribers returns the fan-out subscriber count.
	StreamSubscribers func() int
}

func (c *Console) versionLine() string {
	return fmt.Sprintf("< %s %s >", c.cfg.InstanceName, buildinfo.String())
}

// statsLines renders the stats command: component queues, heartbeat
// ledger, go runtime, and a gopsutil host summary.
func (c *Console) statsLines() []string {
	var lines []string

	if c.cfg.Stats.QueueDepths != nil {
		depths := c.cfg.Stats.QueueDepths()
		components := make([]string, 0, len(depths))
		for name := range depths {
			components = append(components, name)
		}
		sort.Strings(components)
		for _, name := range components {
			lines = append(lines, fmt.Sprintf("< queue %s: %d >", name, depths[name]))
		}
	}
	if c.cfg.Stats.HeartbeatCount != nil {
		lines = append(lines, fmt.Sprintf("< heartbeat nodes: %d >", c.cfg.Stats.HeartbeatCount()))
	}
	if c.cfg.Stats.StreamSubscribers != nil {
		lines = append(lines, fmt.Sprintf("< stream subscribers: %d >", c.cfg.Stats.StreamSubscribers()))
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	lines = append(lines,
		fmt.Sprintf("< goroutines: %d >", runtime.NumGoroutine()),
		fmt.Sprintf("< heap: %d KiB >", ms.HeapAlloc/1024),
	)

	lines = append(lines, hostLines()...)
	return lines
}

// hostLines builds the gopsutil host summary. Probe failures degrade to
// fewer lines rather than an error; the console is an inspection tool.
func hostLines() []string {
	var lines []string

	if info, err := host.Info(); err == nil {
		lines = append(lines,
			fmt.Sprintf("< host: %s (%s %s) >", info.Hostname, info.Platform, info.PlatformVersion),
			fmt.Sprintf("< uptime: %ds >", info.Uptime),
		)
	}

	if counts, err := cpu.Counts(true); err == nil {
		model := ""
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			model = infos[0].ModelName
		}
		lines = append(lines, fmt.Sprintf("< cpu: %d x %s >", counts, model))
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		lines = append(lines, fmt.Sprintf("< memory: %d / %d MiB >",
			vm.Used/1024/1024, vm.Total/1024/1024))
	}

	if parts, err := disk.Partitions(false); err == nil {
		for _, p := range parts {
			usage, err := disk.Usage(p.Mountpoint)
			if err != nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("< disk %s: %d / %d GiB >",
				p.Mountpoint, usage.Used/1024/1024/1024, usage.Total/1024/1024/1024))
		}
	}

	return lines
}
