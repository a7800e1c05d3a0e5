// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package boxinfo samples memory, swap, load and block device counters of the
// host the dashboard runs on.
package boxinfo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/blockdevice"
)

// ErrInfo is returned when a refresh could not read every statistic.
var ErrInfo = errors.New("failed to read box info")

const sectorSize = 512

// Options selects the filesystem roots and the devices to sample.
type Options struct {
	ProcRoot string
	SysRoot  string
	// Devices are "sda" or "sda:disk0"; the alias names the device in metric paths.
	Devices []string
}

// Device is one block device to sample.
type Device struct {
	Name  string
	Alias string
}

// ParseDevice splits "name[:alias]".
func ParseDevice(arg string) (Device, error) {
	name, alias, ok := strings.Cut(arg, ":")
	if !ok || alias == "" {
		alias = name
	}
	if name == "" || strings.ContainsAny(name, "/.") {
		return Device{}, fmt.Errorf("invalid device %q", arg)
	}
	if strings.Contains(alias, ":") {
		alias, _, _ = strings.Cut(alias, ":")
	}
	return Device{Name: name, Alias: alias}, nil
}

// Mem holds byte counts.
type Mem struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// LoadAvg holds the kernel load averages.
type LoadAvg struct {
	Min1  float64
	Min5  float64
	Min15 float64
}

// IO holds cumulative counters of one device.
type IO struct {
	ReadBytes  uint64
	ReadMs     uint64
	WriteBytes uint64
	WriteMs    uint64
}

// Stats is one refresh worth of readings.
type Stats struct {
	Mem  Mem
	Swap Mem
	Load LoadAvg
	IO   map[string]IO // keyed by alias
}

// BoxInfo reads host statistics. It is not safe for concurrent Refresh calls.
type BoxInfo struct {
	proc    procfs.FS
	block   blockdevice.FS
	devices []Device
	stats   Stats
}

// New opens the proc and sys roots. Empty roots default to /proc and /sys.
func New(opts Options) (*BoxInfo, error) {
	if opts.ProcRoot == "" {
		opts.ProcRoot = procfs.DefaultMountPoint
	}
	if opts.SysRoot == "" {
		opts.SysRoot = "/sys"
	}

	proc, err := procfs.NewFS(opts.ProcRoot)
	if err != nil {
		return nil, fmt.Errorf("open proc root: %w", err)
	}
	block, err := blockdevice.NewFS(opts.ProcRoot, opts.SysRoot)
	if err != nil {
		return nil, fmt.Errorf("open sys root: %w", err)
	}

	b := &BoxInfo{proc: proc, block: block}
	for _, arg := range opts.Devices {
		d, err := ParseDevice(arg)
		if err != nil {
			return nil, err
		}
		b.devices = append(b.devices, d)
	}
	return b, nil
}

// Devices returns the configured devices.
func (b *BoxInfo) Devices() []Device { return b.devices }

// Refresh rereads every statistic. On error the previous readings are kept.
func (b *BoxInfo) Refresh() error {
	var next Stats

	mi, err := b.proc.Meminfo()
	if err != nil {
		return fmt.Errorf("%w: meminfo: %v", ErrInfo, err)
	}
	if mi.MemTotal == nil || mi.MemFree == nil || mi.SwapTotal == nil || mi.SwapFree == nil {
		return fmt.Errorf("%w: meminfo lacks MemTotal, MemFree, SwapTotal or SwapFree", ErrInfo)
	}
	next.Mem = memOf(*mi.MemTotal, *mi.MemFree)
	next.Swap = memOf(*mi.SwapTotal, *mi.SwapFree)

	la, err := b.proc.LoadAvg()
	if err != nil {
		return fmt.Errorf("%w: loadavg: %v", ErrInfo, err)
	}
	next.Load = LoadAvg{Min1: la.Load1, Min5: la.Load5, Min15: la.Load15}

	next.IO = make(map[string]IO, len(b.devices))
	for _, d := range b.devices {
		st, _, err := b.block.SysBlockDeviceStat(d.Name)
		if err != nil {
			return fmt.Errorf("%w: device %s: %v", ErrInfo, d.Name, err)
		}
		next.IO[d.Alias] = IO{
			ReadBytes:  st.ReadSectors * sectorSize,
			ReadMs:     st.ReadTicks,
			WriteBytes: st.WriteSectors * sectorSize,
			WriteMs:    st.WriteTicks,
		}
	}

	b.stats = next
	return nil
}

// memOf converts the kB values of /proc/meminfo to bytes.
func memOf(totalKB, freeKB uint64) Mem {
	m := Mem{Total: totalKB * 1024, Free: freeKB * 1024}
	if m.Free <= m.Total {
		m.Used = m.Total - m.Free
	}
	return m
}

// Stats returns the readings of the last successful Refresh.
func (b *BoxInfo) Stats() Stats { return b.stats }

// Metrics flattens the last readings into Graphite paths under "box.".
func (b *BoxInfo) Metrics() map[string]float64 {
	s := b.stats
	out := map[string]float64{
		"box.mem.total":         float64(s.Mem.Total),
		"box.mem.used":          float64(s.Mem.Used),
		"box.mem.free":          float64(s.Mem.Free),
		"box.swap.total":        float64(s.Swap.Total),
		"box.swap.used":         float64(s.Swap.Used),
		"box.swap.free":         float64(s.Swap.Free),
		"box.cpu.loadavg.1min":  s.Load.Min1,
		"box.cpu.loadavg.5min":  s.Load.Min5,
		"box.cpu.loadavg.15min": s.Load.Min15,
	}
	for alias, io := range s.IO {
		prefix := "box.io." + alias
		out[prefix+".read.bytes"] = float64(io.ReadBytes)
		out[prefix+".read.ms"] = float64(io.ReadMs)
		out[prefix+".write.bytes"] = float64(io.WriteBytes)
		out[prefix+".write.ms"] = float64(io.WriteMs)
	}
	return out
}
