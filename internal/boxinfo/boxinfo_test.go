// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package boxinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const meminfo = `MemTotal:        2048 kB
MemFree:          512 kB
MemAvailable:    1024 kB
Buffers:           10 kB
SwapTotal:       1000 kB
SwapFree:         250 kB
`

type fakeRoots struct {
	proc string
	sys  string
}

func newFakeRoots(t *testing.T) fakeRoots {
	t.Helper()
	dir := t.TempDir()
	r := fakeRoots{proc: filepath.Join(dir, "proc"), sys: filepath.Join(dir, "sys")}
	require.NoError(t, os.MkdirAll(r.proc, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(r.sys, "block"), 0o755))
	r.write(t, filepath.Join(r.proc, "meminfo"), meminfo)
	r.write(t, filepath.Join(r.proc, "loadavg"), "0.50 0.25 0.10 1/123 4567\n")
	r.device(t, "sda", "    100     5   2000   40   300   6   4000   80   0   120   120\n")
	return r
}

func (r fakeRoots) write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func (r fakeRoots) device(t *testing.T, name, stat string) {
	t.Helper()
	dir := filepath.Join(r.sys, "block", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	r.write(t, filepath.Join(dir, "stat"), stat)
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice("sda")
	require.NoError(t, err)
	assert.Equal(t, Device{Name: "sda", Alias: "sda"}, d)

	d, err = ParseDevice("nvme0n1:disk0")
	require.NoError(t, err)
	assert.Equal(t, Device{Name: "nvme0n1", Alias: "disk0"}, d)

	d, err = ParseDevice("sdb:data:extra")
	require.NoError(t, err)
	assert.Equal(t, "data", d.Alias)

	for _, bad := range []string{"", ":x", "../sda", "sd.a"} {
		_, err := ParseDevice(bad)
		assert.Error(t, err, bad)
	}
}

func TestRefresh_ReadsAllStatistics(t *testing.T) {
	r := newFakeRoots(t)
	b, err := New(Options{ProcRoot: r.proc, SysRoot: r.sys, Devices: []string{"sda:disk0"}})
	require.NoError(t, err)
	require.NoError(t, b.Refresh())

	s := b.Stats()
	assert.Equal(t, Mem{Total: 2048 * 1024, Used: 1536 * 1024, Free: 512 * 1024}, s.Mem)
	assert.Equal(t, Mem{Total: 1000 * 1024, Used: 750 * 1024, Free: 250 * 1024}, s.Swap)
	assert.Equal(t, LoadAvg{Min1: 0.5, Min5: 0.25, Min15: 0.1}, s.Load)
	assert.Equal(t, IO{ReadBytes: 2000 * 512, ReadMs: 40, WriteBytes: 4000 * 512, WriteMs: 80}, s.IO["disk0"])

	m := b.Metrics()
	assert.Equal(t, float64(512*1024), m["box.mem.free"])
	assert.Equal(t, 0.25, m["box.cpu.loadavg.5min"])
	assert.Equal(t, float64(4000*512), m["box.io.disk0.write.bytes"])
	assert.Equal(t, float64(40), m["box.io.disk0.read.ms"])
	assert.Len(t, m, 9+4)
}

func TestRefresh_MissingDeviceIsErrInfo(t *testing.T) {
	r := newFakeRoots(t)
	b, err := New(Options{ProcRoot: r.proc, SysRoot: r.sys, Devices: []string{"sda", "sdz"}})
	require.NoError(t, err)

	err = b.Refresh()
	require.ErrorIs(t, err, ErrInfo)
	assert.Contains(t, err.Error(), "sdz")
}

func TestRefresh_MissingSwapIsErrInfo(t *testing.T) {
	r := newFakeRoots(t)
	r.write(t, filepath.Join(r.proc, "meminfo"), "MemTotal: 2048 kB\nMemFree: 512 kB\n")
	b, err := New(Options{ProcRoot: r.proc, SysRoot: r.sys})
	require.NoError(t, err)

	assert.ErrorIs(t, b.Refresh(), ErrInfo)
}

func TestRefresh_KeepsPreviousOnError(t *testing.T) {
	r := newFakeRoots(t)
	b, err := New(Options{ProcRoot: r.proc, SysRoot: r.sys})
	require.NoError(t, err)
	require.NoError(t, b.Refresh())
	before := b.Stats()

	require.NoError(t, os.Remove(filepath.Join(r.proc, "loadavg")))
	assert.ErrorIs(t, b.Refresh(), ErrInfo)
	assert.Equal(t, before, b.Stats())
}

func TestNew_BadRoot(t *testing.T) {
	_, err := New(Options{ProcRoot: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
