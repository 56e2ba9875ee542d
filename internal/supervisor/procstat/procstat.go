// Package procstat reads host and per-unit resource usage: total system
// memory/CPU (for the supervisor's memory_max/cpu_quota calculation) and
// a per-instance usage snapshot (for the `status` CLI command's
// memory/CPU columns). It is the one package in this module that reads
// /proc directly.
package procstat

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// TotalMemoryBytes reads MemTotal from /proc/meminfo, the base_memory
// input to the supervisor's memory_max = base_memory * memory_percent /
// 100 calculation (spec.md §4.6 step 3).
func TotalMemoryBytes() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("procstat: open /proc/meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("procstat: malformed MemTotal line %q", line)
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("procstat: parse MemTotal: %w", err)
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("procstat: MemTotal not found in /proc/meminfo")
}

// TotalCPUQuotaUS returns the base_cpu input to the supervisor's
// cpu_quota = base_cpu * cpu_percent / 100 calculation: one cgroup v2
// CPU period (100ms = 100000us) per logical CPU.
func TotalCPUQuotaUS() uint64 {
	const periodUS = 100_000
	return uint64(runtime.NumCPU()) * periodUS
}

// PageSize returns the host's memory page size via golang.org/x/sys/unix,
// used to convert /proc/<pid>/statm page counts into bytes.
func PageSize() int {
	return unix.Getpagesize()
}

// Usage is one point-in-time resource snapshot for a process.
type Usage struct {
	RSSBytes   uint64
	CPUTicks   uint64
}

// Reader reads a live Usage snapshot for a process, keyed by PID.
type Reader interface {
	Read(pid int) (Usage, error)
}

// ProcReader reads /proc/<pid>/statm and /proc/<pid>/stat.
type ProcReader struct {
	pageSize int
}

// NewProcReader constructs a ProcReader using the host page size.
func NewProcReader() *ProcReader {
	return &ProcReader{pageSize: PageSize()}
}

// Read implements Reader by parsing /proc/<pid>/statm (RSS, in pages)
// and /proc/<pid>/stat (utime+stime, in clock ticks).
func (r *ProcReader) Read(pid int) (Usage, error) {
	statmPath := fmt.Sprintf("/proc/%d/statm", pid)
	statmBytes, err := os.ReadFile(statmPath)
	if err != nil {
		return Usage{}, fmt.Errorf("procstat: read %s: %w", statmPath, err)
	}
	statmFields := strings.Fields(string(statmBytes))
	if len(statmFields) < 2 {
		return Usage{}, fmt.Errorf("procstat: malformed statm for pid %d", pid)
	}
	rssPages, err := strconv.ParseUint(statmFields[1], 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("procstat: parse statm rss: %w", err)
	}

	statPath := fmt.Sprintf("/proc/%d/stat", pid)
	statBytes, err := os.ReadFile(statPath)
	if err != nil {
		return Usage{}, fmt.Errorf("procstat: read %s: %w", statPath, err)
	}
	// Fields after the trailing ')' of comm are space-separated; utime
	// and stime are fields 14 and 15 (1-indexed) of the whole record.
	closeParen := strings.LastIndexByte(string(statBytes), ')')
	if closeParen < 0 {
		return Usage{}, fmt.Errorf("procstat: malformed stat for pid %d", pid)
	}
	rest := strings.Fields(string(statBytes)[closeParen+1:])
	if len(rest) < 14 {
		return Usage{}, fmt.Errorf("procstat: truncated stat for pid %d", pid)
	}
	utime, err := strconv.ParseUint(rest[11], 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("procstat: parse utime: %w", err)
	}
	stime, err := strconv.ParseUint(rest[12], 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("procstat: parse stime: %w", err)
	}

	return Usage{
		RSSBytes: rssPages * uint64(r.pageSize),
		CPUTicks: utime + stime,
	}, nil
}

// NopReader always returns a zero Usage, for use on platforms without
// /proc or in tests that don't exercise real processes.
type NopReader struct{}

func (NopReader) Read(int) (Usage, error) { return Usage{}, nil }

var _ Reader = (*ProcReader)(nil)
var _ Reader = NopReader{}
