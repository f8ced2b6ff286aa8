// Package osadapter defines the narrow interfaces the core consumes to
// reach operating-system data sources (§6): process enumeration, per-process
// counters, the GPU registry, the kernel tracer, and the unified log tool.
// Nothing outside this package knows how those facts are actually obtained.
package osadapter

import "context"

// RusageV4 carries the rich per-process cumulative counters the sampler
// joins once per tick (§6 get_rusage). All time fields are nanoseconds.
type RusageV4 struct {
	UserCPUNs            uint64
	SystemCPUNs          uint64
	PageIns              uint64
	DiskBytesRead        uint64
	DiskBytesWritten     uint64
	BilledEnergyNJ       uint64
	Instructions         uint64
	Cycles               uint64
	FootprintBytes       uint64
	FootprintLifeMaxBytes uint64
	RunnableTimeNs       uint64
	QoSInteractiveTimeNs uint64
}

// TaskInfo carries mach task-level counters (§6 get_task_info).
type TaskInfo struct {
	ThreadCount     int
	ContextSwitches uint64
	SyscallsMach    uint64
	SyscallsUnix    uint64
	MachMessages    uint64
	PageFaults      uint64
	Priority        int
}

// BsdInfo carries BSD-layer identity fields (§6 get_bsd_info).
type BsdInfo struct {
	StatusCode int
	ParentPID  uint32
	Command    string
}

// Timebase converts mach-absolute ticks to nanoseconds: ns = ticks*Numer/Denom.
type Timebase struct {
	Numer uint64
	Denom uint64
}

// ToNanos converts a mach-absolute tick count using this timebase.
func (t Timebase) ToNanos(ticks uint64) uint64 {
	if t.Denom == 0 {
		return ticks
	}
	return ticks * t.Numer / t.Denom
}

// Adapter is the full set of per-process OS data sources the sampler needs.
// A PID missing from a per-PID call's second return value is "absent"
// (process gone, denied) and must be skipped by the caller without error.
type Adapter interface {
	ListAllPIDs(ctx context.Context) ([]uint32, error)
	GetRusage(ctx context.Context, pid uint32) (RusageV4, bool)
	GetTaskInfo(ctx context.Context, pid uint32) (TaskInfo, bool)
	GetBsdInfo(ctx context.Context, pid uint32) (BsdInfo, bool)
	GetProcessName(ctx context.Context, pid uint32) string
	GetTimebase() Timebase
	GetGPUUsage(ctx context.Context) map[uint32]uint64
	BootTime() int64
}

// TraceTool wraps the privileged kernel-trace save and unprivileged decode
// steps (§6 trace.save / trace.decode).
type TraceTool interface {
	Save(ctx context.Context, outputPath string) error
	Decode(ctx context.Context, inputPath string) (string, error)
}

// LogTool wraps the unified log query tool (§6 log.query).
type LogTool interface {
	Query(ctx context.Context, windowSeconds int, predicate string) ([]byte, error)
}
