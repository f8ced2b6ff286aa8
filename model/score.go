package model

import "time"

// ProcessScore is one process observed at one instant: its raw counters,
// the rates derived from the previous observation of the same PID, and the
// scoring outputs the scorer attaches before emission.
type ProcessScore struct {
	// Identity.
	PID        uint32  `json:"pid" db:"pid"`
	ParentPID  uint32  `json:"parent_pid" db:"parent_pid"`
	Command    string  `json:"command" db:"command"`
	CapturedAt float64 `json:"captured_at" db:"captured_at"`

	// Raw cumulative counters (since process start, as reported by the OS).
	CPUTimeNs            uint64 `json:"cpu_time_ns" db:"cpu_time_ns"`
	DiskBytesRW          uint64 `json:"disk_bytes_rw" db:"disk_bytes_rw"`
	EnergyNJ             uint64 `json:"energy_nj" db:"energy_nj"`
	PageIns              uint64 `json:"pageins" db:"pageins"`
	ContextSwitches      uint64 `json:"context_switches" db:"context_switches"`
	Syscalls             uint64 `json:"syscalls" db:"syscalls"`
	MachMessages         uint64 `json:"mach_messages" db:"mach_messages"`
	Wakeups              uint64 `json:"wakeups" db:"wakeups"`
	PageFaults           uint64 `json:"page_faults" db:"page_faults"`
	RunnableTimeNs       uint64 `json:"runnable_time_ns" db:"runnable_time_ns"`
	QoSInteractiveTimeNs uint64 `json:"qos_interactive_time_ns" db:"qos_interactive_time_ns"`
	GPUTimeNs            uint64 `json:"gpu_time_ns" db:"gpu_time_ns"`

	// Per-instant values.
	MemFootprint        uint64       `json:"mem_footprint" db:"mem_footprint"`
	MemFootprintLifeMax uint64       `json:"mem_footprint_lifetime_max" db:"mem_footprint_lifetime_max"`
	ThreadCount         int          `json:"thread_count" db:"thread_count"`
	Priority            int          `json:"priority" db:"priority"`
	Instructions        uint64       `json:"instructions" db:"instructions"`
	Cycles              uint64       `json:"cycles" db:"cycles"`
	IPC                 float64      `json:"ipc" db:"ipc"`
	State               ProcessState `json:"state" db:"state"`

	// Derived rates (cumulative delta / wall delta since the previous
	// observation of this PID).
	DiskBytesRWRate     float64 `json:"disk_bytes_rw_rate" db:"disk_bytes_rw_rate"`
	EnergyRate          float64 `json:"energy_rate" db:"energy_rate"`
	PageInsRate         float64 `json:"pageins_rate" db:"pageins_rate"`
	FaultsRate          float64 `json:"faults_rate" db:"faults_rate"`
	ContextSwitchRate   float64 `json:"context_switch_rate" db:"context_switch_rate"`
	SyscallsRate        float64 `json:"syscalls_rate" db:"syscalls_rate"`
	MachMessagesRate    float64 `json:"mach_messages_rate" db:"mach_messages_rate"`
	WakeupsRate         float64 `json:"wakeups_rate" db:"wakeups_rate"`
	RunnableRate        float64 `json:"runnable_rate" db:"runnable_rate"`
	QoSInteractiveRate  float64 `json:"qos_interactive_rate" db:"qos_interactive_rate"`
	GPUTimeRate         float64 `json:"gpu_time_rate" db:"gpu_time_rate"`
	CPU                 float64 `json:"cpu" db:"cpu"`

	// Derived aggregates.
	ZombieChildren int `json:"zombie_children" db:"zombie_children"`

	// Scoring outputs, attached by the scorer.
	Score              int              `json:"score" db:"score"`
	Band               Band             `json:"band" db:"band"`
	ShareCPU           float64          `json:"share_cpu" db:"share_cpu"`
	ShareGPU           float64          `json:"share_gpu" db:"share_gpu"`
	ShareMemory        float64          `json:"share_memory" db:"share_memory"`
	ShareDisk          float64          `json:"share_disk" db:"share_disk"`
	ShareWakeups       float64          `json:"share_wakeups" db:"share_wakeups"`
	Disproportionality float64          `json:"disproportionality" db:"disproportionality"`
	DominantResource   DominantResource `json:"dominant_resource" db:"dominant_resource"`
}

// Shares returns the five resource shares in a fixed order, paired with the
// resource each one names. Used by the scorer to compute the argmax and by
// tests asserting the disproportionality invariant.
func (p *ProcessScore) Shares() [5]struct {
	Resource DominantResource
	Share    float64
} {
	return [5]struct {
		Resource DominantResource
		Share    float64
	}{
		{ResourceCPU, p.ShareCPU},
		{ResourceGPU, p.ShareGPU},
		{ResourceMemory, p.ShareMemory},
		{ResourceDisk, p.ShareDisk},
		{ResourceWakeups, p.ShareWakeups},
	}
}

// SampleSet is one sampler tick: the wall timestamp, elapsed sampling
// duration, number of processes sampled, the hybrid summary score, and the
// selected rogues (§4.2.5).
type SampleSet struct {
	Timestamp    time.Time      `json:"timestamp"`
	ElapsedMs    int            `json:"elapsed_ms"`
	ProcessCount int            `json:"process_count"`
	MaxScore     int            `json:"max_score"`
	Rogues       []ProcessScore `json:"rogues"`
	SampleCount  int            `json:"sample_count"`
}

// RingSample is one entry retained by the ring buffer: a SampleSet, no
// duplicated timestamp (the SampleSet already carries one).
type RingSample = SampleSet

// BufferContents is an immutable, value-copied snapshot of the ring buffer
// at the moment of freeze(), handed to the forensics pipeline.
type BufferContents struct {
	Samples []RingSample `json:"samples"`
}
