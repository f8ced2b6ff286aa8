package model

// MachineSnapshot is a coarse, whole-process-table periodic record,
// independent of the rogue tracking path (§3.1A). Retained for 12 hours
// by default.
type MachineSnapshot struct {
	ID            int64   `db:"id"`
	CapturedAt    float64 `db:"captured_at"`
	ProcessCount  int     `db:"process_count"`
	TotalCPUPct   float64 `db:"total_cpu_pct"`
	TotalMemBytes uint64  `db:"total_mem_bytes"`
}

// MachineSnapshotProcess is one process row belonging to a MachineSnapshot.
type MachineSnapshotProcess struct {
	SnapshotID int64        `db:"snapshot_id"`
	PID        uint32       `db:"pid"`
	Command    string       `db:"command"`
	CPUPct     float64      `db:"cpu_pct"`
	MemBytes   uint64       `db:"mem_bytes"`
	State      ProcessState `db:"state"`
}
