package storage

import (
	"fmt"

	"github.com/rogue-hunter/roguehunter/model"
)

// InsertMachineSnapshot inserts a whole-process-table snapshot and its
// per-process rows (§3.1A). Insertion failure is non-critical-path: callers
// should log and continue rather than treat it as fatal.
func (db *DB) InsertMachineSnapshot(snap model.MachineSnapshot, procs []model.MachineSnapshotProcess) error {
	res, err := db.conn.Exec(
		`INSERT INTO machine_snapshots(captured_at, process_count, total_cpu_pct, total_mem_bytes) VALUES (?,?,?,?)`,
		snap.CapturedAt, snap.ProcessCount, snap.TotalCPUPct, snap.TotalMemBytes,
	)
	if err != nil {
		return fmt.Errorf("storage: insert machine snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, p := range procs {
		if _, err := db.conn.Exec(
			`INSERT INTO machine_snapshot_processes(snapshot_id, pid, command, cpu_pct, mem_bytes, state) VALUES (?,?,?,?,?,?)`,
			snapshotID, p.PID, p.Command, p.CPUPct, p.MemBytes, p.State,
		); err != nil {
			return fmt.Errorf("storage: insert machine snapshot process: %w", err)
		}
	}
	return nil
}
