package storage

import (
	"fmt"

	"github.com/rogue-hunter/roguehunter/model"
)

// CreateEvent inserts a new process_events row and returns its id.
func (db *DB) CreateEvent(e model.ProcessEvent) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO process_events(pid, command, boot_time, entry_time, entry_band, peak_band, peak_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.PID, e.Command, e.BootTime, e.EntryTime, e.EntryBand, e.PeakBand, e.PeakScore,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: create event: %w", err)
	}
	return res.LastInsertId()
}

// InsertSnapshot inserts a full ProcessSnapshot row and returns its id.
func (db *DB) InsertSnapshot(eventID int64, snapType model.SnapshotType, s model.ProcessScore) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO process_snapshots (
			event_id, snapshot_type, pid, parent_pid, command, captured_at,
			cpu_time_ns, disk_bytes_rw, energy_nj, pageins, context_switches, syscalls,
			mach_messages, wakeups, page_faults, runnable_time_ns, qos_interactive_time_ns, gpu_time_ns,
			mem_footprint, mem_footprint_lifetime_max, thread_count, priority, instructions, cycles, ipc, state,
			disk_bytes_rw_rate, energy_rate, pageins_rate, faults_rate, context_switch_rate, syscalls_rate,
			mach_messages_rate, wakeups_rate, runnable_rate, qos_interactive_rate, gpu_time_rate, cpu,
			zombie_children, score, band, share_cpu, share_gpu, share_memory, share_disk, share_wakeups,
			disproportionality, dominant_resource
		) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?,
			?, ?
		)`,
		eventID, snapType, s.PID, s.ParentPID, s.Command, s.CapturedAt,
		s.CPUTimeNs, s.DiskBytesRW, s.EnergyNJ, s.PageIns, s.ContextSwitches, s.Syscalls,
		s.MachMessages, s.Wakeups, s.PageFaults, s.RunnableTimeNs, s.QoSInteractiveTimeNs, s.GPUTimeNs,
		s.MemFootprint, s.MemFootprintLifeMax, s.ThreadCount, s.Priority, s.Instructions, s.Cycles, s.IPC, s.State,
		s.DiskBytesRWRate, s.EnergyRate, s.PageInsRate, s.FaultsRate, s.ContextSwitchRate, s.SyscallsRate,
		s.MachMessagesRate, s.WakeupsRate, s.RunnableRate, s.QoSInteractiveRate, s.GPUTimeRate, s.CPU,
		s.ZombieChildren, s.Score, s.Band, s.ShareCPU, s.ShareGPU, s.ShareMemory, s.ShareDisk, s.ShareWakeups,
		s.Disproportionality, s.DominantResource,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePeak updates an event's peak score/band/snapshot pointer.
func (db *DB) UpdatePeak(eventID int64, peakScore int, peakBand model.Band, peakSnapshotID int64) error {
	_, err := db.conn.Exec(
		`UPDATE process_events SET peak_score = ?, peak_band = ?, peak_snapshot_id = ? WHERE id = ?`,
		peakScore, peakBand, peakSnapshotID, eventID,
	)
	if err != nil {
		return fmt.Errorf("storage: update peak: %w", err)
	}
	return nil
}

// CloseEvent sets exit_time, marking the event closed. For absent-PID closes
// the tracker passes the current tick's timestamp, since no final
// observation of the process is available.
func (db *DB) CloseEvent(eventID int64, exitTime float64) error {
	_, err := db.conn.Exec(`UPDATE process_events SET exit_time = ? WHERE id = ?`, exitTime, eventID)
	if err != nil {
		return fmt.Errorf("storage: close event: %w", err)
	}
	return nil
}

// LoadOpenEvents returns every event for the given boot_time whose
// exit_time is still NULL (§4.4.2).
func (db *DB) LoadOpenEvents(bootTime int64) ([]model.ProcessEvent, error) {
	var events []model.ProcessEvent
	err := db.conn.Select(&events,
		`SELECT id, pid, command, boot_time, entry_time, exit_time, entry_band, peak_band, peak_score, peak_snapshot_id
		 FROM process_events WHERE boot_time = ? AND exit_time IS NULL`,
		bootTime,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load open events: %w", err)
	}
	return events, nil
}
