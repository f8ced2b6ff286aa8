package storage

import (
	"encoding/json"
	"fmt"

	"github.com/rogue-hunter/roguehunter/model"
)

// CreateCapture inserts a new forensic_captures row and returns its id.
func (db *DB) CreateCapture(c model.ForensicCapture) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO forensic_captures(event_id, captured_at, trigger) VALUES (?, ?, ?)`,
		c.EventID, c.CapturedAt, c.Trigger,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: create capture: %w", err)
	}
	return res.LastInsertId()
}

// UpdateCaptureStatus updates the three status fields of a capture.
func (db *DB) UpdateCaptureStatus(captureID int64, traceSave, traceDecode, logs model.CaptureStatus) error {
	_, err := db.conn.Exec(
		`UPDATE forensic_captures SET trace_save_status = ?, trace_decode_status = ?, logs_status = ? WHERE id = ?`,
		traceSave, traceDecode, logs, captureID,
	)
	if err != nil {
		return fmt.Errorf("storage: update capture status: %w", err)
	}
	return nil
}

// InsertTraceDocument inserts a fully-parsed TraceDocument's header and
// process/thread/frame tree for the given capture (§4.5.1).
func (db *DB) InsertTraceDocument(captureID int64, doc model.TraceDocument) error {
	h := doc.Header
	_, err := db.conn.Exec(
		`INSERT INTO trace_header (
			capture_id, start_time, end_time, duration_sec, steps, sampling_interval_ms,
			os_version, architecture, report_version, hardware_model, active_cpus, memory_gb,
			hw_page_size, vm_page_size, time_since_boot_sec, time_awake_since_boot_sec,
			total_cpu_time_sec, total_cycles, total_instructions, total_cpi,
			memory_pressure_avg_pct, memory_pressure_max_pct, available_memory_avg_gb, available_memory_min_gb,
			free_disk_gb, total_disk_gb, advisory_battery, advisory_user, advisory_thermal, advisory_combined,
			shared_cache_residency_pct, vnodes_available_pct, data_source, reason
		) VALUES (?,?,?,?,?,?, ?,?,?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?,?,?, ?,?,?,?)`,
		captureID, h.StartTime, h.EndTime, h.DurationSec, h.Steps, h.SamplingIntervalMs,
		h.OSVersion, h.Architecture, h.ReportVersion, h.HardwareModel, h.ActiveCPUs, h.MemoryGB,
		h.HWPageSize, h.VMPageSize, h.TimeSinceBootSec, h.TimeAwakeSinceBootSec,
		h.TotalCPUTimeSec, h.TotalCycles, h.TotalInstructions, h.TotalCPI,
		h.MemoryPressureAvgPct, h.MemoryPressureMaxPct, h.AvailableMemoryAvgGB, h.AvailableMemoryMinGB,
		h.FreeDiskGB, h.TotalDiskGB, h.AdvisoryBattery, h.AdvisoryUser, h.AdvisoryThermal, h.AdvisoryCombined,
		h.SharedCacheResidencyPct, h.VnodesAvailablePct, h.DataSource, h.Reason,
	)
	if err != nil {
		return fmt.Errorf("storage: insert trace header: %w", err)
	}

	for _, sc := range h.SharedCaches {
		if _, err := db.conn.Exec(
			`INSERT INTO trace_shared_cache(capture_id, uuid, base_address, slide, name) VALUES (?,?,?,?,?)`,
			captureID, sc.UUID, sc.BaseAddress, sc.Slide, sc.Name,
		); err != nil {
			return fmt.Errorf("storage: insert shared cache: %w", err)
		}
	}
	for _, io := range h.IOStats {
		if _, err := db.conn.Exec(
			`INSERT INTO trace_io_stats(capture_id, tier, io_count, bytes_total, io_rate, bytes_rate) VALUES (?,?,?,?,?,?)`,
			captureID, io.Tier, io.IOCount, io.BytesTotal, io.IORate, io.BytesRate,
		); err != nil {
			return fmt.Errorf("storage: insert io stats: %w", err)
		}
	}

	for _, p := range doc.Processes {
		if err := db.insertTraceProcess(captureID, p); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) insertTraceProcess(captureID int64, p model.TraceProcess) error {
	res, err := db.conn.Exec(
		`INSERT INTO trace_process (
			capture_id, pid, name, uuid, path, identifier, version,
			parent_pid, parent_name, responsible_pid, responsible_name,
			execed_from_pid, execed_from_name, execed_to_pid, execed_to_name,
			architecture, shared_cache_uuid, runningboard_managed, sudden_term,
			footprint_mb, footprint_delta_mb, io_count, io_bytes, time_since_fork_sec,
			start_time, end_time, num_samples, sample_range_start, sample_range_end,
			cpu_time_sec, cycles, instructions, cpi, num_threads
		) VALUES (?,?,?,?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?)`,
		captureID, p.PID, p.Name, p.UUID, p.Path, p.Identifier, p.Version,
		p.ParentPID, p.ParentName, p.ResponsiblePID, p.ResponsibleName,
		p.ExecedFromPID, p.ExecedFromName, p.ExecedToPID, p.ExecedToName,
		p.Architecture, p.SharedCacheUUID, p.RunningBoardManaged, p.SuddenTerm,
		p.FootprintMB, p.FootprintDeltaMB, p.IOCount, p.IOBytes, p.TimeSinceForkSec,
		p.StartTime, p.EndTime, p.NumSamples, p.SampleRangeStart, p.SampleRangeEnd,
		p.CPUTimeSec, p.Cycles, p.Instructions, p.CPI, p.NumThreads,
	)
	if err != nil {
		return fmt.Errorf("storage: insert trace process: %w", err)
	}
	processID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, n := range p.Notes {
		if _, err := db.conn.Exec(`INSERT INTO trace_process_note(process_id, note) VALUES (?,?)`, processID, n.Note); err != nil {
			return fmt.Errorf("storage: insert process note: %w", err)
		}
	}
	for _, img := range p.BinaryImages {
		if _, err := db.conn.Exec(
			`INSERT INTO trace_binary_image(process_id, start_addr, end_addr, name, uuid, path, is_kernel) VALUES (?,?,?,?,?,?,?)`,
			processID, img.StartAddr, img.EndAddr, img.Name, img.UUID, img.Path, img.IsKernel,
		); err != nil {
			return fmt.Errorf("storage: insert binary image: %w", err)
		}
	}
	for _, th := range p.Threads {
		if err := db.insertTraceThread(processID, th); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) insertTraceThread(processID int64, th model.TraceThread) error {
	res, err := db.conn.Exec(
		`INSERT INTO trace_thread (
			process_id, thread_id, dispatch_queue, thread_name, num_samples,
			sample_range_start, sample_range_end, priority, cpu_time_sec, io_count, io_bytes
		) VALUES (?,?,?,?,?, ?,?,?,?,?,?)`,
		processID, th.ThreadID, th.DispatchQueue, th.ThreadName, th.NumSamples,
		th.SampleRangeStart, th.SampleRangeEnd, th.Priority, th.CPUTimeSec, th.IOCount, th.IOBytes,
	)
	if err != nil {
		return fmt.Errorf("storage: insert trace thread: %w", err)
	}
	threadID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	// frameRowID tracks, for each source-order frame, the row id assigned
	// after insertion, so later child frames can resolve their parent via the
	// depth-walk already performed by the parser (§4.5.1).
	frameRowID := make([]int64, len(th.Frames))
	for i, f := range th.Frames {
		var parentID interface{}
		if f.ParentFrameID != nil {
			idx := *f.ParentFrameID
			if idx >= 0 && int(idx) < len(frameRowID) {
				parentID = frameRowID[idx]
			}
		}
		res, err := db.conn.Exec(
			`INSERT INTO trace_frame (
				thread_id, parent_frame_id, depth, sample_count, is_kernel,
				symbol_name, symbol_offset, library_name, library_offset, address, state, core_type, blocked_on
			) VALUES (?,?,?,?,?, ?,?,?,?,?,?,?,?)`,
			threadID, parentID, f.Depth, f.SampleCount, f.IsKernel,
			f.SymbolName, f.SymbolOffset, f.LibraryName, f.LibraryOffset, f.Address, f.State, f.CoreType, f.BlockedOn,
		)
		if err != nil {
			return fmt.Errorf("storage: insert trace frame: %w", err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		frameRowID[i] = rowID
	}
	return nil
}

// InsertLogEntries bulk-inserts parsed log rows for a capture (§4.5.2).
func (db *DB) InsertLogEntries(captureID int64, entries []model.LogEntry) error {
	for _, e := range entries {
		if _, err := db.conn.Exec(
			`INSERT INTO log_entries(capture_id, timestamp, event_message, subsystem, category, process_name, process_id, message_type, mach_timestamp)
			 VALUES (?,?,?,?,?,?,?,?,?)`,
			captureID, e.Timestamp, e.EventMessage, e.Subsystem, e.Category, e.ProcessName, e.ProcessID, e.MessageType, e.MachTimestamp,
		); err != nil {
			return fmt.Errorf("storage: insert log entry: %w", err)
		}
	}
	return nil
}

// InsertBufferContext records the culprits identified from a frozen ring
// at capture time, JSON-encoding the culprit list in a single column.
func (db *DB) InsertBufferContext(bc model.BufferContext) error {
	culpritsJSON, err := json.Marshal(bc.Culprits)
	if err != nil {
		return fmt.Errorf("storage: marshal culprits: %w", err)
	}
	_, err = db.conn.Exec(
		`INSERT INTO buffer_context(capture_id, sample_count, peak_score, culprits) VALUES (?,?,?,?)`,
		bc.CaptureID, bc.SampleCount, bc.PeakScore, string(culpritsJSON),
	)
	if err != nil {
		return fmt.Errorf("storage: insert buffer context: %w", err)
	}
	return nil
}
