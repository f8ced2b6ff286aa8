package storage

// schemaVersion is bumped whenever schema.sql changes incompatibly. On
// mismatch the database file (and its WAL/SHM sidecars) is deleted and
// recreated from scratch — there are no migrations (§4.6).
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE daemon_state (
	key        TEXT PRIMARY KEY,
	value      TEXT,
	updated_at REAL
);

CREATE TABLE process_events (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	pid              INTEGER NOT NULL,
	command          TEXT NOT NULL,
	boot_time        INTEGER NOT NULL,
	entry_time       REAL NOT NULL,
	exit_time        REAL,
	entry_band       TEXT NOT NULL,
	peak_band        TEXT NOT NULL,
	peak_score       INTEGER NOT NULL,
	peak_snapshot_id INTEGER REFERENCES process_snapshots(id)
);
CREATE INDEX idx_process_events_pid_boot ON process_events(pid, boot_time);
CREATE INDEX idx_process_events_open ON process_events(exit_time) WHERE exit_time IS NULL;

CREATE TABLE process_snapshots (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id                 INTEGER NOT NULL REFERENCES process_events(id) ON DELETE CASCADE,
	snapshot_type            TEXT NOT NULL,
	pid                      INTEGER NOT NULL,
	parent_pid               INTEGER NOT NULL,
	command                  TEXT NOT NULL,
	captured_at              REAL NOT NULL,
	cpu_time_ns              INTEGER NOT NULL,
	disk_bytes_rw            INTEGER NOT NULL,
	energy_nj                INTEGER NOT NULL,
	pageins                  INTEGER NOT NULL,
	context_switches         INTEGER NOT NULL,
	syscalls                 INTEGER NOT NULL,
	mach_messages            INTEGER NOT NULL,
	wakeups                  INTEGER NOT NULL,
	page_faults              INTEGER NOT NULL,
	runnable_time_ns         INTEGER NOT NULL,
	qos_interactive_time_ns  INTEGER NOT NULL,
	gpu_time_ns              INTEGER NOT NULL,
	mem_footprint            INTEGER NOT NULL,
	mem_footprint_lifetime_max INTEGER NOT NULL,
	thread_count             INTEGER NOT NULL,
	priority                 INTEGER NOT NULL,
	instructions             INTEGER NOT NULL,
	cycles                   INTEGER NOT NULL,
	ipc                      REAL NOT NULL,
	state                    TEXT NOT NULL,
	disk_bytes_rw_rate       REAL NOT NULL,
	energy_rate              REAL NOT NULL,
	pageins_rate             REAL NOT NULL,
	faults_rate              REAL NOT NULL,
	context_switch_rate      REAL NOT NULL,
	syscalls_rate            REAL NOT NULL,
	mach_messages_rate       REAL NOT NULL,
	wakeups_rate             REAL NOT NULL,
	runnable_rate            REAL NOT NULL,
	qos_interactive_rate     REAL NOT NULL,
	gpu_time_rate            REAL NOT NULL,
	cpu                      REAL NOT NULL,
	zombie_children          INTEGER NOT NULL,
	score                    INTEGER NOT NULL,
	band                     TEXT NOT NULL,
	share_cpu                REAL NOT NULL,
	share_gpu                REAL NOT NULL,
	share_memory             REAL NOT NULL,
	share_disk               REAL NOT NULL,
	share_wakeups            REAL NOT NULL,
	disproportionality       REAL NOT NULL,
	dominant_resource        TEXT NOT NULL
);
CREATE INDEX idx_process_snapshots_event ON process_snapshots(event_id);

CREATE TABLE forensic_captures (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id            INTEGER NOT NULL REFERENCES process_events(id) ON DELETE CASCADE,
	captured_at         REAL NOT NULL,
	trigger             TEXT NOT NULL,
	trace_save_status   TEXT,
	trace_decode_status TEXT,
	logs_status         TEXT
);
CREATE INDEX idx_forensic_captures_event ON forensic_captures(event_id);

CREATE TABLE trace_header (
	capture_id                 INTEGER PRIMARY KEY REFERENCES forensic_captures(id) ON DELETE CASCADE,
	start_time                 REAL,
	end_time                   REAL,
	duration_sec               REAL,
	steps                      INTEGER,
	sampling_interval_ms       REAL,
	os_version                 TEXT,
	architecture               TEXT,
	report_version             TEXT,
	hardware_model             TEXT,
	active_cpus                INTEGER,
	memory_gb                  REAL,
	hw_page_size               INTEGER,
	vm_page_size               INTEGER,
	time_since_boot_sec        REAL,
	time_awake_since_boot_sec  REAL,
	total_cpu_time_sec         REAL,
	total_cycles               INTEGER,
	total_instructions         INTEGER,
	total_cpi                  REAL,
	memory_pressure_avg_pct    REAL,
	memory_pressure_max_pct    REAL,
	available_memory_avg_gb    REAL,
	available_memory_min_gb    REAL,
	free_disk_gb               REAL,
	total_disk_gb              REAL,
	advisory_battery           TEXT,
	advisory_user              TEXT,
	advisory_thermal           TEXT,
	advisory_combined          TEXT,
	shared_cache_residency_pct REAL,
	vnodes_available_pct       REAL,
	data_source                TEXT,
	reason                     TEXT
);

CREATE TABLE trace_shared_cache (
	capture_id   INTEGER NOT NULL REFERENCES forensic_captures(id) ON DELETE CASCADE,
	uuid         TEXT,
	base_address INTEGER,
	slide        INTEGER,
	name         TEXT
);
CREATE INDEX idx_trace_shared_cache_capture ON trace_shared_cache(capture_id);

CREATE TABLE trace_io_stats (
	capture_id  INTEGER NOT NULL REFERENCES forensic_captures(id) ON DELETE CASCADE,
	tier        TEXT,
	io_count    INTEGER,
	bytes_total INTEGER,
	io_rate     REAL,
	bytes_rate  REAL
);
CREATE INDEX idx_trace_io_stats_capture ON trace_io_stats(capture_id);

CREATE TABLE trace_process (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	capture_id            INTEGER NOT NULL REFERENCES forensic_captures(id) ON DELETE CASCADE,
	pid                   INTEGER,
	name                  TEXT,
	uuid                  TEXT,
	path                  TEXT,
	identifier            TEXT,
	version               TEXT,
	parent_pid            INTEGER,
	parent_name           TEXT,
	responsible_pid       INTEGER,
	responsible_name      TEXT,
	execed_from_pid       INTEGER,
	execed_from_name      TEXT,
	execed_to_pid         INTEGER,
	execed_to_name        TEXT,
	architecture          TEXT,
	shared_cache_uuid     TEXT,
	runningboard_managed  INTEGER,
	sudden_term           INTEGER,
	footprint_mb          REAL,
	footprint_delta_mb    REAL,
	io_count              INTEGER,
	io_bytes              INTEGER,
	time_since_fork_sec   REAL,
	start_time            REAL,
	end_time              REAL,
	num_samples           INTEGER,
	sample_range_start    INTEGER,
	sample_range_end      INTEGER,
	cpu_time_sec          REAL,
	cycles                INTEGER,
	instructions          INTEGER,
	cpi                   REAL,
	num_threads           INTEGER
);
CREATE INDEX idx_trace_process_capture ON trace_process(capture_id);

CREATE TABLE trace_process_note (
	process_id INTEGER NOT NULL REFERENCES trace_process(id) ON DELETE CASCADE,
	note       TEXT
);
CREATE INDEX idx_trace_process_note_process ON trace_process_note(process_id);

CREATE TABLE trace_binary_image (
	process_id INTEGER NOT NULL REFERENCES trace_process(id) ON DELETE CASCADE,
	start_addr INTEGER,
	end_addr   INTEGER,
	name       TEXT,
	uuid       TEXT,
	path       TEXT,
	is_kernel  INTEGER
);
CREATE INDEX idx_trace_binary_image_process ON trace_binary_image(process_id);

CREATE TABLE trace_thread (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	process_id         INTEGER NOT NULL REFERENCES trace_process(id) ON DELETE CASCADE,
	thread_id          INTEGER,
	dispatch_queue     TEXT,
	thread_name        TEXT,
	num_samples        INTEGER,
	sample_range_start INTEGER,
	sample_range_end   INTEGER,
	priority           INTEGER,
	cpu_time_sec       REAL,
	io_count           INTEGER,
	io_bytes           INTEGER
);
CREATE INDEX idx_trace_thread_process ON trace_thread(process_id);

CREATE TABLE trace_frame (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id       INTEGER NOT NULL REFERENCES trace_thread(id) ON DELETE CASCADE,
	parent_frame_id INTEGER REFERENCES trace_frame(id) ON DELETE CASCADE,
	depth           INTEGER,
	sample_count    INTEGER,
	is_kernel       INTEGER,
	symbol_name     TEXT,
	symbol_offset   INTEGER,
	library_name    TEXT,
	library_offset  INTEGER,
	address         INTEGER,
	state           TEXT,
	core_type       TEXT,
	blocked_on      TEXT
);
CREATE INDEX idx_trace_frame_thread ON trace_frame(thread_id);
CREATE INDEX idx_trace_frame_parent ON trace_frame(parent_frame_id);

CREATE TABLE trace_io_histogram (
	capture_id INTEGER NOT NULL REFERENCES forensic_captures(id) ON DELETE CASCADE,
	bucket     TEXT,
	count      INTEGER
);
CREATE INDEX idx_trace_io_histogram_capture ON trace_io_histogram(capture_id);

CREATE TABLE trace_io_aggregate (
	capture_id  INTEGER NOT NULL REFERENCES forensic_captures(id) ON DELETE CASCADE,
	tier        TEXT,
	io_count    INTEGER,
	bytes_total INTEGER,
	io_rate     REAL,
	bytes_rate  REAL
);
CREATE INDEX idx_trace_io_aggregate_capture ON trace_io_aggregate(capture_id);

CREATE TABLE log_entries (
	capture_id     INTEGER NOT NULL REFERENCES forensic_captures(id) ON DELETE CASCADE,
	timestamp      REAL,
	event_message  TEXT,
	subsystem      TEXT,
	category       TEXT,
	process_name   TEXT,
	process_id     INTEGER,
	message_type   TEXT,
	mach_timestamp INTEGER
);
CREATE INDEX idx_log_entries_capture ON log_entries(capture_id);

CREATE TABLE buffer_context (
	capture_id   INTEGER NOT NULL REFERENCES forensic_captures(id) ON DELETE CASCADE,
	sample_count INTEGER,
	peak_score   INTEGER,
	culprits     TEXT
);
CREATE INDEX idx_buffer_context_capture ON buffer_context(capture_id);

CREATE TABLE machine_snapshots (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at     REAL NOT NULL,
	process_count   INTEGER NOT NULL,
	total_cpu_pct   REAL NOT NULL,
	total_mem_bytes INTEGER NOT NULL
);

CREATE TABLE machine_snapshot_processes (
	snapshot_id INTEGER NOT NULL REFERENCES machine_snapshots(id) ON DELETE CASCADE,
	pid         INTEGER NOT NULL,
	command     TEXT NOT NULL,
	cpu_pct     REAL NOT NULL,
	mem_bytes   INTEGER NOT NULL,
	state       TEXT NOT NULL
);
CREATE INDEX idx_machine_snapshot_processes_snapshot ON machine_snapshot_processes(snapshot_id);
`
