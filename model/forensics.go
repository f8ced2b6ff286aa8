package model

// ForensicCapture is one attempt at capturing kernel-level evidence for an
// event. Each step status is one of CaptureUnknown/CaptureSuccess/CaptureFailed.
type ForensicCapture struct {
	ID               int64         `json:"id" db:"id"`
	EventID          int64         `json:"event_id" db:"event_id"`
	CapturedAt       float64       `json:"captured_at" db:"captured_at"`
	Trigger          string        `json:"trigger" db:"trigger"`
	TraceSaveStatus  CaptureStatus `json:"trace_save_status" db:"trace_save_status"`
	TraceDecodeStatus CaptureStatus `json:"trace_decode_status" db:"trace_decode_status"`
	LogsStatus       CaptureStatus `json:"logs_status" db:"logs_status"`
}

// TraceHeader is the 1:1 header row for one decoded kernel trace.
type TraceHeader struct {
	CaptureID               int64   `db:"capture_id"`
	StartTime               float64 `db:"start_time"`
	EndTime                 float64 `db:"end_time"`
	DurationSec             float64 `db:"duration_sec"`
	Steps                   int     `db:"steps"`
	SamplingIntervalMs      float64 `db:"sampling_interval_ms"`
	OSVersion               string  `db:"os_version"`
	Architecture            string  `db:"architecture"`
	ReportVersion           string  `db:"report_version"`
	HardwareModel           string  `db:"hardware_model"`
	ActiveCPUs              int     `db:"active_cpus"`
	MemoryGB                float64 `db:"memory_gb"`
	HWPageSize              int     `db:"hw_page_size"`
	VMPageSize              int     `db:"vm_page_size"`
	TimeSinceBootSec        float64 `db:"time_since_boot_sec"`
	TimeAwakeSinceBootSec   float64 `db:"time_awake_since_boot_sec"`
	TotalCPUTimeSec         float64 `db:"total_cpu_time_sec"`
	TotalCycles             uint64  `db:"total_cycles"`
	TotalInstructions       uint64  `db:"total_instructions"`
	TotalCPI                float64 `db:"total_cpi"`
	MemoryPressureAvgPct    float64 `db:"memory_pressure_avg_pct"`
	MemoryPressureMaxPct    float64 `db:"memory_pressure_max_pct"`
	AvailableMemoryAvgGB    float64 `db:"available_memory_avg_gb"`
	AvailableMemoryMinGB    float64 `db:"available_memory_min_gb"`
	FreeDiskGB              float64 `db:"free_disk_gb"`
	TotalDiskGB             float64 `db:"total_disk_gb"`
	AdvisoryBattery         string  `db:"advisory_battery"`
	AdvisoryUser            string  `db:"advisory_user"`
	AdvisoryThermal         string  `db:"advisory_thermal"`
	AdvisoryCombined        string  `db:"advisory_combined"`
	SharedCacheResidencyPct float64 `db:"shared_cache_residency_pct"`
	VnodesAvailablePct      float64 `db:"vnodes_available_pct"`
	DataSource              string  `db:"data_source"`
	Reason                  string  `db:"reason"`

	SharedCaches []TraceSharedCache `db:"-"`
	IOStats      []TraceIOStats     `db:"-"`
}

// TraceSharedCache is one dyld shared cache referenced by the header.
type TraceSharedCache struct {
	CaptureID   int64  `db:"capture_id"`
	UUID        string `db:"uuid"`
	BaseAddress uint64 `db:"base_address"`
	Slide       uint64 `db:"slide"`
	Name        string `db:"name"`
}

// TraceIOStats is one header-level I/O tier total.
type TraceIOStats struct {
	CaptureID  int64   `db:"capture_id"`
	Tier       string  `db:"tier"`
	IOCount    uint64  `db:"io_count"`
	BytesTotal uint64  `db:"bytes_total"`
	IORate     float64 `db:"io_rate"`
	BytesRate  float64 `db:"bytes_rate"`
}

// TraceProcess is one process block parsed out of the trace.
type TraceProcess struct {
	ID                   int64   `db:"id"`
	CaptureID            int64   `db:"capture_id"`
	PID                  int64   `db:"pid"`
	Name                 string  `db:"name"`
	UUID                 string  `db:"uuid"`
	Path                 string  `db:"path"`
	Identifier           string  `db:"identifier"`
	Version              string  `db:"version"`
	ParentPID            *int64  `db:"parent_pid"`
	ParentName           string  `db:"parent_name"`
	ResponsiblePID       *int64  `db:"responsible_pid"`
	ResponsibleName      string  `db:"responsible_name"`
	ExecedFromPID        *int64  `db:"execed_from_pid"`
	ExecedFromName       string  `db:"execed_from_name"`
	ExecedToPID          *int64  `db:"execed_to_pid"`
	ExecedToName         string  `db:"execed_to_name"`
	Architecture         string  `db:"architecture"`
	SharedCacheUUID      string  `db:"shared_cache_uuid"`
	RunningBoardManaged  bool    `db:"runningboard_managed"`
	SuddenTerm           bool    `db:"sudden_term"`
	FootprintMB          float64 `db:"footprint_mb"`
	FootprintDeltaMB     float64 `db:"footprint_delta_mb"`
	IOCount              uint64  `db:"io_count"`
	IOBytes              uint64  `db:"io_bytes"`
	TimeSinceForkSec     float64 `db:"time_since_fork_sec"`
	StartTime            float64 `db:"start_time"`
	EndTime              float64 `db:"end_time"`
	NumSamples           int     `db:"num_samples"`
	SampleRangeStart     int     `db:"sample_range_start"`
	SampleRangeEnd       int     `db:"sample_range_end"`
	CPUTimeSec           float64 `db:"cpu_time_sec"`
	Cycles               uint64  `db:"cycles"`
	Instructions         uint64  `db:"instructions"`
	CPI                  float64 `db:"cpi"`
	NumThreads           int     `db:"num_threads"`

	Notes        []TraceProcessNote `db:"-"`
	BinaryImages []TraceBinaryImage `db:"-"`
	Threads      []TraceThread      `db:"-"`
}

// TraceProcessNote is a free-text annotation attached to a process block
// (e.g. "unresponsive", "sudden termination").
type TraceProcessNote struct {
	ProcessID int64  `db:"process_id"`
	Note      string `db:"note"`
}

// TraceBinaryImage is one loaded image listed in a process's Binary Images section.
type TraceBinaryImage struct {
	ProcessID   int64  `db:"process_id"`
	StartAddr   uint64 `db:"start_addr"`
	EndAddr     uint64 `db:"end_addr"`
	Name        string `db:"name"`
	UUID        string `db:"uuid"`
	Path        string `db:"path"`
	IsKernel    bool   `db:"is_kernel"`
}

// TraceThread is one thread parsed from a process block.
type TraceThread struct {
	ID               int64   `db:"id"`
	ProcessID        int64   `db:"process_id"`
	ThreadID         uint64  `db:"thread_id"`
	DispatchQueue    string  `db:"dispatch_queue"`
	ThreadName       string  `db:"thread_name"`
	NumSamples       int     `db:"num_samples"`
	SampleRangeStart int     `db:"sample_range_start"`
	SampleRangeEnd   int     `db:"sample_range_end"`
	Priority         int     `db:"priority"`
	CPUTimeSec       float64 `db:"cpu_time_sec"`
	IOCount          uint64  `db:"io_count"`
	IOBytes          uint64  `db:"io_bytes"`

	Frames []TraceFrame `db:"-"`
}

// TraceFrame is one stack frame belonging to a thread. Before storage,
// ParentFrameID holds the index of the parent frame within the owning
// TraceThread.Frames slice (the parser's depth-walk has no real row ids
// yet); storage resolves it to the parent's actual inserted row id.
type TraceFrame struct {
	ID             int64   `db:"id"`
	ThreadID       int64   `db:"thread_id"`
	ParentFrameID  *int64  `db:"parent_frame_id"`
	Depth          int     `db:"depth"`
	SampleCount    int     `db:"sample_count"`
	IsKernel       bool    `db:"is_kernel"`
	SymbolName     string  `db:"symbol_name"`
	SymbolOffset   *uint64 `db:"symbol_offset"`
	LibraryName    string  `db:"library_name"`
	LibraryOffset  *uint64 `db:"library_offset"`
	Address        uint64  `db:"address"`
	State          string  `db:"state"`
	CoreType       string  `db:"core_type"`
	BlockedOn      string  `db:"blocked_on"`
}

// TraceIOHistogram is one bucket of the trailing I/O size/latency histogram.
type TraceIOHistogram struct {
	CaptureID int64  `db:"capture_id"`
	Bucket    string `db:"bucket"`
	Count     uint64 `db:"count"`
}

// TraceIOAggregate is one per-tier I/O aggregate from the trailing section.
type TraceIOAggregate struct {
	CaptureID  int64   `db:"capture_id"`
	Tier       string  `db:"tier"`
	IOCount    uint64  `db:"io_count"`
	BytesTotal uint64  `db:"bytes_total"`
	IORate     float64 `db:"io_rate"`
	BytesRate  float64 `db:"bytes_rate"`
}

// TraceDocument is the fully-parsed, in-memory form of a decoded kernel
// trace before its rows are inserted into storage (§4.5.1).
type TraceDocument struct {
	Header    TraceHeader
	Processes []TraceProcess
}

// LogEntry is one parsed NDJSON log row tied to a capture (§4.5.2).
type LogEntry struct {
	CaptureID      int64   `db:"capture_id"`
	Timestamp      float64 `db:"timestamp"`
	EventMessage   string  `db:"event_message"`
	Subsystem      string  `db:"subsystem"`
	Category       string  `db:"category"`
	ProcessName    string  `db:"process_name"`
	ProcessID      int64   `db:"process_id"`
	MessageType    string  `db:"message_type"`
	MachTimestamp  uint64  `db:"mach_timestamp"`
}

// Culprit is the peak-score summary of one process across a frozen ring
// window, identified by the forensics pipeline (§4.5 step 5).
type Culprit struct {
	PID                uint32           `json:"pid"`
	Command            string           `json:"command"`
	Score              int              `json:"score"`
	DominantResource   DominantResource `json:"dominant_resource"`
	Disproportionality float64          `json:"disproportionality"`
}

// BufferContext records the culprits identified from a frozen ring buffer
// at the moment of a forensic capture.
type BufferContext struct {
	CaptureID   int64     `db:"capture_id"`
	SampleCount int       `db:"sample_count"`
	PeakScore   int       `db:"peak_score"`
	Culprits    []Culprit `db:"-"`
}
