package model

// ProcessEvent is one tracked episode of a single process being at-or-above
// the tracking band. Exactly one open event may exist per (PID, BootTime)
// pair at any moment. The tracker enforces this; storage's partial index on
// open events is not unique and does not enforce it.
type ProcessEvent struct {
	ID             int64   `json:"id" db:"id"`
	PID            uint32  `json:"pid" db:"pid"`
	Command        string  `json:"command" db:"command"`
	BootTime       int64   `json:"boot_time" db:"boot_time"`
	EntryTime      float64 `json:"entry_time" db:"entry_time"`
	ExitTime       *float64 `json:"exit_time,omitempty" db:"exit_time"`
	EntryBand      Band    `json:"entry_band" db:"entry_band"`
	PeakBand       Band    `json:"peak_band" db:"peak_band"`
	PeakScore      int     `json:"peak_score" db:"peak_score"`
	PeakSnapshotID *int64  `json:"peak_snapshot_id,omitempty" db:"peak_snapshot_id"`
}

// Open reports whether the event has not yet been closed.
func (e *ProcessEvent) Open() bool {
	return e.ExitTime == nil
}

// ProcessSnapshot is a full ProcessScore stored relationally, tagged with
// its place in the event lifecycle. CASCADEs when its event is deleted.
type ProcessSnapshot struct {
	ID           int64        `json:"id" db:"id"`
	EventID      int64        `json:"event_id" db:"event_id"`
	SnapshotType SnapshotType `json:"snapshot_type" db:"snapshot_type"`
	Score        ProcessScore `json:"score"`
}
