package forensics

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/rogue-hunter/roguehunter/model"
)

// logLine mirrors the subset of `log show --style ndjson` fields this
// pipeline keeps (§4.5.2).
type logLine struct {
	Timestamp        string `json:"timestamp"`
	EventMessage     string `json:"eventMessage"`
	MachTimestamp    uint64 `json:"machTimestamp"`
	Subsystem        string `json:"subsystem"`
	Category         string `json:"category"`
	ProcessImagePath string `json:"processImagePath"`
	ProcessID        int64  `json:"processID"`
	MessageType      string `json:"messageType"`
}

const logTimestampLayout = "2006-01-02 15:04:05.000000-0700"

// ParseLogsNDJSON parses `log show --style ndjson` output into LogEntry
// rows, skipping any line that isn't valid JSON.
func ParseLogsNDJSON(data []byte) []model.LogEntry {
	var entries []model.LogEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ll logLine
		if err := json.Unmarshal(line, &ll); err != nil {
			continue
		}

		var processName string
		if ll.ProcessImagePath != "" {
			processName = filepath.Base(ll.ProcessImagePath)
		}

		var ts float64
		if parsed, err := time.Parse(logTimestampLayout, ll.Timestamp); err == nil {
			ts = float64(parsed.UnixNano()) / 1e9
		}

		entries = append(entries, model.LogEntry{
			Timestamp:     ts,
			EventMessage:  ll.EventMessage,
			Subsystem:     ll.Subsystem,
			Category:      ll.Category,
			ProcessName:   processName,
			ProcessID:     ll.ProcessID,
			MessageType:   ll.MessageType,
			MachTimestamp: ll.MachTimestamp,
		})
	}
	return entries
}
