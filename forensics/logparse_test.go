package forensics

import "testing"

func TestParseLogsNDJSONValidLine(t *testing.T) {
	data := []byte(`{"timestamp":"2026-07-30 10:15:00.123456-0700","eventMessage":"hung","subsystem":"com.apple.foo","category":"default","processImagePath":"/usr/libexec/foohelper","processID":123,"messageType":"Error","machTimestamp":9999}` + "\n")

	entries := ParseLogsNDJSON(data)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.EventMessage != "hung" {
		t.Errorf("EventMessage = %q, want %q", e.EventMessage, "hung")
	}
	if e.ProcessName != "foohelper" {
		t.Errorf("ProcessName = %q, want %q (basename of processImagePath)", e.ProcessName, "foohelper")
	}
	if e.ProcessID != 123 {
		t.Errorf("ProcessID = %d, want 123", e.ProcessID)
	}
	if e.Timestamp == 0 {
		t.Error("Timestamp should be parsed to a nonzero unix time")
	}
}

func TestParseLogsNDJSONSkipsInvalidLines(t *testing.T) {
	data := []byte("not json\n{\"eventMessage\":\"ok\"}\n\n{broken\n")
	entries := ParseLogsNDJSON(data)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (only the valid JSON line)", len(entries))
	}
	if entries[0].EventMessage != "ok" {
		t.Errorf("EventMessage = %q, want %q", entries[0].EventMessage, "ok")
	}
}

func TestParseLogsNDJSONUnparsableTimestampYieldsZero(t *testing.T) {
	data := []byte(`{"timestamp":"not-a-timestamp","eventMessage":"x"}` + "\n")
	entries := ParseLogsNDJSON(data)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Timestamp != 0 {
		t.Errorf("Timestamp with unparsable input = %v, want 0", entries[0].Timestamp)
	}
}

func TestParseLogsNDJSONEmptyInput(t *testing.T) {
	entries := ParseLogsNDJSON(nil)
	if len(entries) != 0 {
		t.Errorf("ParseLogsNDJSON(nil) = %v, want empty", entries)
	}
}
