package model

import "testing"

func TestProcessScoreShares(t *testing.T) {
	p := ProcessScore{
		ShareCPU:     0.1,
		ShareGPU:     0.2,
		ShareMemory:  0.9,
		ShareDisk:    0.05,
		ShareWakeups: 0.3,
	}
	shares := p.Shares()
	if len(shares) != 5 {
		t.Fatalf("Shares() returned %d entries, want 5", len(shares))
	}

	max := shares[0]
	for _, s := range shares[1:] {
		if s.Share > max.Share {
			max = s
		}
	}
	if max.Resource != ResourceMemory {
		t.Errorf("argmax resource = %v, want %v", max.Resource, ResourceMemory)
	}
	if max.Share != 0.9 {
		t.Errorf("argmax share = %v, want 0.9", max.Share)
	}
}

func TestProcessEventOpen(t *testing.T) {
	open := ProcessEvent{}
	if !open.Open() {
		t.Error("event with nil ExitTime should be open")
	}

	closedAt := 123.0
	closed := ProcessEvent{ExitTime: &closedAt}
	if closed.Open() {
		t.Error("event with non-nil ExitTime should not be open")
	}
}
